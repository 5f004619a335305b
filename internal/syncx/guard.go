// Package syncx provides small generic synchronization helpers shared by the
// pipeline loop and the HTTP surface.
package syncx

import "sync"

// RWGuard holds a value that writers replace wholesale and readers copy.
// The pipeline keeps its capture region and options in guards so the HTTP
// surface can swap them between cycles.
type RWGuard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guard holding initial.
func NewGuard[T any](initial T) *RWGuard[T] {
	return &RWGuard[T]{value: initial}
}

// Get returns the current value. T should be a value type.
func (g *RWGuard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set replaces the value.
func (g *RWGuard[T]) Set(v T) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Latest holds the most recently published value, e.g. the preview frame.
// Each publish bumps a version so readers can tell whether anything new
// arrived.
type Latest[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
}

// Publish stores v and returns its version, starting at 1.
func (l *Latest[T]) Publish(v T) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = v
	l.version++
	return l.version
}

// Load returns the latest value and its version. Version 0 means nothing
// has been published yet.
func (l *Latest[T]) Load() (T, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.version
}
