// Package changedetect suppresses repeated work on text that has not changed
// since the previous accepted frame.
package changedetect

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns the 64-bit content fingerprint of text.
func Fingerprint(text string) uint64 {
	return xxhash.Sum64String(text)
}

// Detector remembers the fingerprint of the last accepted text.
type Detector struct {
	mu   sync.Mutex
	last uint64
	has  bool
}

// Accept reports whether text is non-empty and differs from the last
// accepted text. Accepted text becomes the new reference; rejected text
// leaves the reference untouched.
func (d *Detector) Accept(text string) bool {
	if text == "" {
		return false
	}
	fp := Fingerprint(text)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.has && fp == d.last {
		return false
	}
	d.last, d.has = fp, true
	return true
}

// Reset forgets the reference so the next non-empty text is accepted.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.last, d.has = 0, false
	d.mu.Unlock()
}
