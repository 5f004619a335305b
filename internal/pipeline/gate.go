package pipeline

import (
	"image"
	"sync"

	"github.com/corona10/goimagehash"
)

// frameGate skips recognition for frames perceptually identical to the last
// frame that was let through.
type frameGate struct {
	mu          sync.Mutex
	last        *goimagehash.ImageHash
	maxDistance int
}

func newFrameGate(maxDistance int) *frameGate {
	return &frameGate{maxDistance: maxDistance}
}

// similar reports whether img is within maxDistance of the reference frame.
// Frames that pass become the new reference.
func (g *frameGate) similar(img image.Image) bool {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.last == nil {
		g.last = hash
		return false
	}
	dist, err := g.last.Distance(hash)
	if err != nil || dist > g.maxDistance {
		g.last = hash
		return false
	}
	return true
}

func (g *frameGate) reset() {
	g.mu.Lock()
	g.last = nil
	g.mu.Unlock()
}
