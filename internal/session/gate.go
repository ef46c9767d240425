package session

import (
	"errors"
	"sync"
)

// ErrConcurrencyLimit is returned when a caller identity already has the
// maximum number of runs in flight. Callers are rejected immediately rather
// than queued.
var ErrConcurrencyLimit = errors.New("concurrent run limit exceeded")

// Gate enforces the maximum concurrent-run count per caller identity.
type Gate struct {
	mu     sync.Mutex
	active map[string]int
	max    int
}

// NewGate creates a gate allowing up to max concurrent runs per identity.
func NewGate(max int) *Gate {
	if max <= 0 {
		max = 1
	}
	return &Gate{active: make(map[string]int), max: max}
}

// Acquire reserves a run slot for the identity or fails with
// ErrConcurrencyLimit. Every successful Acquire must be paired with Release.
func (g *Gate) Acquire(identity string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[identity] >= g.max {
		return ErrConcurrencyLimit
	}
	g.active[identity]++
	return nil
}

// Release frees a run slot for the identity.
func (g *Gate) Release(identity string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[identity] > 0 {
		g.active[identity]--
	}
	if g.active[identity] == 0 {
		delete(g.active, identity)
	}
}

// Active returns the number of in-flight runs for the identity.
func (g *Gate) Active(identity string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active[identity]
}
