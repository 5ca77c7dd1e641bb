package engine

import (
	"context"
	"sync/atomic"
)

// Gate bounds the number of in-flight requests.
//
// It is a buffered-channel semaphore: Acquire blocks cooperatively
// until fewer than the configured limit of permits are outstanding.
// Channel receive order keeps waiters fair enough that no caller
// starves.
type Gate struct {
	permits chan struct{}
	active  atomic.Int32
}

// NewGate creates a gate allowing at most limit concurrent holders.
func NewGate(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{permits: make(chan struct{}, limit)}
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.permits <- struct{}{}:
		g.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit. Must be called exactly once per successful
// Acquire; a leaked permit silently throttles the generator.
func (g *Gate) Release() {
	g.active.Add(-1)
	<-g.permits
}

// Active returns the number of permits currently held.
func (g *Gate) Active() int {
	return int(g.active.Load())
}

// Limit returns the configured concurrency bound.
func (g *Gate) Limit() int {
	return cap(g.permits)
}
