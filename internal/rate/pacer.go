package rate

import (
	"sync"
	"time"
)

// Pacer converts a (possibly time-varying) target rate into a stream of
// emission counts.
//
// The pacing loop calls Tick every few milliseconds; Pacer accumulates
// fractional emissions between ticks so that non-integer rates are
// honored on average. If the loop falls behind schedule the accumulated
// deficit is emitted on the next tick rather than dropped.
//
// # Thread Safety
//
// Pacer is safe for concurrent use, though a single pacing goroutine is
// the expected caller.
type Pacer struct {
	mu          sync.Mutex
	lastTick    time.Time
	accumulated float64
	maxBurst    float64

	total int64
}

// NewPacer creates a pacer. The first Tick measures elapsed time from
// construction.
func NewPacer() *Pacer {
	return &Pacer{
		lastTick: time.Now(),
		maxBurst: 64, // Bounds catch-up after a stall (e.g. resume from pause).
	}
}

// Tick advances the pacer to now at the given rate and returns how many
// emissions are due.
//
// The rate is sampled per tick, so callers recomputing it from a ramp
// curve get a smooth approximation as long as ticks are frequent.
func (p *Pacer) Tick(now time.Time, qps float64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := now.Sub(p.lastTick).Seconds()
	p.lastTick = now
	if elapsed < 0 || qps <= 0 {
		return 0
	}

	p.accumulated += elapsed * qps
	if p.accumulated > p.maxBurst {
		p.accumulated = p.maxBurst
	}

	n := int(p.accumulated)
	p.accumulated -= float64(n)
	p.total += int64(n)
	return n
}

// Drain discards any accumulated emissions and restarts timing from
// now. Called when dispatch is suppressed (pause) so the backlog does
// not burst out on resume.
func (p *Pacer) Drain(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accumulated = 0
	p.lastTick = now
}

// Total returns the number of emissions scheduled so far.
func (p *Pacer) Total() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}
