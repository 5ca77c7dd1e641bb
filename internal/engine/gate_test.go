package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGate_HighWaterMark(t *testing.T) {
	const limit = 5
	const workers = 100

	g := NewGate(limit)

	var current, highWater atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := g.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			defer g.Release()

			n := current.Add(1)
			for {
				hw := highWater.Load()
				if n <= hw || highWater.CompareAndSwap(hw, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			current.Add(-1)
		}()
	}

	wg.Wait()

	if hw := highWater.Load(); hw > limit {
		t.Errorf("high-water mark = %d, want at most %d", hw, limit)
	}
	if g.Active() != 0 {
		t.Errorf("Active() after all releases = %d, want 0", g.Active())
	}
}

func TestGate_AcquireCancellation(t *testing.T) {
	g := NewGate(1)

	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.Acquire(ctx)
	if err == nil {
		t.Fatal("second Acquire() succeeded with no free permit")
	}

	g.Release()
	if g.Active() != 0 {
		t.Errorf("Active() = %d, want 0", g.Active())
	}
}

func TestGate_MinimumLimit(t *testing.T) {
	g := NewGate(0)
	if g.Limit() != 1 {
		t.Errorf("Limit() = %d, want clamped to 1", g.Limit())
	}
}
