package engine

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/pulsegen/pulse/internal/assertion"
	"github.com/pulsegen/pulse/internal/config"
)

// ErrAborted marks an attempt cancelled by a run abort. Aborted
// attempts are excluded from all metrics: from the load-generation
// perspective they never happened.
var ErrAborted = errors.New("request aborted")

// Dispatcher performs single request attempts: it applies the
// per-request timeout, measures duration, classifies the response via
// the success evaluator, and produces an immutable Result.
//
// There are no retries. Each attempt is itself one generated load
// sample, so a failure is recorded, never repeated.
type Dispatcher struct {
	cfg       *config.TestConfig
	transport Transport
	evaluator *assertion.Evaluator
	nextID    atomic.Int64
}

// NewDispatcher creates a dispatcher for one run.
func NewDispatcher(cfg *config.TestConfig, transport Transport, evaluator *assertion.Evaluator) *Dispatcher {
	return &Dispatcher{cfg: cfg, transport: transport, evaluator: evaluator}
}

// Dispatch performs one attempt.
//
// Returns ErrAborted when ctx is cancelled before the transport call
// begins or while it is in flight; such attempts produce no Result.
// Every other outcome, including timeouts and transport failures, is a
// recorded sample.
func (d *Dispatcher) Dispatch(ctx context.Context) (*Result, error) {
	if ctx.Err() != nil {
		return nil, ErrAborted
	}

	id := d.nextID.Add(1)

	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout())
	defer cancel()

	resp, err := d.transport.Send(reqCtx, &Request{
		Method:  d.cfg.Method,
		URL:     d.cfg.URL,
		Headers: d.cfg.Headers,
		Body:    d.cfg.Body,
	})

	result := &Result{
		ID:         id,
		Timestamp:  time.Now(),
		DurationMs: float64(resp.Duration) / float64(time.Millisecond),
	}

	if err != nil {
		// A run abort interrupts the transport call; the attempt is
		// dropped rather than recorded.
		if ctx.Err() != nil {
			return nil, ErrAborted
		}

		result.Status = 0
		result.Success = false
		if isTimeout(err) {
			result.Error = "timeout"
		} else {
			result.Error = err.Error()
		}
		return result, nil
	}

	httpOK := resp.Status >= 200 && resp.Status < 300
	success, businessCode := d.evaluator.Evaluate(resp.Body, httpOK)

	result.Status = resp.Status
	result.Success = success
	result.Bytes = int64(len(resp.Body))
	result.BusinessCode = businessCode
	return result, nil
}

// isTimeout reports whether err is a per-request deadline expiry.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
