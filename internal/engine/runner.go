// Package engine generates HTTP load against a target and measures it.
//
// A Runner drives two long-lived loops for the duration of a test: a
// pacing loop that converts the rate controller's target QPS into
// dispatch attempts, and a sampling loop that records chart points.
// Each dispatched request runs as its own goroutine holding a Gate
// permit, and completed results flow over a channel to a single
// collector goroutine that owns metrics ingestion.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pulsegen/pulse/internal/assertion"
	"github.com/pulsegen/pulse/internal/config"
	"github.com/pulsegen/pulse/internal/metrics"
	"github.com/pulsegen/pulse/internal/rate"
)

// State is the lifecycle state of a Runner.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateError     State = "error"
)

// ResultFunc observes completed results. Callbacks run on the collector
// goroutine and should return quickly.
type ResultFunc func(Result)

// Runner is the top-level controller for load test runs.
//
// Lifecycle: idle → running ⇄ paused → completed, with running/paused
// → idle on Stop. A single Runner can execute any number of runs, one
// at a time; all per-run state is reset at Start and discarded at
// Reset. The error state is entered only for unrecoverable setup
// faults, never for individual request failures.
type Runner struct {
	mu    sync.Mutex
	state State

	cfg        *config.TestConfig
	transport  Transport // test seam; built from config when nil
	dispatcher *Dispatcher
	rc         *rate.Controller
	gate       *Gate
	pacer      *rate.Pacer

	agg    *metrics.Aggregator
	series *metrics.SeriesRecorder

	paused  atomic.Bool
	aborted atomic.Bool
	emitted atomic.Int64

	loopWg sync.WaitGroup

	cancel    context.CancelFunc
	startTime time.Time
	done      chan struct{}

	onResult []ResultFunc

	finalMetrics *metrics.TestMetrics

	tickInterval   time.Duration
	sampleInterval time.Duration
	seriesCap      int
}

// Option configures a Runner.
type Option func(*Runner)

// WithTransport injects a transport, replacing the HTTP client built
// from the config. Used by tests and by proxy deployments.
func WithTransport(t Transport) Option {
	return func(r *Runner) { r.transport = t }
}

// WithTickInterval overrides the pacing loop tick (default 5ms).
func WithTickInterval(d time.Duration) Option {
	return func(r *Runner) { r.tickInterval = d }
}

// WithSampleInterval overrides the chart sampling cadence (default 500ms).
func WithSampleInterval(d time.Duration) Option {
	return func(r *Runner) { r.sampleInterval = d }
}

// WithSeriesCap overrides the time-series ring size.
func WithSeriesCap(n int) Option {
	return func(r *Runner) { r.seriesCap = n }
}

// NewRunner creates an idle runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		state:          StateIdle,
		tickInterval:   5 * time.Millisecond,
		sampleInterval: 500 * time.Millisecond,
		seriesCap:      metrics.DefaultSeriesCap,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.series = metrics.NewSeriesRecorder(r.seriesCap)
	r.agg = metrics.NewAggregator(time.Now())
	return r
}

// OnResult registers an observer for completed results. Must be called
// before Start.
func (r *Runner) OnResult(fn ResultFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResult = append(r.onResult, fn)
}

// Start validates the config, resets all run state, and begins the
// pacing and sampling loops. It returns immediately; use Wait, State,
// or the observer callbacks to follow progress.
func (r *Runner) Start(cfg *config.TestConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRunning || r.state == StatePaused {
		return fmt.Errorf("runner is already running")
	}

	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	evaluator, err := assertion.New(cfg.SuccessCondition)
	if err != nil {
		r.state = StateError
		return fmt.Errorf("failed to build success evaluator: %w", err)
	}

	transport := r.transport
	if transport == nil {
		transport, err = NewHTTPTransport(cfg.ProxyURL)
		if err != nil {
			r.state = StateError
			return fmt.Errorf("failed to build transport: %w", err)
		}
	}

	now := time.Now()
	r.cfg = cfg
	r.dispatcher = NewDispatcher(cfg, transport, evaluator)
	r.rc = rate.NewController(cfg.QPS, cfg.RampUp)
	r.gate = NewGate(cfg.Concurrency)
	r.pacer = rate.NewPacer()
	r.agg.Reset(now)
	r.series.Reset()
	r.paused.Store(false)
	r.aborted.Store(false)
	r.emitted.Store(0)
	r.finalMetrics = nil
	r.startTime = now
	r.done = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.state = StateRunning

	results := make(chan *Result, 2*cfg.Concurrency+16)

	r.loopWg.Add(2)
	go r.pacingLoop(ctx, results)
	go r.samplingLoop(ctx)
	go r.collect(results)

	return nil
}

// pacingLoop emits dispatch attempts at the rate controller's current
// target until the stop condition cuts emission off or the run aborts,
// then waits for in-flight requests and closes the results channel.
func (r *Runner) pacingLoop(ctx context.Context, results chan<- *Result) {
	defer r.loopWg.Done()

	var dispatchWg sync.WaitGroup
	defer func() {
		dispatchWg.Wait()
		close(results)
	}()

	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	// Stop-condition time base: paused intervals do not count toward a
	// duration-based run, so completion stretches by the paused time.
	// The ramp-up curve, by contrast, follows wall-clock time (see
	// targetQPSNow), so pausing does not rewind the ramp.
	var activeElapsed time.Duration
	lastTick := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(lastTick)
			lastTick = now

			if r.paused.Load() {
				r.pacer.Drain(now)
				continue
			}
			activeElapsed += dt

			if r.cfg.DurationSec > 0 && activeElapsed >= r.cfg.Duration() {
				return
			}

			due := r.pacer.Tick(now, r.targetQPSNow(now))
			for i := 0; i < due; i++ {
				if r.cfg.TotalRequests > 0 && r.emitted.Load() >= r.cfg.TotalRequests {
					return
				}
				r.emitted.Add(1)

				dispatchWg.Add(1)
				go func() {
					defer dispatchWg.Done()
					r.dispatch(ctx, results)
				}()
			}
		}
	}
}

// dispatch runs one attempt: permit, transport call, result hand-off.
// The permit is released unconditionally.
func (r *Runner) dispatch(ctx context.Context, results chan<- *Result) {
	if err := r.gate.Acquire(ctx); err != nil {
		return
	}
	defer r.gate.Release()

	r.agg.NoteDispatched()

	result, err := r.dispatcher.Dispatch(ctx)
	if err != nil {
		// ErrAborted: the attempt never happened from the
		// load-generation perspective, so undo the dispatch count.
		r.agg.NoteAborted()
		return
	}
	results <- result
}

// collect is the single writer into the aggregator. It also fans
// results out to observers, and finalizes the run when the results
// channel closes.
func (r *Runner) collect(results <-chan *Result) {
	r.mu.Lock()
	observers := make([]ResultFunc, len(r.onResult))
	copy(observers, r.onResult)
	r.mu.Unlock()

	for result := range results {
		r.agg.Ingest(result.DurationMs, result.Timestamp, result.Status, result.Success, result.BusinessCode)
		for _, fn := range observers {
			fn(*result)
		}
	}

	r.finish()
}

// finish performs the terminal transition after all results are in.
// The pacing and sampling loops are joined first so that no stale
// iteration touches run state once done is closed and a new Start may
// rewrite it.
func (r *Runner) finish() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()

	r.loopWg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.aborted.Load() {
		final := r.agg.Snapshot(time.Now())
		r.finalMetrics = &final
		r.state = StateCompleted
	}
	close(r.done)
}

// samplingLoop records a chart point on a fixed cadence.
func (r *Runner) samplingLoop(ctx context.Context) {
	defer r.loopWg.Done()

	ticker := time.NewTicker(r.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.recordPoint(now)
		}
	}
}

func (r *Runner) recordPoint(now time.Time) {
	snap := r.agg.Snapshot(now)
	r.series.Append(metrics.TimeSeriesPoint{
		ElapsedSec:   int(snap.ElapsedSec),
		CurrentQPS:   snap.CurrentQPS,
		AvgLatencyMs: snap.AvgLatencyMs,
		ErrorRate:    snap.ErrorRate,
		ActiveConns:  r.gate.Active(),
		TargetQPS:    r.targetQPSNow(now),
	})
}

// targetQPSNow evaluates the ramp curve against wall-clock elapsed
// time from the run start. Elapsed time keeps advancing during pause.
func (r *Runner) targetQPSNow(now time.Time) float64 {
	return r.rc.TargetQPSAt(now.Sub(r.startTime).Seconds())
}

// Pause halts new request emission. In-flight requests complete and
// are still recorded.
func (r *Runner) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRunning {
		return fmt.Errorf("cannot pause from state %s", r.state)
	}
	r.paused.Store(true)
	r.state = StatePaused
	return nil
}

// Resume clears the pause flag; pacing continues from the current
// elapsed time.
func (r *Runner) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePaused {
		return fmt.Errorf("cannot resume from state %s", r.state)
	}
	r.paused.Store(false)
	r.state = StateRunning
	return nil
}

// Stop aborts the run: outstanding transport calls are interrupted and
// their attempts discarded. The runner returns to idle.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if r.state != StateRunning && r.state != StatePaused {
		r.mu.Unlock()
		return nil
	}
	r.aborted.Store(true)
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	cancel()
	<-done

	// The idle transition happens only after all run goroutines have
	// been joined, so a follow-up Start never overlaps the old run.
	r.mu.Lock()
	r.state = StateIdle
	r.mu.Unlock()
	return nil
}

// Reset stops any active run and clears all metrics, series, and
// result state.
func (r *Runner) Reset() error {
	if err := r.Stop(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agg.Reset(time.Now())
	r.series.Reset()
	r.finalMetrics = nil
	r.emitted.Store(0)
	r.state = StateIdle
	return nil
}

// Wait blocks until the current run finishes (completed or stopped).
// Returns immediately if no run is active.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Config returns the active run's configuration, or nil before the
// first start.
func (r *Runner) Config() *config.TestConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Metrics returns a live snapshot of the run's metrics.
func (r *Runner) Metrics() metrics.TestMetrics {
	return r.agg.Snapshot(time.Now())
}

// FinalMetrics returns the snapshot taken at completion, or nil if the
// run has not completed.
func (r *Runner) FinalMetrics() *metrics.TestMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalMetrics
}

// Series returns the chart series recorded so far, oldest first.
func (r *Runner) Series() []metrics.TimeSeriesPoint {
	return r.series.Points()
}

// Distribution returns the cumulative latency distribution.
func (r *Runner) Distribution() []metrics.DistPoint {
	return r.agg.Distribution()
}

// TargetQPSNow returns the rate controller's current target, or 0
// before the first start.
func (r *Runner) TargetQPSNow() float64 {
	r.mu.Lock()
	rc := r.rc
	r.mu.Unlock()
	if rc == nil {
		return 0
	}
	return r.targetQPSNow(time.Now())
}

// ActiveConns returns the number of requests currently in flight.
func (r *Runner) ActiveConns() int {
	r.mu.Lock()
	gate := r.gate
	r.mu.Unlock()
	if gate == nil {
		return 0
	}
	return gate.Active()
}
