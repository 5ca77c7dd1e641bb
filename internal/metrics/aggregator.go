// Package metrics aggregates request results into instantaneous
// statistics and a bounded time-series for live charting.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// TestMetrics is a point-in-time derived view of a run.
type TestMetrics struct {
	TotalRequests     int64 `json:"totalRequests"`
	CompletedRequests int64 `json:"completedRequests"`
	SuccessCount      int64 `json:"successCount"`
	FailCount         int64 `json:"failCount"`

	AvgLatencyMs float64 `json:"avgLatencyMs"`
	MinLatencyMs float64 `json:"minLatencyMs"`
	MaxLatencyMs float64 `json:"maxLatencyMs"`
	P50LatencyMs float64 `json:"p50LatencyMs"`
	P90LatencyMs float64 `json:"p90LatencyMs"`
	P95LatencyMs float64 `json:"p95LatencyMs"`
	P99LatencyMs float64 `json:"p99LatencyMs"`

	// CurrentQPS counts completions in the trailing one-second window.
	CurrentQPS float64 `json:"currentQps"`
	// Throughput is completed requests divided by elapsed seconds.
	Throughput float64 `json:"throughput"`
	// ErrorRate is failCount/completedCount as a percentage.
	ErrorRate  float64 `json:"errorRate"`
	ElapsedSec float64 `json:"elapsedSec"`

	StatusCodes   map[int]int64    `json:"statusCodes"`
	BusinessCodes map[string]int64 `json:"businessCodes"`
}

// DistPoint is one bracket of the cumulative latency distribution.
type DistPoint struct {
	Quantile  float64 `json:"quantile"`
	LatencyMs float64 `json:"latencyMs"`
	Count     int64   `json:"count"`
}

// Aggregator ingests request results incrementally and derives
// TestMetrics on demand.
//
// Percentiles reported in TestMetrics are exact: they are recomputed
// from a sorted copy of every recorded sample using the nearest-rank
// method. A parallel HDR histogram feeds the latency distribution chart
// only; it never backs the percentile fields.
//
// # Thread Safety
//
// Aggregator is safe for concurrent use. Ingest is called from the
// collector goroutine while Snapshot is called from the sampling loop
// and external observers.
type Aggregator struct {
	mu sync.Mutex

	startTime time.Time

	dispatched int64
	completed  int64
	successes  int64
	failures   int64

	latencies  []float64   // milliseconds, insertion order
	recent     []time.Time // completion timestamps inside the trailing window
	latencySum float64

	statusCodes   map[int]int64
	businessCodes map[string]int64

	// Distribution view for charting (microsecond values).
	hist *hdrhistogram.Histogram
}

// qpsWindow is the trailing window used for CurrentQPS.
const qpsWindow = time.Second

// NewAggregator creates an empty aggregator with its clock started at
// start.
func NewAggregator(start time.Time) *Aggregator {
	return &Aggregator{
		startTime:     start,
		statusCodes:   make(map[int]int64),
		businessCodes: make(map[string]int64),
		// 1us to 10min at 3 significant figures covers any plausible request.
		hist: hdrhistogram.New(1, 600_000_000, 3),
	}
}

// NoteDispatched records that one request attempt has been started.
func (a *Aggregator) NoteDispatched() {
	a.mu.Lock()
	a.dispatched++
	a.mu.Unlock()
}

// NoteAborted removes a previously noted dispatch whose attempt was
// cancelled before producing a result. Aborted attempts are excluded
// from every counter.
func (a *Aggregator) NoteAborted() {
	a.mu.Lock()
	a.dispatched--
	a.mu.Unlock()
}

// Ingest records one completed, non-aborted request.
func (a *Aggregator) Ingest(durationMs float64, timestamp time.Time, status int, success bool, businessCode string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.completed++
	if success {
		a.successes++
	} else {
		a.failures++
	}

	a.latencies = append(a.latencies, durationMs)
	a.latencySum += durationMs
	a.recent = append(a.recent, timestamp)
	a.pruneRecentLocked(timestamp)

	a.statusCodes[status]++
	if businessCode != "" {
		a.businessCodes[businessCode]++
	}

	micros := int64(durationMs * 1000)
	if micros < 1 {
		micros = 1
	}
	_ = a.hist.RecordValue(micros) // Out-of-range values are clamped by construction.
}

// pruneRecentLocked drops completion timestamps older than the QPS
// window. Bounds memory without affecting cumulative counters.
func (a *Aggregator) pruneRecentLocked(now time.Time) {
	cutoff := now.Add(-qpsWindow)
	i := 0
	for i < len(a.recent) && a.recent[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		a.recent = append(a.recent[:0], a.recent[i:]...)
	}
}

// Snapshot derives TestMetrics as of now.
//
// Calling Snapshot twice without new ingests yields identical metrics
// apart from the time-relative fields (elapsed, currentQps, throughput).
func (a *Aggregator) Snapshot(now time.Time) TestMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := TestMetrics{
		TotalRequests:     a.dispatched,
		CompletedRequests: a.completed,
		SuccessCount:      a.successes,
		FailCount:         a.failures,
		StatusCodes:       make(map[int]int64, len(a.statusCodes)),
		BusinessCodes:     make(map[string]int64, len(a.businessCodes)),
	}
	for k, v := range a.statusCodes {
		m.StatusCodes[k] = v
	}
	for k, v := range a.businessCodes {
		m.BusinessCodes[k] = v
	}

	elapsed := now.Sub(a.startTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	m.ElapsedSec = elapsed

	if a.completed > 0 {
		m.ErrorRate = float64(a.failures) / float64(a.completed) * 100
		if elapsed > 0 {
			m.Throughput = float64(a.completed) / elapsed
		}
	}

	// Trailing-window rate: count completions inside the last second
	// relative to the snapshot time.
	cutoff := now.Add(-qpsWindow)
	var inWindow int
	for _, ts := range a.recent {
		if !ts.Before(cutoff) && !ts.After(now) {
			inWindow++
		}
	}
	m.CurrentQPS = float64(inWindow)

	if n := len(a.latencies); n > 0 {
		sorted := make([]float64, n)
		copy(sorted, a.latencies)
		sort.Float64s(sorted)

		m.MinLatencyMs = sorted[0]
		m.MaxLatencyMs = sorted[n-1]
		m.AvgLatencyMs = a.latencySum / float64(n)
		m.P50LatencyMs = nearestRank(sorted, 50)
		m.P90LatencyMs = nearestRank(sorted, 90)
		m.P95LatencyMs = nearestRank(sorted, 95)
		m.P99LatencyMs = nearestRank(sorted, 99)
	}

	return m
}

// nearestRank returns the p-th percentile of sorted samples using the
// nearest-rank method: index = ceil(p/100 * n) - 1, clamped to [0, n-1].
func nearestRank(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

// Distribution returns the cumulative latency distribution for
// charting, derived from the HDR histogram.
func (a *Aggregator) Distribution() []DistPoint {
	a.mu.Lock()
	defer a.mu.Unlock()

	brackets := a.hist.CumulativeDistribution()
	points := make([]DistPoint, 0, len(brackets))
	for _, b := range brackets {
		points = append(points, DistPoint{
			Quantile:  b.Quantile,
			LatencyMs: float64(b.ValueAt) / 1000,
			Count:     b.Count,
		})
	}
	return points
}

// Reset clears all state and restarts the clock at start.
func (a *Aggregator) Reset(start time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.startTime = start
	a.dispatched = 0
	a.completed = 0
	a.successes = 0
	a.failures = 0
	a.latencies = nil
	a.latencySum = 0
	a.recent = nil
	a.statusCodes = make(map[int]int64)
	a.businessCodes = make(map[string]int64)
	a.hist.Reset()
}

// Completed returns the number of results ingested so far.
func (a *Aggregator) Completed() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed
}
