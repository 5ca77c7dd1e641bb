package metrics

import "sync"

// TimeSeriesPoint is one sampled point of the live chart series.
type TimeSeriesPoint struct {
	// ElapsedSec is the whole-second bucket this point falls in.
	ElapsedSec int `json:"elapsedSec"`

	CurrentQPS   float64 `json:"currentQps"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
	ErrorRate    float64 `json:"errorRate"`
	ActiveConns  int     `json:"activeConns"`

	// TargetQPS is the rate controller's current target, for
	// visualizing the ramp-up curve against actual throughput.
	TargetQPS float64 `json:"targetQps"`
}

// SeriesRecorder keeps an append-only, capped series of chart points.
//
// The cap is a resource bound: when full, the oldest point is evicted.
// The default cap covers five minutes at the 500ms sampling cadence.
type SeriesRecorder struct {
	mu     sync.RWMutex
	points []TimeSeriesPoint
	head   int
	count  int
	cap    int
}

// DefaultSeriesCap is the default ring size (5 minutes at 500ms).
const DefaultSeriesCap = 600

// NewSeriesRecorder creates a recorder holding at most capacity points.
func NewSeriesRecorder(capacity int) *SeriesRecorder {
	if capacity <= 0 {
		capacity = DefaultSeriesCap
	}
	return &SeriesRecorder{
		points: make([]TimeSeriesPoint, capacity),
		cap:    capacity,
	}
}

// Append adds a point, evicting the oldest when the ring is full.
func (r *SeriesRecorder) Append(p TimeSeriesPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.points[r.head] = p
	r.head = (r.head + 1) % r.cap
	if r.count < r.cap {
		r.count++
	}
}

// Points returns the series oldest-first.
func (r *SeriesRecorder) Points() []TimeSeriesPoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TimeSeriesPoint, 0, r.count)
	start := r.head - r.count
	if start < 0 {
		start += r.cap
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.points[(start+i)%r.cap])
	}
	return out
}

// Len returns the number of retained points.
func (r *SeriesRecorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Reset discards all points.
func (r *SeriesRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.count = 0
}
