package metrics

import (
	"reflect"
	"testing"
	"time"
)

func ingestLatencies(a *Aggregator, base time.Time, latencies []float64) {
	for i, lat := range latencies {
		a.Ingest(lat, base.Add(time.Duration(i)*time.Millisecond), 200, true, "")
	}
}

func TestAggregator_Counts(t *testing.T) {
	base := time.Now()
	a := NewAggregator(base)

	a.NoteDispatched()
	a.NoteDispatched()
	a.NoteDispatched()
	a.Ingest(10, base, 200, true, "0")
	a.Ingest(20, base, 500, false, "1001")

	m := a.Snapshot(base.Add(time.Second))

	if m.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", m.TotalRequests)
	}
	if m.CompletedRequests != 2 {
		t.Errorf("CompletedRequests = %d, want 2", m.CompletedRequests)
	}
	if m.SuccessCount != 1 || m.FailCount != 1 {
		t.Errorf("success/fail = %d/%d, want 1/1", m.SuccessCount, m.FailCount)
	}
	if m.SuccessCount+m.FailCount != m.CompletedRequests {
		t.Errorf("successCount + failCount = %d, want completedCount %d",
			m.SuccessCount+m.FailCount, m.CompletedRequests)
	}
	if m.ErrorRate != 50 {
		t.Errorf("ErrorRate = %v, want 50", m.ErrorRate)
	}
	if m.StatusCodes[200] != 1 || m.StatusCodes[500] != 1 {
		t.Errorf("StatusCodes = %v, want one 200 and one 500", m.StatusCodes)
	}
	if m.BusinessCodes["0"] != 1 || m.BusinessCodes["1001"] != 1 {
		t.Errorf("BusinessCodes = %v, want one \"0\" and one \"1001\"", m.BusinessCodes)
	}
}

func TestAggregator_NoteAborted(t *testing.T) {
	a := NewAggregator(time.Now())

	a.NoteDispatched()
	a.NoteDispatched()
	a.NoteDispatched()
	a.NoteAborted()

	m := a.Snapshot(time.Now())
	if m.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, want 2 after one abort", m.TotalRequests)
	}
	if m.CompletedRequests != 0 {
		t.Errorf("CompletedRequests = %d, want 0", m.CompletedRequests)
	}
}

func TestAggregator_EmptySnapshot(t *testing.T) {
	a := NewAggregator(time.Now())
	m := a.Snapshot(time.Now())

	// No NaN or divide-by-zero on an empty run.
	if m.ErrorRate != 0 {
		t.Errorf("ErrorRate with no completions = %v, want 0", m.ErrorRate)
	}
	if m.Throughput != 0 {
		t.Errorf("Throughput with no completions = %v, want 0", m.Throughput)
	}
	if m.AvgLatencyMs != 0 || m.P99LatencyMs != 0 {
		t.Errorf("latency stats with no samples = %v/%v, want 0/0", m.AvgLatencyMs, m.P99LatencyMs)
	}
}

func TestAggregator_NearestRankPercentiles(t *testing.T) {
	base := time.Now()
	a := NewAggregator(base)

	// 10 known samples, ingested out of order.
	ingestLatencies(a, base, []float64{70, 10, 50, 90, 30, 100, 20, 80, 40, 60})

	m := a.Snapshot(base.Add(time.Second))

	// Nearest rank over n=10: index = ceil(p/100*10) - 1.
	if m.P50LatencyMs != 50 {
		t.Errorf("P50 = %v, want 50", m.P50LatencyMs)
	}
	if m.P90LatencyMs != 90 {
		t.Errorf("P90 = %v, want 90", m.P90LatencyMs)
	}
	if m.P95LatencyMs != 100 {
		t.Errorf("P95 = %v, want 100", m.P95LatencyMs)
	}
	if m.P99LatencyMs != 100 {
		t.Errorf("P99 = %v, want 100", m.P99LatencyMs)
	}
	if m.MinLatencyMs != 10 || m.MaxLatencyMs != 100 {
		t.Errorf("min/max = %v/%v, want 10/100", m.MinLatencyMs, m.MaxLatencyMs)
	}
	if m.AvgLatencyMs != 55 {
		t.Errorf("Avg = %v, want 55", m.AvgLatencyMs)
	}
}

func TestAggregator_PercentileOrdering(t *testing.T) {
	base := time.Now()
	a := NewAggregator(base)

	latencies := []float64{3.2, 18.4, 5.5, 120.9, 44.1, 9.7, 63.3, 5.5, 72.8, 1.1, 250.6, 33.3, 12.0}
	ingestLatencies(a, base, latencies)

	m := a.Snapshot(base.Add(time.Second))

	ordered := []float64{m.MinLatencyMs, m.P50LatencyMs, m.P90LatencyMs, m.P95LatencyMs, m.P99LatencyMs, m.MaxLatencyMs}
	for i := 1; i < len(ordered); i++ {
		if ordered[i] < ordered[i-1] {
			t.Fatalf("percentile ordering violated: %v", ordered)
		}
	}
}

func TestAggregator_SnapshotIdempotent(t *testing.T) {
	base := time.Now()
	a := NewAggregator(base)
	ingestLatencies(a, base, []float64{12, 7, 99, 45})

	at := base.Add(3 * time.Second)
	first := a.Snapshot(at)
	second := a.Snapshot(at)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("snapshots differ without new ingests:\n%+v\n%+v", first, second)
	}
}

func TestAggregator_CurrentQPSWindow(t *testing.T) {
	base := time.Now()
	a := NewAggregator(base)

	// 3 completions inside the trailing second, 2 before it.
	a.Ingest(5, base.Add(500*time.Millisecond), 200, true, "")
	a.Ingest(5, base.Add(900*time.Millisecond), 200, true, "")
	a.Ingest(5, base.Add(2100*time.Millisecond), 200, true, "")
	a.Ingest(5, base.Add(2500*time.Millisecond), 200, true, "")
	a.Ingest(5, base.Add(2900*time.Millisecond), 200, true, "")

	m := a.Snapshot(base.Add(3 * time.Second))
	if m.CurrentQPS != 3 {
		t.Errorf("CurrentQPS = %v, want 3 (trailing 1s window)", m.CurrentQPS)
	}
}

func TestAggregator_Throughput(t *testing.T) {
	base := time.Now()
	a := NewAggregator(base)
	ingestLatencies(a, base, []float64{1, 1, 1, 1})

	m := a.Snapshot(base.Add(2 * time.Second))
	if m.Throughput != 2 {
		t.Errorf("Throughput = %v, want 2 (4 completions / 2s)", m.Throughput)
	}
}

func TestAggregator_Reset(t *testing.T) {
	base := time.Now()
	a := NewAggregator(base)
	a.NoteDispatched()
	a.Ingest(10, base, 200, true, "0")

	restart := base.Add(time.Minute)
	a.Reset(restart)

	m := a.Snapshot(restart.Add(time.Second))
	if m.TotalRequests != 0 || m.CompletedRequests != 0 {
		t.Errorf("counts after Reset = %d/%d, want 0/0", m.TotalRequests, m.CompletedRequests)
	}
	if len(m.StatusCodes) != 0 || len(m.BusinessCodes) != 0 {
		t.Errorf("code maps after Reset = %v/%v, want empty", m.StatusCodes, m.BusinessCodes)
	}
	if m.ElapsedSec != 1 {
		t.Errorf("ElapsedSec after Reset = %v, want 1", m.ElapsedSec)
	}
}

func TestAggregator_SingleSamplePercentiles(t *testing.T) {
	base := time.Now()
	a := NewAggregator(base)
	a.Ingest(42, base, 200, true, "")

	m := a.Snapshot(base.Add(time.Second))
	for name, got := range map[string]float64{
		"p50": m.P50LatencyMs, "p90": m.P90LatencyMs,
		"p95": m.P95LatencyMs, "p99": m.P99LatencyMs,
		"min": m.MinLatencyMs, "max": m.MaxLatencyMs,
	} {
		if got != 42 {
			t.Errorf("%s = %v, want 42 with a single sample", name, got)
		}
	}
}

func TestAggregator_Distribution(t *testing.T) {
	base := time.Now()
	a := NewAggregator(base)
	ingestLatencies(a, base, []float64{10, 20, 30, 40, 50})

	points := a.Distribution()
	if len(points) == 0 {
		t.Fatal("Distribution() returned no points")
	}

	last := points[len(points)-1]
	if last.Count != 5 {
		t.Errorf("final bracket count = %d, want 5", last.Count)
	}
	// HDR bins at 3 significant figures stay within 0.1% of the max.
	if last.LatencyMs < 49 || last.LatencyMs > 51 {
		t.Errorf("final bracket latency = %vms, want ~50ms", last.LatencyMs)
	}
}
