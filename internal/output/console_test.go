package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pulsegen/pulse/internal/config"
	"github.com/pulsegen/pulse/internal/metrics"
)

func sampleMetrics() metrics.TestMetrics {
	return metrics.TestMetrics{
		TotalRequests:     120,
		CompletedRequests: 118,
		SuccessCount:      115,
		FailCount:         3,
		AvgLatencyMs:      42.5,
		MinLatencyMs:      10,
		MaxLatencyMs:      210,
		P50LatencyMs:      38,
		P90LatencyMs:      90,
		P95LatencyMs:      120,
		P99LatencyMs:      200,
		CurrentQPS:        19,
		Throughput:        19.6,
		ErrorRate:         2.5,
		ElapsedSec:        6.0,
		StatusCodes:       map[int]int64{200: 115, 500: 2, 0: 1},
		BusinessCodes:     map[string]int64{"0": 115, "1001": 3},
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	cfg := &config.TestConfig{URL: "http://example.test", Method: "GET", QPS: 20, Concurrency: 5, DurationSec: 6}
	c.RenderSummary(cfg, sampleMetrics())

	out := buf.String()
	for _, want := range []string{
		"120 dispatched, 118 completed",
		"115 (2.5% errors)",
		"p50 38.0ms",
		"p99 200.0ms",
		"0:1  200:115  500:2",
		"0:115  1001:3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}
}

func TestRenderLive_NonTTY(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.RenderLive(sampleMetrics(), 20, 4)
	c.RenderLive(sampleMetrics(), 20, 4)

	out := buf.String()
	if strings.Contains(out, "\r") {
		t.Error("non-TTY output contains carriage returns")
	}
	if got := strings.Count(out, "\n"); got != 2 {
		t.Errorf("non-TTY live output has %d lines, want 2", got)
	}
	if !strings.Contains(out, "qps") || !strings.Contains(out, "errors") {
		t.Errorf("live line missing expected labels:\n%s", out)
	}
}
