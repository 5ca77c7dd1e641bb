// Package output renders live progress and run summaries to the terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/pulsegen/pulse/internal/config"
	"github.com/pulsegen/pulse/internal/metrics"
)

// ColorScheme defines the colors used for console output.
type ColorScheme struct {
	Label   *color.Color
	Value   *color.Color
	Success *color.Color
	Warn    *color.Color
	Error   *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Label:   color.New(color.FgCyan),
		Value:   color.New(color.Bold),
		Success: color.New(color.FgGreen),
		Warn:    color.New(color.FgYellow),
		Error:   color.New(color.FgRed),
	}
}

// NoColorScheme returns a scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	scheme.Label.DisableColor()
	scheme.Value.DisableColor()
	scheme.Success.DisableColor()
	scheme.Warn.DisableColor()
	scheme.Error.DisableColor()
	return scheme
}

// Console renders live stats and final summaries.
type Console struct {
	w      io.Writer
	scheme *ColorScheme
	isTTY  bool
}

// NewConsole creates a console writing to w. Colors and in-place line
// updates are enabled only when w is a terminal.
func NewConsole(w io.Writer) *Console {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	scheme := DefaultColorScheme()
	if !tty {
		scheme = NoColorScheme()
	}

	return &Console{w: w, scheme: scheme, isTTY: tty}
}

// RenderLive writes a single status line, overwriting the previous one
// on a terminal.
func (c *Console) RenderLive(m metrics.TestMetrics, targetQPS float64, activeConns int) {
	line := fmt.Sprintf("%s %6.1fs  %s %5.0f/%-5.0f  %s %3d  %s %6d  %s %7.1fms  %s %7.1fms  %s %5.1f%%",
		c.scheme.Label.Sprint("elapsed"), m.ElapsedSec,
		c.scheme.Label.Sprint("qps"), m.CurrentQPS, targetQPS,
		c.scheme.Label.Sprint("conns"), activeConns,
		c.scheme.Label.Sprint("done"), m.CompletedRequests,
		c.scheme.Label.Sprint("avg"), m.AvgLatencyMs,
		c.scheme.Label.Sprint("p95"), m.P95LatencyMs,
		c.errorRateColor(m.ErrorRate).Sprint("errors"), m.ErrorRate,
	)

	if c.isTTY {
		fmt.Fprintf(c.w, "\r\033[2K%s", line)
	} else {
		fmt.Fprintln(c.w, line)
	}
}

// EndLive terminates the live line before printing the summary.
func (c *Console) EndLive() {
	if c.isTTY {
		fmt.Fprintln(c.w)
	}
}

func (c *Console) errorRateColor(rate float64) *color.Color {
	switch {
	case rate == 0:
		return c.scheme.Success
	case rate < 5:
		return c.scheme.Warn
	default:
		return c.scheme.Error
	}
}

// RenderSummary prints the final run report.
func (c *Console) RenderSummary(cfg *config.TestConfig, m metrics.TestMetrics) {
	fmt.Fprintln(c.w)
	c.scheme.Value.Fprintln(c.w, cfg.String())
	fmt.Fprintln(c.w, strings.Repeat("-", 60))

	c.row("requests", fmt.Sprintf("%d dispatched, %d completed", m.TotalRequests, m.CompletedRequests))
	c.row("success", fmt.Sprintf("%d (%.1f%% errors)", m.SuccessCount, m.ErrorRate))
	c.row("throughput", fmt.Sprintf("%.1f req/s over %.1fs", m.Throughput, m.ElapsedSec))
	c.row("latency", fmt.Sprintf("avg %.1fms  min %.1fms  max %.1fms", m.AvgLatencyMs, m.MinLatencyMs, m.MaxLatencyMs))
	c.row("percentiles", fmt.Sprintf("p50 %.1fms  p90 %.1fms  p95 %.1fms  p99 %.1fms",
		m.P50LatencyMs, m.P90LatencyMs, m.P95LatencyMs, m.P99LatencyMs))

	if len(m.StatusCodes) > 0 {
		c.row("status codes", formatIntCounts(m.StatusCodes))
	}
	if len(m.BusinessCodes) > 0 {
		c.row("business codes", formatStringCounts(m.BusinessCodes))
	}
}

func (c *Console) row(label, value string) {
	fmt.Fprintf(c.w, "  %s  %s\n", c.scheme.Label.Sprintf("%-14s", label), value)
}

func formatIntCounts(counts map[int]int64) string {
	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d:%d", k, counts[k]))
	}
	return strings.Join(parts, "  ")
}

func formatStringCounts(counts map[string]int64) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, counts[k]))
	}
	return strings.Join(parts, "  ")
}
