package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulsegen/pulse/internal/config"
	"github.com/pulsegen/pulse/internal/engine"
	"github.com/pulsegen/pulse/internal/output"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test against a target endpoint",
	Long: `Execute a load test with configurable rate, concurrency, and stop
condition.

Config file mode:
  pulse run --config plan.yaml

Quick CLI mode:
  pulse run --url https://api.example.com/health \
    --qps 50 --concurrency 10 --duration 60s

Count-bounded run with ramp-up:
  pulse run --url https://api.example.com/health \
    --qps 100 --concurrency 20 --requests 5000 \
    --ramp-duration 30s --ramp-start-qps 10`,
	Run: func(cmd *cobra.Command, args []string) {
		runLoadTest(cmd)
	},
}

func init() {
	runCmd.Flags().String("config", "", "Path to a YAML test plan")
	runCmd.Flags().String("url", "", "Target URL")
	runCmd.Flags().StringP("method", "X", "GET", "HTTP method")
	runCmd.Flags().StringSliceP("header", "H", nil, "Request header (key:value), repeatable")
	runCmd.Flags().StringP("body", "d", "", "Request body")
	runCmd.Flags().Float64("qps", 10, "Target requests per second")
	runCmd.Flags().Int("concurrency", 10, "Maximum in-flight requests")
	runCmd.Flags().String("duration", "", "Run duration (e.g. 30s, 2m); exclusive with --requests")
	runCmd.Flags().Int64("requests", 0, "Total request count; exclusive with --duration")
	runCmd.Flags().String("timeout", "30s", "Per-request timeout")
	runCmd.Flags().String("proxy", "", "Outbound HTTP proxy URL")
	runCmd.Flags().String("ramp-duration", "", "Ramp-up duration (enables ramp-up)")
	runCmd.Flags().Float64("ramp-start-qps", 1, "Ramp-up starting rate")
	runCmd.Flags().String("ramp-mode", "linear", "Ramp-up mode: linear or step")
	runCmd.Flags().String("ramp-step-interval", "", "Step interval (step mode)")
	runCmd.Flags().Float64("ramp-step-qps", 0, "Step increment (step mode, derived when 0)")
	runCmd.Flags().String("out", "", "Write the final metrics summary to a JSON file")
	runCmd.Flags().BoolP("quiet", "q", false, "Suppress the live status line")
}

func runLoadTest(cmd *cobra.Command) {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	outPath, _ := cmd.Flags().GetString("out")

	runner := engine.NewRunner()
	console := output.NewConsole(os.Stdout)

	if err := runner.Start(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Ctrl-C aborts the run; the summary still prints for whatever
	// completed before the stop.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		runner.Stop()
	}()

	waitCh := make(chan struct{})
	go func() {
		runner.Wait()
		close(waitCh)
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

live:
	for {
		select {
		case <-waitCh:
			break live
		case <-ticker.C:
			if !quiet {
				m := runner.Metrics()
				console.RenderLive(m, runner.TargetQPSNow(), runner.ActiveConns())
			}
		}
	}
	if !quiet {
		console.EndLive()
	}

	final := runner.FinalMetrics()
	if final == nil {
		m := runner.Metrics()
		final = &m
	}
	console.RenderSummary(cfg, *final)

	if outPath != "" {
		if err := writeSummary(outPath, cfg, final); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing summary: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nSummary written to %s\n", outPath)
	}

	if final.FailCount > 0 {
		os.Exit(1)
	}
}

// configFromFlags builds a TestConfig from --config or quick-mode flags.
func configFromFlags(cmd *cobra.Command) (*config.TestConfig, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		return config.LoadFile(configFile)
	}

	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		return nil, fmt.Errorf("either --config or --url is required")
	}

	method, _ := cmd.Flags().GetString("method")
	headers, _ := cmd.Flags().GetStringSlice("header")
	body, _ := cmd.Flags().GetString("body")
	qps, _ := cmd.Flags().GetFloat64("qps")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	durationStr, _ := cmd.Flags().GetString("duration")
	requests, _ := cmd.Flags().GetInt64("requests")
	timeoutStr, _ := cmd.Flags().GetString("timeout")
	proxy, _ := cmd.Flags().GetString("proxy")

	cfg := &config.TestConfig{
		URL:           url,
		Method:        method,
		Body:          body,
		QPS:           qps,
		Concurrency:   concurrency,
		TotalRequests: requests,
		ProxyURL:      proxy,
	}

	if len(headers) > 0 {
		cfg.Headers = make(map[string]string, len(headers))
		for _, h := range headers {
			key, value, found := strings.Cut(h, ":")
			if !found {
				return nil, fmt.Errorf("invalid header %q, expected key:value", h)
			}
			cfg.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}

	if durationStr != "" {
		d, err := time.ParseDuration(durationStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --duration: %w", err)
		}
		cfg.DurationSec = int(d.Seconds())
	}

	if timeoutStr != "" {
		d, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout: %w", err)
		}
		cfg.TimeoutMs = int(d.Milliseconds())
	}

	if rampStr, _ := cmd.Flags().GetString("ramp-duration"); rampStr != "" {
		d, err := time.ParseDuration(rampStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --ramp-duration: %w", err)
		}
		startQPS, _ := cmd.Flags().GetFloat64("ramp-start-qps")
		mode, _ := cmd.Flags().GetString("ramp-mode")
		stepQPS, _ := cmd.Flags().GetFloat64("ramp-step-qps")

		ramp := &config.RampUpConfig{
			Enabled:     true,
			DurationSec: int(d.Seconds()),
			StartQPS:    startQPS,
			Mode:        config.RampMode(mode),
			StepQPS:     stepQPS,
		}
		if stepStr, _ := cmd.Flags().GetString("ramp-step-interval"); stepStr != "" {
			si, err := time.ParseDuration(stepStr)
			if err != nil {
				return nil, fmt.Errorf("invalid --ramp-step-interval: %w", err)
			}
			ramp.StepIntervalSec = int(si.Seconds())
		}
		cfg.RampUp = ramp
	}

	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// summaryFile is the JSON document written by --out.
type summaryFile struct {
	RunID   string             `json:"runId"`
	Config  *config.TestConfig `json:"config"`
	Metrics interface{}        `json:"metrics"`
}

func writeSummary(path string, cfg *config.TestConfig, final interface{}) error {
	doc := summaryFile{RunID: cfg.RunID, Config: cfg, Metrics: final}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
