// Package config provides configuration parsing and validation for load tests.
package config

import (
	"fmt"
	"time"
)

// TestConfig is the immutable configuration for a single test run.
//
// Exactly one stop condition must be set: DurationSec (run for a fixed
// wall-clock duration) or TotalRequests (run until N requests complete).
//
// Example YAML:
//
//	url: "https://api.example.com/health"
//	method: GET
//	qps: 50
//	concurrency: 10
//	durationSec: 60
//	timeoutMs: 5000
//	rampUp:
//	  enabled: true
//	  durationSec: 30
//	  startQps: 5
//	  mode: linear
type TestConfig struct {
	// RunID uniquely identifies this run. Assigned at start when empty.
	RunID string `json:"runId,omitempty" yaml:"runId,omitempty"`

	// URL is the target endpoint.
	URL string `json:"url" yaml:"url"`

	// Method is the HTTP method (default GET).
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// Headers are sent with every request.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Body is the raw request body.
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// Concurrency is the maximum number of in-flight requests (>= 1).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// QPS is the target request rate (>= 1).
	QPS float64 `json:"qps" yaml:"qps"`

	// DurationSec runs the test for a fixed number of seconds.
	// Mutually exclusive with TotalRequests.
	DurationSec int `json:"durationSec,omitempty" yaml:"durationSec,omitempty"`

	// TotalRequests runs the test until this many requests complete.
	// Mutually exclusive with DurationSec.
	TotalRequests int64 `json:"totalRequests,omitempty" yaml:"totalRequests,omitempty"`

	// TimeoutMs is the per-request timeout in milliseconds (default 30000).
	TimeoutMs int `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`

	// ProxyURL routes requests through an outbound HTTP proxy when set.
	ProxyURL string `json:"proxyUrl,omitempty" yaml:"proxyUrl,omitempty"`

	// SuccessCondition overrides HTTP 2xx classification when set.
	SuccessCondition *SuccessCondition `json:"successCondition,omitempty" yaml:"successCondition,omitempty"`

	// RampUp gradually increases the emission rate when enabled.
	RampUp *RampUpConfig `json:"rampUp,omitempty" yaml:"rampUp,omitempty"`
}

// RampMode selects how the emission rate approaches the target QPS.
type RampMode string

const (
	// RampLinear interpolates linearly from startQps to the target.
	RampLinear RampMode = "linear"
	// RampStep increases the rate in discrete increments.
	RampStep RampMode = "step"
)

// RampUpConfig describes a ramp-up policy.
//
// Invariants (checked by Validate): if enabled, StartQPS >= 1,
// StartQPS < the test's target QPS, and DurationSec > 0. Step mode
// additionally requires StepIntervalSec > 0; StepQPS of 0 is derived
// so the ramp completes within DurationSec.
type RampUpConfig struct {
	Enabled         bool     `json:"enabled" yaml:"enabled"`
	DurationSec     int      `json:"durationSec" yaml:"durationSec"`
	StartQPS        float64  `json:"startQps" yaml:"startQps"`
	Mode            RampMode `json:"mode" yaml:"mode"`
	StepIntervalSec int      `json:"stepIntervalSec,omitempty" yaml:"stepIntervalSec,omitempty"`
	StepQPS         float64  `json:"stepQps,omitempty" yaml:"stepQps,omitempty"`
}

// Operator is an assertion comparison operator.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "notExists"
)

// Logic combines multiple assertion rules.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// AssertionRule evaluates one field of a JSON response body.
//
// Field is a dot-separated path ("data.status"). Operators other than
// exists/notExists compare the stringified resolved value against Value.
type AssertionRule struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    string   `json:"value,omitempty" yaml:"value,omitempty"`
}

// SuccessCondition classifies responses as success or failure.
//
// Rules are combined with Logic (default "and"). When Schema is set the
// body must additionally validate against it (JSON Schema draft 7+).
type SuccessCondition struct {
	Rules  []AssertionRule `json:"rules" yaml:"rules"`
	Logic  Logic           `json:"logic,omitempty" yaml:"logic,omitempty"`
	Schema string          `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Timeout returns the per-request timeout as a time.Duration.
func (c *TestConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Duration returns the configured run duration, or zero for count-based runs.
func (c *TestConfig) Duration() time.Duration {
	return time.Duration(c.DurationSec) * time.Second
}

// ApplyDefaults fills in unset optional fields.
func ApplyDefaults(c *TestConfig) {
	if c.Method == "" {
		c.Method = "GET"
	}
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = 30000
	}
	if c.SuccessCondition != nil && c.SuccessCondition.Logic == "" {
		c.SuccessCondition.Logic = LogicAnd
	}
	if c.RampUp != nil && c.RampUp.Enabled && c.RampUp.Mode == "" {
		c.RampUp.Mode = RampLinear
	}
}

// String returns a short human-readable description of the run shape.
func (c *TestConfig) String() string {
	stop := fmt.Sprintf("%ds", c.DurationSec)
	if c.TotalRequests > 0 {
		stop = fmt.Sprintf("%d requests", c.TotalRequests)
	}
	return fmt.Sprintf("%s %s @ %.0f qps, %d concurrent, %s", c.Method, c.URL, c.QPS, c.Concurrency, stop)
}
