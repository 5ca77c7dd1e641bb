package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the entire test configuration.
//
// Returns nil if valid, or a ValidationErrors containing all validation
// errors. A config that fails validation is rejected before any request
// is issued; no configuration problem surfaces mid-run.
func (c *TestConfig) Validate() error {
	errs := &ValidationErrors{}

	if c.URL == "" {
		errs.Add("url", "target URL is required")
	} else if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs.Add("url", fmt.Sprintf("invalid URL: %s", c.URL))
	}

	if c.Concurrency < 1 {
		errs.Add("concurrency", "must be at least 1")
	}
	if c.QPS < 1 {
		errs.Add("qps", "must be at least 1")
	}

	// Exactly one stop condition.
	hasDuration := c.DurationSec > 0
	hasCount := c.TotalRequests > 0
	if hasDuration == hasCount {
		errs.Add("durationSec/totalRequests", "exactly one stop condition must be set")
	}

	if c.ProxyURL != "" {
		if u, err := url.Parse(c.ProxyURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs.Add("proxyUrl", fmt.Sprintf("invalid proxy URL: %s", c.ProxyURL))
		}
	}

	if c.RampUp != nil && c.RampUp.Enabled {
		validateRampUp(c.RampUp, c.QPS, errs)
	}

	if c.SuccessCondition != nil {
		validateSuccessCondition(c.SuccessCondition, errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateRampUp(r *RampUpConfig, targetQPS float64, errs *ValidationErrors) {
	if r.DurationSec <= 0 {
		errs.Add("rampUp.durationSec", "must be greater than 0")
	}
	if r.StartQPS < 1 {
		errs.Add("rampUp.startQps", "must be at least 1")
	}
	if r.StartQPS >= targetQPS {
		errs.Add("rampUp.startQps", fmt.Sprintf("must be less than target qps (%.0f)", targetQPS))
	}

	switch r.Mode {
	case RampLinear, "":
	case RampStep:
		if r.StepIntervalSec <= 0 {
			errs.Add("rampUp.stepIntervalSec", "must be greater than 0 in step mode")
		}
		if r.StepQPS < 0 {
			errs.Add("rampUp.stepQps", "must not be negative")
		}
	default:
		errs.Add("rampUp.mode", fmt.Sprintf("unknown mode: %s (must be linear or step)", r.Mode))
	}
}

func validateSuccessCondition(sc *SuccessCondition, errs *ValidationErrors) {
	if len(sc.Rules) == 0 && sc.Schema == "" {
		errs.Add("successCondition", "requires at least one rule or a schema")
	}

	switch sc.Logic {
	case LogicAnd, LogicOr, "":
	default:
		errs.Add("successCondition.logic", fmt.Sprintf("unknown logic: %s (must be and or or)", sc.Logic))
	}

	for i, rule := range sc.Rules {
		field := fmt.Sprintf("successCondition.rules[%d]", i)
		if rule.Field == "" {
			errs.Add(field+".field", "field path is required")
		}

		switch rule.Operator {
		case OpExists, OpNotExists:
			// Presence checks ignore the expected value.
		case OpEquals, OpNotEquals, OpContains, OpNotContains:
			if rule.Value == "" {
				errs.Add(field+".value", fmt.Sprintf("operator %s requires a value", rule.Operator))
			}
		default:
			errs.Add(field+".operator", fmt.Sprintf("unknown operator: %s", rule.Operator))
		}
	}
}
