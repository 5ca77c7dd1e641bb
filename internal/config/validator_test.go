package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *TestConfig {
	return &TestConfig{
		URL:         "https://api.example.com/health",
		Method:      "GET",
		Concurrency: 10,
		QPS:         50,
		DurationSec: 60,
		TimeoutMs:   5000,
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_MissingURL(t *testing.T) {
	cfg := validConfig()
	cfg.URL = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}

func TestValidate_InvalidURL(t *testing.T) {
	cfg := validConfig()
	cfg.URL = "not-a-url"
	assert.Error(t, cfg.Validate())
}

func TestValidate_StopConditionExclusive(t *testing.T) {
	both := validConfig()
	both.TotalRequests = 1000
	err := both.Validate()
	require.Error(t, err, "both stop conditions set")
	assert.Contains(t, err.Error(), "exactly one stop condition")

	neither := validConfig()
	neither.DurationSec = 0
	assert.Error(t, neither.Validate(), "no stop condition set")

	countOnly := validConfig()
	countOnly.DurationSec = 0
	countOnly.TotalRequests = 1000
	assert.NoError(t, countOnly.Validate())
}

func TestValidate_Bounds(t *testing.T) {
	cfg := validConfig()
	cfg.Concurrency = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.QPS = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RampUp(t *testing.T) {
	cfg := validConfig()
	cfg.RampUp = &RampUpConfig{Enabled: true, DurationSec: 30, StartQPS: 10, Mode: RampLinear}
	assert.NoError(t, cfg.Validate())

	// startQps must stay below the target.
	cfg.RampUp.StartQPS = 50
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startQps")

	cfg.RampUp = &RampUpConfig{Enabled: true, DurationSec: 0, StartQPS: 10}
	assert.Error(t, cfg.Validate(), "ramp duration must be positive")

	cfg.RampUp = &RampUpConfig{Enabled: true, DurationSec: 30, StartQPS: 10, Mode: RampStep}
	assert.Error(t, cfg.Validate(), "step mode requires a step interval")

	cfg.RampUp = &RampUpConfig{Enabled: true, DurationSec: 30, StartQPS: 10, Mode: RampStep, StepIntervalSec: 5}
	assert.NoError(t, cfg.Validate(), "step increment may be derived")

	// A disabled ramp is not validated.
	cfg.RampUp = &RampUpConfig{Enabled: false}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_SuccessCondition(t *testing.T) {
	cfg := validConfig()
	cfg.SuccessCondition = &SuccessCondition{
		Rules: []AssertionRule{{Field: "code", Operator: OpEquals, Value: "0"}},
		Logic: LogicAnd,
	}
	assert.NoError(t, cfg.Validate())

	cfg.SuccessCondition.Rules[0].Value = ""
	err := cfg.Validate()
	require.Error(t, err, "equals requires a value")
	assert.Contains(t, err.Error(), "requires a value")

	cfg.SuccessCondition.Rules[0] = AssertionRule{Field: "code", Operator: OpExists}
	assert.NoError(t, cfg.Validate(), "exists needs no value")

	cfg.SuccessCondition.Rules[0] = AssertionRule{Field: "code", Operator: "matches"}
	assert.Error(t, cfg.Validate(), "unknown operator")

	cfg.SuccessCondition = &SuccessCondition{}
	assert.Error(t, cfg.Validate(), "empty condition")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &TestConfig{}
	err := cfg.Validate()
	require.Error(t, err)

	var verrs *ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.GreaterOrEqual(t, len(verrs.Errors), 3)
	assert.True(t, strings.Contains(err.Error(), "validation errors"))
}

func TestApplyDefaults(t *testing.T) {
	cfg := &TestConfig{URL: "https://x.test", Concurrency: 1, QPS: 1, DurationSec: 1}
	ApplyDefaults(cfg)

	assert.Equal(t, "GET", cfg.Method)
	assert.Equal(t, 30000, cfg.TimeoutMs)

	cfg.SuccessCondition = &SuccessCondition{Rules: []AssertionRule{{Field: "f", Operator: OpExists}}}
	cfg.RampUp = &RampUpConfig{Enabled: true, DurationSec: 5, StartQPS: 1}
	ApplyDefaults(cfg)
	assert.Equal(t, LogicAnd, cfg.SuccessCondition.Logic)
	assert.Equal(t, RampLinear, cfg.RampUp.Mode)
}
