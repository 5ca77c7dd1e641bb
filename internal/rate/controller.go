// Package rate computes target request rates and paces emission to
// match them.
package rate

import (
	"math"

	"github.com/pulsegen/pulse/internal/config"
)

// Controller computes the instantaneous target QPS as a function of
// elapsed time and the configured ramp-up policy.
//
// Controller is purely time-driven and has no side effects; the same
// elapsed time always yields the same rate.
type Controller struct {
	targetQPS float64
	ramp      *config.RampUpConfig
	stepQPS   float64
}

// NewController creates a rate controller for the given target QPS and
// optional ramp-up policy.
func NewController(targetQPS float64, ramp *config.RampUpConfig) *Controller {
	c := &Controller{targetQPS: targetQPS, ramp: ramp}

	if ramp != nil && ramp.Enabled && ramp.Mode == config.RampStep {
		c.stepQPS = ramp.StepQPS
		if c.stepQPS <= 0 && ramp.StepIntervalSec > 0 {
			// Derive the increment so the ramp completes within its duration.
			steps := float64(ramp.DurationSec) / float64(ramp.StepIntervalSec)
			if steps > 0 {
				c.stepQPS = math.Ceil((targetQPS - ramp.StartQPS) / steps)
			}
		}
	}

	return c
}

// TargetQPSAt returns the target rate after elapsedSec seconds.
//
// With ramp-up disabled, or once the ramp duration has passed, this is
// the configured target QPS. Linear mode interpolates from startQps to
// the target over the ramp duration; step mode increases by a fixed
// increment every step interval, capped at the target.
func (c *Controller) TargetQPSAt(elapsedSec float64) float64 {
	r := c.ramp
	if r == nil || !r.Enabled || elapsedSec >= float64(r.DurationSec) {
		return c.targetQPS
	}
	if elapsedSec < 0 {
		elapsedSec = 0
	}

	switch r.Mode {
	case config.RampStep:
		if r.StepIntervalSec <= 0 {
			return c.targetQPS
		}
		steps := math.Floor(elapsedSec / float64(r.StepIntervalSec))
		return math.Min(c.targetQPS, r.StartQPS+steps*c.stepQPS)
	default:
		// Linear ramp, clamped to [startQps, targetQps].
		progress := elapsedSec / float64(r.DurationSec)
		qps := r.StartQPS + (c.targetQPS-r.StartQPS)*progress
		if qps < r.StartQPS {
			qps = r.StartQPS
		}
		if qps > c.targetQPS {
			qps = c.targetQPS
		}
		return qps
	}
}

// TargetQPS returns the configured steady-state target rate.
func (c *Controller) TargetQPS() float64 {
	return c.targetQPS
}
