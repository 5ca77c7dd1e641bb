package engine

import "time"

// Result records one completed, non-aborted request attempt.
//
// IDs increase monotonically in dispatch order, but completion order is
// not guaranteed to match ID order because requests race concurrently.
// Results are immutable once created.
type Result struct {
	// ID is assigned at dispatch time.
	ID int64 `json:"id"`

	// Timestamp is the wall-clock completion time.
	Timestamp time.Time `json:"timestamp"`

	// DurationMs is the request duration in milliseconds.
	DurationMs float64 `json:"durationMs"`

	// Status is the HTTP status code, or 0 for a transport failure or
	// timeout.
	Status int `json:"status"`

	// Success is the classification produced by the success evaluator.
	Success bool `json:"success"`

	// Error holds the failure description ("timeout" for timeouts),
	// empty on transport success.
	Error string `json:"error,omitempty"`

	// Bytes is the response body size.
	Bytes int64 `json:"bytes,omitempty"`

	// BusinessCode is the application-level code extracted from the
	// body, "N/A" when the configured field is absent, empty when no
	// success condition is configured.
	BusinessCode string `json:"businessCode,omitempty"`
}
