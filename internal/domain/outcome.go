package domain

import (
	"time"

	"github.com/mrz1836/herald/internal/constants"
)

// StepOutcome is one entry in the append-only step results log.
//
// Example JSON representation:
//
//	{
//	    "step": "publish-confluence",
//	    "status": "failed",
//	    "criticality": "best_effort",
//	    "timestamp": "2026-01-12T10:05:00Z",
//	    "duration_ms": 2140,
//	    "error": "confluence create page failed (status 500) after 2 attempts",
//	    "error_kind": "adapter"
//	}
type StepOutcome struct {
	// Step is the step name.
	Step string `json:"step" yaml:"step"`

	// Status is the recorded outcome.
	Status constants.StepStatus `json:"status" yaml:"status"`

	// Criticality is the effective criticality the step ran with.
	Criticality constants.Criticality `json:"criticality" yaml:"criticality"`

	// Timestamp is when the step finished (or was recorded).
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// DurationMs is the wall-clock duration of the step.
	DurationMs int64 `json:"duration_ms" yaml:"duration_ms"`

	// Error is a human-readable cause, set only for failed steps.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// ErrorKind is a short category of the failure (precondition, timeout, adapter, ...).
	ErrorKind string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`

	// Note carries a short explanation for skipped steps.
	Note string `json:"note,omitempty" yaml:"note,omitempty"`
}

// Failed reports whether the outcome is a failure.
func (o StepOutcome) Failed() bool {
	return o.Status == constants.StepStatusFailed
}
