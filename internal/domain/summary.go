package domain

import (
	"time"

	"github.com/mrz1836/herald/internal/constants"
)

// RunSummary is the machine-readable record of one pipeline run. It lists
// every step of the pipeline, including steps that never started.
type RunSummary struct {
	SchemaVersion string              `json:"schema_version" yaml:"schema_version"`
	RunID         string              `json:"run_id" yaml:"run_id"`
	Pipeline      string              `json:"pipeline" yaml:"pipeline"`
	ResultsDir    string              `json:"results_dir" yaml:"results_dir"`
	Status        constants.RunStatus `json:"status" yaml:"status"`
	Cancelled     bool                `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
	StartedAt     time.Time           `json:"started_at" yaml:"started_at"`
	CompletedAt   time.Time           `json:"completed_at" yaml:"completed_at"`
	DurationMs    int64               `json:"duration_ms" yaml:"duration_ms"`

	// Context is a snapshot of every run-context field that was set.
	Context map[ContextField]string `json:"context,omitempty" yaml:"context,omitempty"`

	Steps []StepOutcome `json:"steps" yaml:"steps"`
}

// StepCounts tallies step outcomes by status.
func (s *RunSummary) StepCounts() map[constants.StepStatus]int {
	counts := make(map[constants.StepStatus]int, 4)
	for _, step := range s.Steps {
		counts[step.Status]++
	}
	return counts
}

// Value returns a context value from the summary snapshot.
func (s *RunSummary) Value(field ContextField) string {
	if s.Context == nil {
		return ""
	}
	return s.Context[field]
}
