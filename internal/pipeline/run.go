package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/domain"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/runctx"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Transition records a status change for the audit trail.
type Transition struct {
	From constants.RunStatus
	To   constants.RunStatus
	At   time.Time
}

// Run is one execution of a pipeline. It owns exactly one run context.
type Run struct {
	ID         string
	Pipeline   string
	ResultsDir string
	Status     constants.RunStatus

	// CurrentStep is the index of the step being (or last) executed.
	CurrentStep int

	Context *runctx.Context

	StartedAt   time.Time
	CompletedAt time.Time

	// Cancelled is set when the run's context was cancelled before the run
	// finished, whether or not steps remained.
	Cancelled bool

	// Err is the cause of a Failed run: the blocking step error, the defect,
	// or ErrCancelled.
	Err error

	Transitions []Transition

	steps []Step
}

func newRun(id, name, resultsDir string, steps []Step) *Run {
	return &Run{
		ID:         id,
		Pipeline:   name,
		ResultsDir: resultsDir,
		Status:     constants.RunStatusPending,
		Context:    runctx.New(),
		steps:      steps,
	}
}

func (r *Run) transition(to constants.RunStatus, at time.Time) error {
	if !IsValidTransition(r.Status, to) {
		return fmt.Errorf("%w: %s -> %s", heralderrors.ErrInvalidTransition, r.Status, to)
	}
	r.Transitions = append(r.Transitions, Transition{From: r.Status, To: to, At: at})
	r.Status = to
	return nil
}

// Summary builds the machine-readable record of the run. Every step of the
// pipeline is listed; steps that never started are reported as not_run.
func (r *Run) Summary() *domain.RunSummary {
	outcomes := r.Context.Outcomes()
	byName := make(map[string]domain.StepOutcome, len(outcomes))
	for _, o := range outcomes {
		byName[o.Step] = o
	}

	steps := make([]domain.StepOutcome, 0, len(r.steps))
	for i := range r.steps {
		step := &r.steps[i]
		if o, ok := byName[step.Name]; ok {
			steps = append(steps, o)
			continue
		}
		steps = append(steps, domain.StepOutcome{
			Step:        step.Name,
			Status:      constants.StepStatusNotRun,
			Criticality: step.Criticality,
		})
	}

	summary := &domain.RunSummary{
		SchemaVersion: constants.RunSummarySchemaVersion,
		RunID:         r.ID,
		Pipeline:      r.Pipeline,
		ResultsDir:    r.ResultsDir,
		Status:        r.Status,
		Cancelled:     r.Cancelled,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		Context:       r.Context.Snapshot(),
		Steps:         steps,
	}
	if !r.CompletedAt.IsZero() {
		summary.DurationMs = r.CompletedAt.Sub(r.StartedAt).Milliseconds()
	}
	if r.Err != nil {
		summary.FailureReason = heralderrors.Detail(r.Err)
	}
	return summary
}
