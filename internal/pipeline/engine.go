package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mrz1836/herald/internal/clock"
	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/domain"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/tracing"
)

// Store persists step outcomes as they happen and the run summary at the end.
type Store interface {
	AppendOutcome(ctx context.Context, runID string, outcome domain.StepOutcome) error
	SaveSummary(ctx context.Context, summary *domain.RunSummary) error
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	// Name labels the pipeline in logs and summaries.
	Name string

	// ResultsDir is recorded in the run summary.
	ResultsDir string

	// RunID overrides the generated run identifier.
	RunID string

	Logger zerolog.Logger

	// Store is optional; without it nothing is persisted.
	Store Store

	Tracer trace.Tracer
	Clock  clock.Clock

	// DefaultStepTimeout applies to steps that declare none.
	DefaultStepTimeout time.Duration

	// MaxStepTimeout caps every step's timeout.
	MaxStepTimeout time.Duration
}

// Engine executes a validated pipeline definition. An Engine performs one
// run per Execute call; callers serialize runs with AcquireRunLock.
type Engine struct {
	steps  []Step
	opts   Options
	logger zerolog.Logger
	tracer trace.Tracer
	clock  clock.Clock
}

// NewEngine validates steps and returns an engine ready to run them.
func NewEngine(steps []Step, opts Options) (*Engine, error) {
	if err := ValidateDefinition(steps); err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = "herald"
	}
	if opts.DefaultStepTimeout <= 0 {
		opts.DefaultStepTimeout = constants.DefaultStepTimeout
	}
	if opts.MaxStepTimeout <= 0 {
		opts.MaxStepTimeout = constants.DefaultMaxStepTimeout
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("herald/pipeline")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}

	defined := make([]Step, len(steps))
	copy(defined, steps)

	return &Engine{
		steps:  defined,
		opts:   opts,
		logger: opts.Logger,
		tracer: opts.Tracer,
		clock:  opts.Clock,
	}, nil
}

// Steps returns a copy of the pipeline definition.
func (e *Engine) Steps() []Step {
	out := make([]Step, len(e.steps))
	copy(out, e.steps)
	return out
}

// Execute performs one run. The returned Run is never nil and always ends in
// a terminal status. The error is nil for Success and PartialFailure; for a
// Failed run it wraps ErrRunFailed and the cause.
//
// Cancelling ctx stops the run before the next step starts. A step that is
// already running is not interrupted; it is bounded only by its timeout.
func (e *Engine) Execute(ctx context.Context) (*Run, error) {
	runID := e.opts.RunID
	if runID == "" {
		runID = NewRunID()
	}
	run := newRun(runID, e.opts.Name, e.opts.ResultsDir, e.steps)
	run.StartedAt = e.clock.Now().UTC()

	logger := e.logger.With().
		Str("run_id", run.ID).
		Str("pipeline", run.Pipeline).
		Logger()
	ctx = logger.WithContext(ctx)

	ctx, span := e.tracer.Start(ctx, tracing.SpanRun, trace.WithAttributes(
		attribute.String(tracing.AttrRunID, run.ID),
		attribute.String(tracing.AttrPipelineName, run.Pipeline),
		attribute.Int(tracing.AttrPipelineSteps, len(e.steps)),
	))
	defer span.End()

	if err := run.transition(constants.RunStatusRunning, run.StartedAt); err != nil {
		return run, err
	}
	logger.Info().Int("steps", len(e.steps)).Msg("run started")

	cause := e.runSteps(ctx, run, logger)
	return run, e.finish(ctx, run, cause, logger, span)
}

// runSteps executes steps in order and returns the error that aborted the
// run, or nil when every step was attempted without cancellation.
func (e *Engine) runSteps(ctx context.Context, run *Run, logger zerolog.Logger) error {
	for run.CurrentStep = 0; run.CurrentStep < len(e.steps); run.CurrentStep++ {
		if err := ctx.Err(); err != nil {
			run.Cancelled = true
			logger.Warn().
				Str("next_step", e.steps[run.CurrentStep].Name).
				Msg("run cancelled before next step")
			return fmt.Errorf("%w before step %q: %w", heralderrors.ErrCancelled, e.steps[run.CurrentStep].Name, err)
		}

		step := &e.steps[run.CurrentStep]
		outcome, abortErr := e.executeStep(ctx, run, step, logger)
		e.record(ctx, run, outcome, logger)

		if abortErr != nil {
			return abortErr
		}
	}

	if err := ctx.Err(); err != nil {
		last := e.steps[len(e.steps)-1].Name
		run.Cancelled = true
		logger.Warn().
			Str("last_step", last).
			Msg("run cancelled during final step")
		return fmt.Errorf("%w during step %q: %w", heralderrors.ErrCancelled, last, err)
	}
	return nil
}

// executeStep runs one step and returns its outcome. The second return is
// non-nil when the run must stop: a blocking failure or a defect.
func (e *Engine) executeStep(ctx context.Context, run *Run, step *Step, logger zerolog.Logger) (domain.StepOutcome, error) {
	stepLogger := logger.With().
		Str("step_name", step.Name).
		Str("criticality", step.Criticality.String()).
		Logger()
	ctx = stepLogger.WithContext(ctx)

	ctx, span := e.tracer.Start(ctx, tracing.SpanPrefixStep+step.Name, trace.WithAttributes(
		attribute.String(tracing.AttrStepName, step.Name),
		attribute.String(tracing.AttrCriticality, step.Criticality.String()),
		attribute.Int(tracing.AttrStepIndex, run.CurrentStep),
	))
	defer span.End()

	stepLogger.Info().Msg("executing step")
	start := e.clock.Now()

	res, err := e.attempt(ctx, run, step)
	defect := isDefect(err)

	finished := e.clock.Now()
	outcome := domain.StepOutcome{
		Step:        step.Name,
		Criticality: step.Criticality,
		Timestamp:   finished.UTC(),
		DurationMs:  finished.Sub(start).Milliseconds(),
		Note:        res.Note,
	}

	switch {
	case err != nil:
		outcome.Status = constants.StepStatusFailed
		outcome.Error = heralderrors.Detail(err)
		outcome.ErrorKind = heralderrors.Kind(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome.ErrorKind)

		event := stepLogger.Warn()
		if defect || step.Criticality == constants.CriticalityBlocking {
			event = stepLogger.Error()
		}
		event.Err(err).
			Str("error_kind", outcome.ErrorKind).
			Int64("duration_ms", outcome.DurationMs).
			Msg("step failed")
	case res.Skipped:
		outcome.Status = constants.StepStatusSkipped
		stepLogger.Info().
			Str("note", res.Note).
			Int64("duration_ms", outcome.DurationMs).
			Msg("step skipped")
	default:
		outcome.Status = constants.StepStatusSuccess
		stepLogger.Info().
			Int64("duration_ms", outcome.DurationMs).
			Msg("step completed")
	}
	span.SetAttributes(attribute.String(tracing.AttrStepStatus, outcome.Status.String()))

	if err != nil && (defect || step.Criticality == constants.CriticalityBlocking) {
		return outcome, fmt.Errorf("step %q: %w", step.Name, err)
	}
	return outcome, nil
}

// attempt checks preconditions, invokes the action and merges its outputs.
func (e *Engine) attempt(ctx context.Context, run *Run, step *Step) (Result, error) {
	if err := run.Context.RequireAll(step.Name, step.Requires); err != nil {
		return Result{}, err
	}

	res, err := e.invoke(ctx, run, step)
	if err != nil {
		return res, err
	}
	return res, merge(run, step, res)
}

// isDefect reports a programming error that aborts the run whatever the
// step's criticality.
func isDefect(err error) bool {
	return heralderrors.Is(err, heralderrors.ErrImmutableField) ||
		heralderrors.Is(err, heralderrors.ErrUndeclaredOutput)
}

func (e *Engine) stepTimeout(step *Step) time.Duration {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = e.opts.DefaultStepTimeout
	}
	if timeout > e.opts.MaxStepTimeout {
		timeout = e.opts.MaxStepTimeout
	}
	return timeout
}

type actionResult struct {
	res Result
	err error
}

// invoke runs the action on a context detached from cancellation and bounded
// by the step timeout. A panic in the action becomes a step error.
func (e *Engine) invoke(ctx context.Context, run *Run, step *Step) (Result, error) {
	timeout := e.stepTimeout(step)
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	done := make(chan actionResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- actionResult{err: fmt.Errorf("step %q panicked: %v", step.Name, r)}
			}
		}()
		res, err := step.Action(actx, run.Context)
		done <- actionResult{res: res, err: err}
	}()

	timeoutErr := &heralderrors.TimeoutError{Op: "step " + step.Name, After: timeout}
	select {
	case out := <-done:
		if out.err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return out.res, fmt.Errorf("%w: %w", timeoutErr, out.err)
		}
		return out.res, out.err
	case <-actx.Done():
		return Result{}, timeoutErr
	}
}

// merge writes a step's outputs into the run context. Every value is checked
// before any is written.
func merge(run *Run, step *Step, res Result) error {
	for field := range res.Produces {
		if !step.declares(field) {
			return fmt.Errorf("%w: step %q returned %q", heralderrors.ErrUndeclaredOutput, step.Name, field)
		}
	}
	if !res.Skipped {
		for _, field := range step.Produces {
			if res.Produces[field] == "" {
				return fmt.Errorf("%w: step %q did not return %q", heralderrors.ErrMissingOutput, step.Name, field)
			}
		}
	}
	for _, field := range step.Produces {
		value, ok := res.Produces[field]
		if !ok || value == "" {
			continue
		}
		if err := run.Context.Set(field, value); err != nil {
			return err
		}
	}
	return nil
}

// record appends the outcome to the run context and the outcome log. A log
// write failure is reported but does not change the run.
func (e *Engine) record(ctx context.Context, run *Run, outcome domain.StepOutcome, logger zerolog.Logger) {
	run.Context.AppendOutcome(outcome)
	if e.opts.Store == nil {
		return
	}
	if err := e.opts.Store.AppendOutcome(context.WithoutCancel(ctx), run.ID, outcome); err != nil {
		logger.Warn().Err(err).Str("step_name", outcome.Step).Msg("failed to append step outcome")
	}
}

// finish moves the run to its terminal status and persists the summary.
func (e *Engine) finish(ctx context.Context, run *Run, cause error, logger zerolog.Logger, span trace.Span) error {
	status := DecideStatus(run.Context.Outcomes())
	if cause != nil {
		status = constants.RunStatusFailed
		run.Err = cause
	}
	run.CompletedAt = e.clock.Now().UTC()
	if err := run.transition(status, run.CompletedAt); err != nil {
		return err
	}

	summary := run.Summary()
	span.SetAttributes(
		attribute.String(tracing.AttrRunStatus, status.String()),
		attribute.Bool(tracing.AttrRunCancelled, run.Cancelled),
	)

	event := logger.Info()
	switch status {
	case constants.RunStatusFailed:
		event = logger.Error().Err(cause)
		span.SetStatus(codes.Error, summary.FailureReason)
	case constants.RunStatusPartialFailure:
		event = logger.Warn()
	}
	event.Str("status", status.String()).
		Bool("cancelled", run.Cancelled).
		Int64("duration_ms", summary.DurationMs).
		Msg("run finished")

	var saveErr error
	if e.opts.Store != nil {
		if saveErr = e.opts.Store.SaveSummary(context.WithoutCancel(ctx), summary); saveErr != nil {
			logger.Error().Err(saveErr).Msg("failed to save run summary")
		}
	}

	if status == constants.RunStatusFailed {
		return fmt.Errorf("%w: %w", heralderrors.ErrRunFailed, cause)
	}
	if saveErr != nil {
		return fmt.Errorf("failed to save run summary: %w", saveErr)
	}
	return nil
}
