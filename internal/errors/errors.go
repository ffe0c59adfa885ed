// Package errors provides centralized error handling for herald.
//
// Sentinel errors categorize failures so callers can branch with errors.Is().
// Typed errors (see types.go) carry structured detail and unwrap to their
// sentinel, so both errors.Is() and errors.As() work on any wrapped chain.
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
var (
	// ErrPrecondition indicates that a step's required run-context fields
	// were missing when the step was about to start.
	ErrPrecondition = errors.New("step precondition not met")

	// ErrMissingField indicates that a run-context field was read before it was set.
	ErrMissingField = errors.New("run context field not set")

	// ErrImmutableField indicates an attempt to overwrite a write-once
	// run-context field. This is a programming defect and aborts the run.
	ErrImmutableField = errors.New("run context field is write-once")

	// ErrUndeclaredOutput indicates a step returned a field it does not
	// declare in its produces set.
	ErrUndeclaredOutput = errors.New("step produced an undeclared field")

	// ErrMissingOutput indicates a successful step did not return a field it declares.
	ErrMissingOutput = errors.New("step did not produce a declared field")

	// ErrGeneration indicates that report generation failed, usually because
	// the results directory holds no test results.
	ErrGeneration = errors.New("report generation failed")

	// ErrAdapter indicates that an external adapter call (Confluence, Jira,
	// SMTP, RTM, renderer) failed.
	ErrAdapter = errors.New("adapter call failed")

	// ErrTimeout indicates that an operation exceeded its time bound.
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled indicates that the run was cancelled before all steps started.
	ErrCancelled = errors.New("run cancelled")

	// ErrRunInProgress indicates another run already owns the results directory.
	ErrRunInProgress = errors.New("another run is in progress for this results directory")

	// ErrRunFailed indicates the run finished with status failed.
	ErrRunFailed = errors.New("run failed")

	// ErrInvalidTransition indicates an illegal run status transition.
	ErrInvalidTransition = errors.New("invalid run status transition")

	// ErrInvalidDefinition indicates a malformed pipeline definition
	// (duplicate names, nil action, unsatisfiable requires).
	ErrInvalidDefinition = errors.New("invalid pipeline definition")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrInvalidIssueKey indicates the issue-key side artifact did not hold
	// exactly one whitespace-free identifier.
	ErrInvalidIssueKey = errors.New("invalid issue key")

	// ErrNoVersion indicates no report version has been produced yet.
	ErrNoVersion = errors.New("no report version found")

	// ErrArtifactMissing indicates an artifact file is absent or empty.
	ErrArtifactMissing = errors.New("artifact file missing or empty")

	// ErrCheckoutNotConfirmed indicates manual checkout gating was enabled
	// and the operator did not confirm.
	ErrCheckoutNotConfirmed = errors.New("manual checkout not confirmed")

	// ErrCommandFailed indicates that an external command exited non-zero.
	ErrCommandFailed = errors.New("command failed")

	// ErrSummaryNotFound indicates no run summary exists in the results directory.
	ErrSummaryNotFound = errors.New("run summary not found")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidPipeline indicates an invalid pipeline configuration value.
	ErrConfigInvalidPipeline = errors.New("invalid pipeline configuration")

	// ErrConfigInvalidRetry indicates an invalid retry configuration value.
	ErrConfigInvalidRetry = errors.New("invalid retry configuration")

	// ErrConfigInvalidAdapter indicates an invalid Confluence, Jira, RTM or
	// email configuration value.
	ErrConfigInvalidAdapter = errors.New("invalid adapter configuration")

	// ErrConfigInvalidTracing indicates an invalid tracing configuration value.
	ErrConfigInvalidTracing = errors.New("invalid tracing configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrInteractiveRequired indicates a confirmation prompt was needed but
	// no terminal is attached.
	ErrInteractiveRequired = errors.New("interactive prompt required")
)

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}
