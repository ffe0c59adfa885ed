package errors

import (
	"fmt"
	"strings"
	"time"
)

// PreconditionError reports every required field that was unavailable when
// a step was about to start. The step's action is never invoked.
type PreconditionError struct {
	Step    string
	Missing []string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("step %q: missing required fields: %s", e.Step, strings.Join(e.Missing, ", "))
}

// Unwrap lets errors.Is match ErrPrecondition.
func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// MissingFieldError reports a read of an unset run-context field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("run context field %q is not set", e.Field)
}

// Unwrap lets errors.Is match ErrMissingField.
func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// ImmutableFieldError reports a second write to a write-once field.
type ImmutableFieldError struct {
	Field    string
	Existing string
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("run context field %q already set to %q", e.Field, e.Existing)
}

// Unwrap lets errors.Is match ErrImmutableField.
func (e *ImmutableFieldError) Unwrap() error { return ErrImmutableField }

// GenerationError reports a failed report generation for a results directory.
type GenerationError struct {
	Dir string
	Err error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("report generation failed for %s", e.Dir)
	}
	return fmt.Sprintf("report generation failed for %s: %v", e.Dir, e.Err)
}

// Unwrap exposes both ErrGeneration and the underlying cause.
func (e *GenerationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGeneration}
	}
	return []error{ErrGeneration, e.Err}
}

// AdapterError reports a failed external call after retries were exhausted.
// StatusCode is zero for non-HTTP failures.
type AdapterError struct {
	Adapter    string
	Op         string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *AdapterError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s failed", e.Adapter, e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both ErrAdapter and the underlying cause.
func (e *AdapterError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAdapter}
	}
	return []error{ErrAdapter, e.Err}
}

// TimeoutError reports an operation that exceeded its bound. It is also an
// adapter failure: errors.Is matches both ErrTimeout and ErrAdapter.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

// Unwrap lets errors.Is match ErrTimeout and ErrAdapter.
func (e *TimeoutError) Unwrap() []error { return []error{ErrTimeout, ErrAdapter} }

// Kind returns a short machine-readable category for err, used in run
// summaries and the step-outcome log.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrCancelled):
		return "cancelled"
	case Is(err, ErrPrecondition):
		return "precondition"
	case Is(err, ErrImmutableField):
		return "immutable_field"
	case Is(err, ErrMissingField):
		return "missing_field"
	case Is(err, ErrTimeout):
		return "timeout"
	case Is(err, ErrGeneration):
		return "generation"
	case Is(err, ErrAdapter):
		return "adapter"
	case Is(err, ErrUndeclaredOutput), Is(err, ErrMissingOutput):
		return "output_contract"
	case Is(err, ErrCommandFailed):
		return "command"
	default:
		return "internal"
	}
}
