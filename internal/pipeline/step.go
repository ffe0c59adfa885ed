// Package pipeline runs a fixed, ordered sequence of named steps against a
// write-once run context.
//
// Each step declares the context fields it requires and produces. The engine
// checks requirements before invoking a step's action, merges the declared
// outputs afterwards, and applies the step's criticality to decide whether a
// failure aborts the run or is recorded and passed over.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     internal/runctx, internal/flock, internal/fileutil, internal/clock,
//     internal/tracing, std lib
//   - MUST NOT import: adapters (confluence, jira, mail, rtm), internal/cli
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/domain"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/runctx"
)

// Action performs a step's work. It receives a read-only view of the run
// context and returns the values of the fields it produces.
type Action func(ctx context.Context, rc runctx.Reader) (Result, error)

// Result is what an Action hands back to the engine.
type Result struct {
	// Produces holds a value for every field the step declares. It must not
	// contain undeclared fields.
	Produces map[domain.ContextField]string

	// Skipped marks a step that had nothing to do. Skipped steps may leave
	// their declared outputs unset.
	Skipped bool

	// Note is a short explanation recorded with the outcome.
	Note string
}

// Skip returns a Result that records the step as skipped.
func Skip(note string) Result {
	return Result{Skipped: true, Note: note}
}

// Step is one static entry of a pipeline definition.
type Step struct {
	// Name identifies the step in logs, outcomes and config overrides.
	Name string

	// Requires lists fields that must be set (and, for artifacts, exist on
	// disk) before Action runs.
	Requires []domain.ContextField

	// Produces lists fields Action must return on success.
	Produces []domain.ContextField

	// Criticality decides whether a failure aborts the run.
	Criticality constants.Criticality

	// Timeout bounds the action. Zero means the engine default; values above
	// the engine maximum are capped.
	Timeout time.Duration

	Action Action
}

func (s *Step) declares(field domain.ContextField) bool {
	for _, f := range s.Produces {
		if f == field {
			return true
		}
	}
	return false
}

// ValidateDefinition checks a pipeline definition: names are unique and
// non-empty, every step has an action and a known criticality, no field is
// produced twice, and every required field is produced by an earlier step.
func ValidateDefinition(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: no steps", heralderrors.ErrInvalidDefinition)
	}

	names := make(map[string]bool, len(steps))
	producedBy := make(map[domain.ContextField]string)

	for i := range steps {
		step := &steps[i]
		switch {
		case step.Name == "":
			return fmt.Errorf("%w: step %d has no name", heralderrors.ErrInvalidDefinition, i)
		case names[step.Name]:
			return fmt.Errorf("%w: duplicate step name %q", heralderrors.ErrInvalidDefinition, step.Name)
		case step.Action == nil:
			return fmt.Errorf("%w: step %q has no action", heralderrors.ErrInvalidDefinition, step.Name)
		case !step.Criticality.Valid():
			return fmt.Errorf("%w: step %q has invalid criticality %q", heralderrors.ErrInvalidDefinition, step.Name, step.Criticality)
		case step.Timeout < 0:
			return fmt.Errorf("%w: step %q has negative timeout", heralderrors.ErrInvalidDefinition, step.Name)
		}
		names[step.Name] = true

		for _, field := range step.Requires {
			if _, ok := producedBy[field]; !ok {
				return fmt.Errorf("%w: step %q requires %q which no earlier step produces",
					heralderrors.ErrInvalidDefinition, step.Name, field)
			}
		}
		for _, field := range step.Produces {
			if owner, ok := producedBy[field]; ok {
				return fmt.Errorf("%w: field %q produced by both %q and %q",
					heralderrors.ErrInvalidDefinition, field, owner, step.Name)
			}
			producedBy[field] = step.Name
		}
	}
	return nil
}
