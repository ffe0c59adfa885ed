// Package runctx holds the write-once record threaded through every step of
// a pipeline run: the report version, the issue key, artifact paths and the
// append-only log of step outcomes.
package runctx

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mrz1836/herald/internal/domain"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/fileutil"
)

// Reader is the read-only view a step action receives.
type Reader interface {
	// Get returns the value of field or a *MissingFieldError.
	Get(field domain.ContextField) (string, error)
	// Lookup returns the value of field and whether it is set.
	Lookup(field domain.ContextField) (string, bool)
}

// Context is the run context. All fields are write-once.
// It is safe for concurrent use.
type Context struct {
	mu       sync.RWMutex
	values   map[domain.ContextField]string
	outcomes []domain.StepOutcome
}

// New returns an empty run context.
func New() *Context {
	return &Context{values: make(map[domain.ContextField]string)}
}

// Set stores value under field. It fails with ErrEmptyValue for an empty
// value and with *ImmutableFieldError when the field already holds a value.
func (c *Context) Set(field domain.ContextField, value string) error {
	if value == "" {
		return fmt.Errorf("set %s: %w", field, heralderrors.ErrEmptyValue)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.values[field]; ok && existing != "" {
		return &heralderrors.ImmutableFieldError{Field: string(field), Existing: existing}
	}
	c.values[field] = value
	return nil
}

// Get returns the value of field or a *MissingFieldError if it is unset.
func (c *Context) Get(field domain.ContextField) (string, error) {
	if v, ok := c.Lookup(field); ok {
		return v, nil
	}
	return "", &heralderrors.MissingFieldError{Field: string(field)}
}

// Lookup returns the value of field and whether it is set.
func (c *Context) Lookup(field domain.ContextField) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[field]
	return v, ok && v != ""
}

// RequireAll is the step-entry precondition. It returns a *PreconditionError
// naming every field that is unset and, for artifact fields, every path
// that does not reference an existing non-empty file.
func (c *Context) RequireAll(step string, fields []domain.ContextField) error {
	var missing []string
	for _, field := range fields {
		value, ok := c.Lookup(field)
		if !ok {
			missing = append(missing, string(field))
			continue
		}
		if _, isArtifact := field.ArtifactKind(); !isArtifact {
			continue
		}
		present, err := fileutil.NonEmptyFile(value)
		switch {
		case err != nil:
			missing = append(missing, fmt.Sprintf("%s (%s: %v)", field, value, err))
		case !present:
			missing = append(missing, fmt.Sprintf("%s (%s: %v)", field, value, heralderrors.ErrArtifactMissing))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &heralderrors.PreconditionError{Step: step, Missing: missing}
}

// ReportVersion returns the report version, or "" before generation.
func (c *Context) ReportVersion() string {
	v, _ := c.Lookup(domain.FieldReportVersion)
	return v
}

// IssueKey returns the issue key, or "" before it is resolved.
func (c *Context) IssueKey() string {
	v, _ := c.Lookup(domain.FieldIssueKey)
	return v
}

// ArtifactPaths returns the artifact paths populated so far.
func (c *Context) ArtifactPaths() map[domain.ArtifactKind]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	paths := make(map[domain.ArtifactKind]string)
	for field, v := range c.values {
		if kind, ok := field.ArtifactKind(); ok {
			paths[kind] = v
		}
	}
	return paths
}

// AppendOutcome appends to the step results log.
func (c *Context) AppendOutcome(o domain.StepOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

// Outcomes returns a copy of the step results log in append order.
func (c *Context) Outcomes() []domain.StepOutcome {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.StepOutcome, len(c.outcomes))
	copy(out, c.outcomes)
	return out
}

// Snapshot returns a copy of every set field.
func (c *Context) Snapshot() map[domain.ContextField]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[domain.ContextField]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Fields returns the names of every set field, sorted.
func (c *Context) Fields() []domain.ContextField {
	snap := c.Snapshot()
	fields := make([]domain.ContextField, 0, len(snap))
	for f := range snap {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}
