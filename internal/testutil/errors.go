// Package testutil provides testing utilities for herald.
//
// This package contains mock errors and test helpers used across test files.
// It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
var (
	// ErrMockAPIError indicates a mock API error occurred.
	ErrMockAPIError = errors.New("API error")

	// ErrMockNetwork indicates a mock network error occurred.
	ErrMockNetwork = errors.New("network error")

	// ErrMockRender indicates a mock renderer failure.
	ErrMockRender = errors.New("render failed")

	// ErrMockSMTP indicates a mock mail delivery failure.
	ErrMockSMTP = errors.New("smtp delivery failed")

	// ErrMockStep indicates a mock step action failure.
	ErrMockStep = errors.New("step action failed")
)
