package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCriticality_Valid(t *testing.T) {
	tests := []struct {
		name string
		c    Criticality
		want bool
	}{
		{"blocking", CriticalityBlocking, true},
		{"best effort", CriticalityBestEffort, true},
		{"empty", "", false},
		{"unknown", "optional", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.c.Valid())
		})
	}
}

func TestConcurrencyPolicy_Valid(t *testing.T) {
	assert.True(t, ConcurrencyReject.Valid())
	assert.True(t, ConcurrencyQueue.Valid())
	assert.False(t, ConcurrencyPolicy("wait").Valid())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "partial_failure", RunStatusPartialFailure.String())
	assert.Equal(t, "not_run", StepStatusNotRun.String())
	assert.Equal(t, "best_effort", CriticalityBestEffort.String())
}
