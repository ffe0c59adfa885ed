package pipeline_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/domain"
	"github.com/mrz1836/herald/internal/pipeline"
	"github.com/mrz1836/herald/internal/testutil"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from, to constants.RunStatus
		want     bool
	}{
		{constants.RunStatusPending, constants.RunStatusRunning, true},
		{constants.RunStatusRunning, constants.RunStatusSuccess, true},
		{constants.RunStatusRunning, constants.RunStatusPartialFailure, true},
		{constants.RunStatusRunning, constants.RunStatusFailed, true},
		{constants.RunStatusPending, constants.RunStatusSuccess, false},
		{constants.RunStatusRunning, constants.RunStatusRunning, false},
		{constants.RunStatusFailed, constants.RunStatusRunning, false},
		{constants.RunStatusSuccess, constants.RunStatusFailed, false},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s->%s", tc.from, tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, pipeline.IsValidTransition(tc.from, tc.to))
		})
	}
}

func TestIsTerminalStatus(t *testing.T) {
	assert.False(t, pipeline.IsTerminalStatus(constants.RunStatusPending))
	assert.False(t, pipeline.IsTerminalStatus(constants.RunStatusRunning))
	assert.True(t, pipeline.IsTerminalStatus(constants.RunStatusSuccess))
	assert.True(t, pipeline.IsTerminalStatus(constants.RunStatusPartialFailure))
	assert.True(t, pipeline.IsTerminalStatus(constants.RunStatusFailed))
}

func TestDecideStatus(t *testing.T) {
	blockingFail := domain.StepOutcome{Status: constants.StepStatusFailed, Criticality: constants.CriticalityBlocking}
	bestEffortFail := domain.StepOutcome{Status: constants.StepStatusFailed, Criticality: constants.CriticalityBestEffort}
	ok := domain.StepOutcome{Status: constants.StepStatusSuccess, Criticality: constants.CriticalityBlocking}
	skipped := domain.StepOutcome{Status: constants.StepStatusSkipped, Criticality: constants.CriticalityBestEffort}

	tests := []struct {
		name     string
		outcomes []domain.StepOutcome
		want     constants.RunStatus
	}{
		{"empty", nil, constants.RunStatusSuccess},
		{"all ok", []domain.StepOutcome{ok, skipped}, constants.RunStatusSuccess},
		{"best effort failure", []domain.StepOutcome{ok, bestEffortFail}, constants.RunStatusPartialFailure},
		{"blocking failure", []domain.StepOutcome{ok, blockingFail}, constants.RunStatusFailed},
		{"blocking wins", []domain.StepOutcome{bestEffortFail, blockingFail}, constants.RunStatusFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pipeline.DecideStatus(tc.outcomes))
		})
	}
}

// TestEngine_RunStatusProperty checks that a run is Failed iff a blocking step
// failed, PartialFailure iff only best-effort steps failed, and Success
// otherwise, and that nothing runs after a blocking failure.
func TestEngine_RunStatusProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "steps")

		steps := make([]pipeline.Step, n)
		want := constants.RunStatusSuccess
		firstBlockingFailure := -1
		for i := range steps {
			crit := rapid.SampledFrom([]constants.Criticality{
				constants.CriticalityBlocking,
				constants.CriticalityBestEffort,
			}).Draw(rt, fmt.Sprintf("criticality_%d", i))
			fails := rapid.Bool().Draw(rt, fmt.Sprintf("fails_%d", i))

			action := okAction(nil)
			if fails {
				action = failAction(testutil.ErrMockStep)
				if firstBlockingFailure < 0 {
					if crit == constants.CriticalityBlocking {
						firstBlockingFailure = i
						want = constants.RunStatusFailed
					} else {
						want = constants.RunStatusPartialFailure
					}
				}
			}
			steps[i] = pipeline.Step{Name: fmt.Sprintf("step-%d", i), Criticality: crit, Action: action}
		}

		engine, err := pipeline.NewEngine(steps, pipeline.Options{Logger: zerolog.Nop()})
		if err != nil {
			rt.Fatalf("NewEngine: %v", err)
		}
		run, _ := engine.Execute(context.Background())

		if run.Status != want {
			rt.Fatalf("status = %s, want %s", run.Status, want)
		}
		if firstBlockingFailure >= 0 {
			for _, o := range run.Summary().Steps[firstBlockingFailure+1:] {
				if o.Status != constants.StepStatusNotRun {
					rt.Fatalf("step %s ran after a blocking failure", o.Step)
				}
			}
		}
	})
}
