package pipeline

import (
	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/domain"
)

// ValidTransitions defines the run lifecycle.
//
//	Pending → Running
//	Running → Success, PartialFailure, Failed
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTransitions = map[constants.RunStatus][]constants.RunStatus{
	constants.RunStatusPending: {constants.RunStatusRunning},
	constants.RunStatusRunning: {
		constants.RunStatusSuccess,
		constants.RunStatusPartialFailure,
		constants.RunStatusFailed,
	},
}

//nolint:gochecknoglobals // Read-only lookup table for terminal state checks
var terminalStatuses = map[constants.RunStatus]bool{
	constants.RunStatusSuccess:        true,
	constants.RunStatusPartialFailure: true,
	constants.RunStatusFailed:         true,
}

// IsValidTransition checks if a transition from one status to another is allowed.
func IsValidTransition(from, to constants.RunStatus) bool {
	if from == to {
		return false
	}
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus returns true for Success, PartialFailure and Failed.
func IsTerminalStatus(status constants.RunStatus) bool {
	return terminalStatuses[status]
}

// DecideStatus derives the terminal status from recorded outcomes: Failed if
// any blocking step failed, PartialFailure if any best-effort step failed,
// Success otherwise. Cancellation and defects are decided by the engine.
func DecideStatus(outcomes []domain.StepOutcome) constants.RunStatus {
	status := constants.RunStatusSuccess
	for _, o := range outcomes {
		if !o.Failed() {
			continue
		}
		if o.Criticality == constants.CriticalityBlocking {
			return constants.RunStatusFailed
		}
		status = constants.RunStatusPartialFailure
	}
	return status
}
