package constants

// RunStatus represents the state of a pipeline run.
// Status values use snake_case for JSON serialization compatibility.
//
//	Pending → Running
//	Running → Success, PartialFailure, Failed
type RunStatus string

const (
	// RunStatusPending indicates a run has been created but no step has started.
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning indicates the orchestrator is executing steps.
	RunStatusRunning RunStatus = "running"

	// RunStatusSuccess indicates every step succeeded or was skipped.
	RunStatusSuccess RunStatus = "success"

	// RunStatusPartialFailure indicates at least one best-effort step failed
	// and no blocking step failed.
	RunStatusPartialFailure RunStatus = "partial_failure"

	// RunStatusFailed indicates a blocking step failed, the run was cancelled,
	// or a defect aborted it.
	RunStatusFailed RunStatus = "failed"
)

// String returns the string representation of the RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// StepStatus is the recorded outcome of one step.
type StepStatus string

const (
	// StepStatusSuccess indicates the step's action completed and its outputs were merged.
	StepStatusSuccess StepStatus = "success"

	// StepStatusFailed indicates a precondition, action, timeout or output failure.
	StepStatusFailed StepStatus = "failed"

	// StepStatusSkipped indicates the step had nothing to do (disabled or not configured).
	StepStatusSkipped StepStatus = "skipped"

	// StepStatusNotRun indicates the run stopped before the step started.
	StepStatusNotRun StepStatus = "not_run"
)

// String returns the string representation of the StepStatus.
func (s StepStatus) String() string {
	return string(s)
}

// Criticality decides what a step failure does to the run.
type Criticality string

const (
	// CriticalityBlocking steps abort the run on failure.
	CriticalityBlocking Criticality = "blocking"

	// CriticalityBestEffort step failures are recorded and the run continues.
	CriticalityBestEffort Criticality = "best_effort"
)

// String returns the string representation of the Criticality.
func (c Criticality) String() string {
	return string(c)
}

// Valid reports whether c is a known criticality.
func (c Criticality) Valid() bool {
	return c == CriticalityBlocking || c == CriticalityBestEffort
}

// ConcurrencyPolicy decides what a second trigger does while a run is active.
type ConcurrencyPolicy string

const (
	// ConcurrencyReject fails the second trigger immediately.
	ConcurrencyReject ConcurrencyPolicy = "reject"

	// ConcurrencyQueue makes the second trigger wait, bounded by the queue timeout.
	ConcurrencyQueue ConcurrencyPolicy = "queue"
)

// Valid reports whether p is a known policy.
func (p ConcurrencyPolicy) Valid() bool {
	return p == ConcurrencyReject || p == ConcurrencyQueue
}
