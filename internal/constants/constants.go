// Package constants provides centralized constant values used throughout herald.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Files herald writes into the results directory.
const (
	// RunSummaryFileName is the fixed-name machine-readable summary of the latest run.
	RunSummaryFileName = "herald_run_summary.json"

	// StepLogFileName is the append-only step-outcome log (one JSON object per line).
	StepLogFileName = "herald_steps.jsonl"

	// LockFileName guards the results directory against concurrent runs.
	LockFileName = ".herald.lock"

	// VersionMarkerFileName holds the last issued report version as a plain integer.
	VersionMarkerFileName = "version.txt"

	// ConfluenceURLFileName records the published page URL for downstream tooling.
	ConfluenceURLFileName = "confluence_url.txt"

	// DefaultResultsFileName is the machine-readable test result file.
	DefaultResultsFileName = "junit.xml"

	// DefaultIssueKeyFileName is the side artifact holding the test-management issue key.
	DefaultIssueKeyFileName = "rtm_execution_key.txt"

	// DefaultReportBaseName is the stem of versioned report files (<base>_v<N>.html).
	DefaultReportBaseName = "test_result_report"

	// ResultsArchiveBaseName is the stem of the versioned raw-results archive.
	ResultsArchiveBaseName = "test_results"
)

// Directory names under the herald home directory.
const (
	// HeraldHome is the hidden directory name where herald stores its data.
	HeraldHome = ".herald"

	// RunsDir holds archived run summaries.
	RunsDir = "runs"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// TracesDir holds the file exporter output when tracing is enabled.
	TracesDir = "traces"
)

// Timeouts and bounds.
const (
	// DefaultStepTimeout bounds a step whose adapter supplies no timeout.
	DefaultStepTimeout = 15 * time.Minute

	// DefaultMaxStepTimeout is the orchestrator's upper wall-clock bound for any step.
	DefaultMaxStepTimeout = time.Hour

	// DefaultQueueTimeout bounds how long a queued run waits for the results directory.
	DefaultQueueTimeout = 10 * time.Minute

	// LockPollInterval is how often a queued run retries the cross-process lock.
	LockPollInterval = 250 * time.Millisecond

	// DefaultCallTimeout is the hard per-call timeout for external adapter calls.
	DefaultCallTimeout = 60 * time.Second

	// DefaultRetryBackoff is the fixed wait before the single retry of a transient failure.
	DefaultRetryBackoff = 2 * time.Second

	// DefaultImportPollInterval is how often RTM import status is polled.
	DefaultImportPollInterval = 2 * time.Second
)

// Retry policy.
const (
	// MaxAdapterAttempts is one call plus a single retry.
	MaxAdapterAttempts = 2

	// MaxPublishCalls is the number of sequential retried calls a publisher
	// step is budgeted for when deriving its timeout.
	MaxPublishCalls = 8
)

// Run summary retention.
const (
	// DefaultSummaryRetention is how many archived run summaries are kept.
	DefaultSummaryRetention = 20
)

// Schema version constants for data migration support.
const (
	// RunSummarySchemaVersion is the current version of the run summary JSON schema.
	RunSummarySchemaVersion = "1.0"
)
