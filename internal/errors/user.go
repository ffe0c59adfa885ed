package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries maps sentinels to user-facing text. Order matters: the
// first errors.Is match wins, so more specific sentinels come first
// (ErrTimeout before ErrAdapter).
//
//nolint:gochecknoglobals // Pre-built mapping
var errorInfoEntries = []errorEntry{
	// ===================
	// Run lifecycle
	// ===================
	{
		err: ErrRunInProgress,
		info: ErrorInfo{
			Message: "Another herald run is already using this results directory.",
			Action:  "Wait for it to finish, or set pipeline.concurrency to 'queue'.",
		},
	},
	{
		err: ErrCancelled,
		info: ErrorInfo{
			Message: "The run was cancelled before all steps started.",
			Action:  "Re-run 'herald run'; the next report gets a new version.",
		},
	},
	{
		err: ErrRunFailed,
		info: ErrorInfo{
			Message: "The run failed. A blocking step did not succeed.",
			Action:  "Run 'herald status' to see which step failed and why.",
		},
	},
	{
		err: ErrCheckoutNotConfirmed,
		info: ErrorInfo{
			Message: "Manual checkout was not confirmed.",
			Action:  "Confirm the prompt, or pass --yes in non-interactive environments.",
		},
	},

	// ===================
	// Step contract
	// ===================
	{
		err: ErrPrecondition,
		info: ErrorInfo{
			Message: "A step was skipped because an earlier step did not provide its inputs.",
			Action:  "Fix the earlier failed step; this one will run on the next attempt.",
		},
	},
	{
		err: ErrImmutableField,
		info: ErrorInfo{
			Message: "A run value was written twice. This is a herald defect.",
			Action:  "Report the run summary and the step-outcome log.",
		},
	},
	{
		err: ErrUndeclaredOutput,
		info: ErrorInfo{
			Message: "A step returned a value it does not declare. This is a herald defect.",
		},
	},
	{
		err: ErrMissingOutput,
		info: ErrorInfo{
			Message: "A step finished without producing one of its outputs.",
		},
	},

	// ===================
	// Generation & artifacts
	// ===================
	{
		err: ErrGeneration,
		info: ErrorInfo{
			Message: "The report could not be generated from the test results.",
			Action:  "Check that the results directory contains a non-empty junit.xml.",
		},
	},
	{
		err: ErrInvalidIssueKey,
		info: ErrorInfo{
			Message: "The issue key file does not hold exactly one key.",
			Action:  "Check rtm_execution_key.txt in the results directory.",
		},
	},
	{
		err: ErrArtifactMissing,
		info: ErrorInfo{
			Message: "An expected report artifact is missing or empty.",
		},
	},
	{
		err: ErrCommandFailed,
		info: ErrorInfo{
			Message: "A configured command exited with an error.",
			Action:  "Check the command output in the herald log.",
		},
	},

	// ===================
	// External services
	// ===================
	{
		err: ErrTimeout,
		info: ErrorInfo{
			Message: "An external call timed out.",
			Action:  "Check service availability or raise retry.call_timeout.",
		},
	},
	{
		err: ErrAdapter,
		info: ErrorInfo{
			Message: "An external service call failed.",
			Action:  "Check the service URL and credentials in the herald config.",
		},
	},

	// ===================
	// Configuration & CLI
	// ===================
	{
		err: ErrConfigInvalidPipeline,
		info: ErrorInfo{
			Message: "The pipeline configuration is invalid.",
			Action:  "Run 'herald config show' and fix the pipeline section.",
		},
	},
	{
		err: ErrConfigInvalidAdapter,
		info: ErrorInfo{
			Message: "An adapter configuration value is invalid.",
			Action:  "Run 'herald config show' and fix the confluence, jira, rtm or email section.",
		},
	},
	{
		err: ErrInvalidOutputFormat,
		info: ErrorInfo{
			Message: "Invalid output format specified.",
			Action:  "Use --output text, json, yaml or markdown.",
		},
	},
	{
		err: ErrSummaryNotFound,
		info: ErrorInfo{
			Message: "No run summary was found.",
			Action:  "Run 'herald run' first, or pass --results-dir.",
		},
	},
}

// errorInfoMap provides O(1) lookup for direct sentinel error matches.
//
//nolint:gochecknoglobals // Pre-built mapping
var errorInfoMap = buildErrorInfoMap()

func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo looks up the ErrorInfo for a given error. Direct sentinels hit
// the map; wrapped and typed errors fall back to errors.Is traversal.
func getErrorInfo(err error) ErrorInfo {
	if info, ok := errorInfoMap[err]; ok {
		return info
	}
	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}
	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly message and a suggested action.
// The action is empty when there is nothing the user can do.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}

// Detail returns the human-readable cause recorded for a failed step: the
// error text itself, followed by the catalog message when one exists.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	msg := UserMessage(err)
	if msg == err.Error() {
		return msg
	}
	return err.Error() + " (" + msg + ")"
}
