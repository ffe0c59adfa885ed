package config

import (
	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/tracing"
)

// Default values shared by DefaultConfig and the viper defaults.
const (
	DefaultResultsDir     = "test-results"
	DefaultReportTitle    = "Test Result Report"
	DefaultSMTPPort       = 25
	DefaultConfluenceEnv  = "CONFLUENCE_TOKEN"
	DefaultJiraTokenEnv   = "JIRA_API_TOKEN"
	DefaultRTMTokenEnv    = "RTM_API_TOKEN"
	DefaultSMTPPassEnv    = "SMTP_PASS"
	DefaultTracesFileName = "herald-traces.jsonl"
)

// DefaultConfig returns a new Config with default values. These are the
// base layer that config files, environment variables and flags override.
//
// Every adapter is disabled until its base URL (or SMTP host) is set, and
// no collaborator command runs until one is configured.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			ResultsDir:     DefaultResultsDir,
			ResultsFile:    constants.DefaultResultsFileName,
			IssueKeyFile:   constants.DefaultIssueKeyFileName,
			ReportBaseName: constants.DefaultReportBaseName,
			ReportTitle:    DefaultReportTitle,

			// Reject: a second trigger for the same directory fails fast
			// unless the project opts into queueing.
			Concurrency:  constants.ConcurrencyReject,
			QueueTimeout: constants.DefaultQueueTimeout,

			StepTimeout:      constants.DefaultStepTimeout,
			MaxStepTimeout:   constants.DefaultMaxStepTimeout,
			SummaryRetention: constants.DefaultSummaryRetention,
		},
		Retry: RetryConfig{
			Backoff:     constants.DefaultRetryBackoff,
			CallTimeout: constants.DefaultCallTimeout,
		},
		Confluence: ConfluenceConfig{TokenEnv: DefaultConfluenceEnv},
		Jira:       JiraConfig{TokenEnv: DefaultJiraTokenEnv},
		RTM: RTMConfig{
			TokenEnv:     DefaultRTMTokenEnv,
			PollInterval: constants.DefaultImportPollInterval,
		},
		Email: EmailConfig{
			Port:        DefaultSMTPPort,
			PasswordEnv: DefaultSMTPPassEnv,
		},
		Tracing: tracing.DefaultConfig(),
	}
}
