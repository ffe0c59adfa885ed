// Package config provides configuration management for herald with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (HERALD_* prefix)
//  3. Project config (.herald/config.yaml)
//  4. Global config (~/.herald/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// Credentials are never stored in configuration. Each adapter names the
// environment variable that holds its secret (the *_env keys).
//
// IMPORTANT: This package may import internal/constants, internal/errors and
// internal/tracing, but MUST NOT import internal/domain or other internal packages.
package config

import (
	"os"
	"time"

	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/tracing"
)

// Config is the root configuration structure for herald.
type Config struct {
	// Pipeline controls the run itself: where results live, locking and step policy.
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`

	// Commands are the collaborator shell commands run before report generation.
	Commands CommandsConfig `yaml:"commands" mapstructure:"commands"`

	// Retry configures the wrapper around every external adapter call.
	Retry RetryConfig `yaml:"retry" mapstructure:"retry"`

	Confluence ConfluenceConfig `yaml:"confluence" mapstructure:"confluence"`
	Jira       JiraConfig       `yaml:"jira" mapstructure:"jira"`
	RTM        RTMConfig        `yaml:"rtm" mapstructure:"rtm"`
	Email      EmailConfig      `yaml:"email" mapstructure:"email"`

	// Tracing configures OpenTelemetry export.
	Tracing tracing.Config `yaml:"tracing" mapstructure:"tracing"`
}

// PipelineConfig contains run-level settings.
type PipelineConfig struct {
	// ResultsDir holds junit.xml, the issue key file and every generated artifact.
	// Default: "test-results"
	ResultsDir string `yaml:"results_dir" mapstructure:"results_dir"`

	// WorkDir is where collaborator commands run. Empty means the current directory.
	WorkDir string `yaml:"work_dir" mapstructure:"work_dir"`

	// ResultsFile is the junit file name inside ResultsDir.
	// Default: "junit.xml"
	ResultsFile string `yaml:"results_file" mapstructure:"results_file"`

	// IssueKeyFile is the issue key side artifact inside ResultsDir.
	// Default: "rtm_execution_key.txt"
	IssueKeyFile string `yaml:"issue_key_file" mapstructure:"issue_key_file"`

	// ReportBaseName is the stem of versioned report files (<base>_v<N>.html).
	// Default: "test_result_report"
	ReportBaseName string `yaml:"report_base_name" mapstructure:"report_base_name"`

	// ReportTitle is shown in the report, the wiki page title and the email.
	// Default: "Test Result Report"
	ReportTitle string `yaml:"report_title" mapstructure:"report_title"`

	// Concurrency is "reject" or "queue": what a second trigger does while
	// a run owns the results directory.
	// Default: "reject"
	Concurrency constants.ConcurrencyPolicy `yaml:"concurrency" mapstructure:"concurrency"`

	// QueueTimeout bounds how long a queued trigger waits.
	// Default: 10 minutes
	QueueTimeout time.Duration `yaml:"queue_timeout" mapstructure:"queue_timeout"`

	// StepTimeout applies to steps without their own timeout.
	// Default: 15 minutes
	StepTimeout time.Duration `yaml:"step_timeout" mapstructure:"step_timeout"`

	// MaxStepTimeout caps every step.
	// Default: 1 hour
	MaxStepTimeout time.Duration `yaml:"max_step_timeout" mapstructure:"max_step_timeout"`

	// SummaryRetention is how many archived run summaries are kept.
	// Default: 20
	SummaryRetention int `yaml:"summary_retention" mapstructure:"summary_retention"`

	// ManualCheckout requires an operator confirmation before checkout.
	ManualCheckout bool `yaml:"manual_checkout" mapstructure:"manual_checkout"`

	// Steps overrides criticality or timeout per step name.
	Steps map[string]StepConfig `yaml:"steps,omitempty" mapstructure:"steps"`
}

// StepConfig overrides one step's built-in policy.
type StepConfig struct {
	// Criticality is "blocking" or "best_effort".
	Criticality constants.Criticality `yaml:"criticality,omitempty" mapstructure:"criticality"`

	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// CommandsConfig contains the collaborator shell commands. An empty command
// skips its step.
type CommandsConfig struct {
	Checkout string `yaml:"checkout" mapstructure:"checkout"`
	Setup    string `yaml:"setup" mapstructure:"setup"`
	Install  string `yaml:"install" mapstructure:"install"`
	Test     string `yaml:"test" mapstructure:"test"`

	// Render replaces the built-in HTML/PDF renderer when set.
	Render string `yaml:"render" mapstructure:"render"`

	// AllowTestFailures lets a failing test command pass when it still
	// wrote the results file.
	AllowTestFailures bool `yaml:"allow_test_failures" mapstructure:"allow_test_failures"`
}

// RetryConfig contains adapter retry settings. The attempt count is fixed:
// one call plus a single retry.
type RetryConfig struct {
	// Backoff is the fixed wait before the retry.
	// Default: 2 seconds
	Backoff time.Duration `yaml:"backoff" mapstructure:"backoff"`

	// CallTimeout bounds each external call.
	// Default: 60 seconds
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
}

// ConfluenceConfig configures wiki publishing. Publishing is skipped when
// BaseURL is empty.
type ConfluenceConfig struct {
	// BaseURL is the wiki root, e.g. https://example.atlassian.net/wiki.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Space   string `yaml:"space" mapstructure:"space"`
	User    string `yaml:"user" mapstructure:"user"`

	// TokenEnv names the environment variable holding the API token.
	// Default: "CONFLUENCE_TOKEN"
	TokenEnv string `yaml:"token_env" mapstructure:"token_env"`

	// Title prefixes page titles. Defaults to pipeline.report_title.
	Title string `yaml:"title" mapstructure:"title"`
}

// Enabled reports whether publishing is configured.
func (c ConfluenceConfig) Enabled() bool { return c.BaseURL != "" }

// Token reads the API token from the environment.
func (c ConfluenceConfig) Token() string { return os.Getenv(c.TokenEnv) }

// JiraConfig configures issue attachments. Attaching is skipped when BaseURL is empty.
type JiraConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	User    string `yaml:"user" mapstructure:"user"`

	// TokenEnv names the environment variable holding the API token.
	// Default: "JIRA_API_TOKEN"
	TokenEnv string `yaml:"token_env" mapstructure:"token_env"`
}

// Enabled reports whether attaching is configured.
func (c JiraConfig) Enabled() bool { return c.BaseURL != "" }

// Token reads the API token from the environment.
func (c JiraConfig) Token() string { return os.Getenv(c.TokenEnv) }

// RTMConfig configures the results import. Upload is skipped when BaseURL is empty.
type RTMConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	ProjectKey string `yaml:"project_key" mapstructure:"project_key"`

	// JobURL links the import back to the CI build.
	JobURL string `yaml:"job_url" mapstructure:"job_url"`

	// Fields are extra issue fields set on the test execution.
	Fields map[string]string `yaml:"fields,omitempty" mapstructure:"fields"`

	// PollInterval is the wait between import status checks.
	// Default: 2 seconds
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// TokenEnv names the environment variable holding the bearer token.
	// Default: "RTM_API_TOKEN"
	TokenEnv string `yaml:"token_env" mapstructure:"token_env"`
}

// Enabled reports whether upload is configured.
func (c RTMConfig) Enabled() bool { return c.BaseURL != "" }

// Token reads the bearer token from the environment.
func (c RTMConfig) Token() string { return os.Getenv(c.TokenEnv) }

// EmailConfig configures the notification email. Sending is skipped when
// Host is empty. Recipient lists accept commas and semicolons.
type EmailConfig struct {
	Host string `yaml:"host" mapstructure:"host"`

	// Port defaults to 25.
	Port int    `yaml:"port" mapstructure:"port"`
	User string `yaml:"user" mapstructure:"user"`

	// PasswordEnv names the environment variable holding the SMTP password.
	// Default: "SMTP_PASS"
	PasswordEnv string `yaml:"password_env" mapstructure:"password_env"`

	From string `yaml:"from" mapstructure:"from"`
	To   string `yaml:"to" mapstructure:"to"`
	Cc   string `yaml:"cc" mapstructure:"cc"`
	Bcc  string `yaml:"bcc" mapstructure:"bcc"`

	// InsecureSkipVerify disables certificate checks after STARTTLS.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// Enabled reports whether sending is configured.
func (c EmailConfig) Enabled() bool { return c.Host != "" }

// Password reads the SMTP password from the environment.
func (c EmailConfig) Password() string { return os.Getenv(c.PasswordEnv) }
