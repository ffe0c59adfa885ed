package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/herald/internal/constants"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultResultsDir, cfg.Pipeline.ResultsDir)
	assert.Equal(t, constants.DefaultResultsFileName, cfg.Pipeline.ResultsFile)
	assert.Equal(t, constants.DefaultIssueKeyFileName, cfg.Pipeline.IssueKeyFile)
	assert.Equal(t, constants.ConcurrencyReject, cfg.Pipeline.Concurrency)
	assert.Equal(t, constants.DefaultStepTimeout, cfg.Pipeline.StepTimeout)
	assert.Equal(t, constants.DefaultSummaryRetention, cfg.Pipeline.SummaryRetention)
	assert.Equal(t, constants.DefaultCallTimeout, cfg.Retry.CallTimeout)
	assert.Equal(t, 2*time.Second, cfg.Retry.Backoff)
	assert.Equal(t, DefaultSMTPPort, cfg.Email.Port)
	assert.False(t, cfg.Tracing.Enabled)

	assert.False(t, cfg.Confluence.Enabled())
	assert.False(t, cfg.Jira.Enabled())
	assert.False(t, cfg.RTM.Enabled())
	assert.False(t, cfg.Email.Enabled())
}

func TestAdapterCredentialsFromEnv(t *testing.T) {
	t.Setenv("TEST_WIKI_TOKEN", "wiki-secret")
	t.Setenv("TEST_JIRA_TOKEN", "jira-secret")
	t.Setenv("TEST_RTM_TOKEN", "rtm-secret")
	t.Setenv("TEST_SMTP_PASS", "smtp-secret")

	assert.Equal(t, "wiki-secret", ConfluenceConfig{TokenEnv: "TEST_WIKI_TOKEN"}.Token())
	assert.Equal(t, "jira-secret", JiraConfig{TokenEnv: "TEST_JIRA_TOKEN"}.Token())
	assert.Equal(t, "rtm-secret", RTMConfig{TokenEnv: "TEST_RTM_TOKEN"}.Token())
	assert.Equal(t, "smtp-secret", EmailConfig{PasswordEnv: "TEST_SMTP_PASS"}.Password())
	assert.Empty(t, JiraConfig{TokenEnv: "TEST_UNSET_TOKEN"}.Token())
}

func TestConfig_YAMLHasNoSecrets(t *testing.T) {
	t.Setenv(DefaultJiraTokenEnv, "should-not-appear")

	cfg := DefaultConfig()
	cfg.Jira.BaseURL = "https://jira.example.com"

	out, err := yaml.Marshal(cfg)
	assert.NoError(t, err)
	assert.Contains(t, string(out), "token_env: JIRA_API_TOKEN")
	assert.NotContains(t, string(out), "should-not-appear")
}
