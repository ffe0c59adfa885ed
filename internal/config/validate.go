package config

import (
	"net/url"
	"strings"

	"github.com/mrz1836/herald/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - pipeline.results_dir must not be empty
//   - pipeline.concurrency must be reject or queue
//   - step timeouts must be positive, max_step_timeout at least step_timeout
//   - pipeline.summary_retention must be at least 1
//   - retry.call_timeout must be positive, retry.backoff not negative
//   - enabled adapters need their identifying settings and an http(s) URL
//   - the tracing exporter must be known
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}
	if err := validatePipelineConfig(&cfg.Pipeline); err != nil {
		return err
	}
	if err := validateRetryConfig(&cfg.Retry); err != nil {
		return err
	}
	if err := validateAdapters(cfg); err != nil {
		return err
	}
	return cfg.Tracing.Validate()
}

func validatePipelineConfig(cfg *PipelineConfig) error {
	if strings.TrimSpace(cfg.ResultsDir) == "" {
		return errors.Wrap(errors.ErrConfigInvalidPipeline,
			"pipeline.results_dir must not be empty")
	}
	if !cfg.Concurrency.Valid() {
		return errors.Wrapf(errors.ErrConfigInvalidPipeline,
			"pipeline.concurrency must be reject or queue, got %q", cfg.Concurrency)
	}
	if cfg.QueueTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidPipeline,
			"pipeline.queue_timeout must be positive, got %s", cfg.QueueTimeout)
	}
	if cfg.StepTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidPipeline,
			"pipeline.step_timeout must be positive, got %s", cfg.StepTimeout)
	}
	if cfg.MaxStepTimeout < cfg.StepTimeout {
		return errors.Wrapf(errors.ErrConfigInvalidPipeline,
			"pipeline.max_step_timeout (%s) must be at least pipeline.step_timeout (%s)",
			cfg.MaxStepTimeout, cfg.StepTimeout)
	}
	if cfg.SummaryRetention < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidPipeline,
			"pipeline.summary_retention must be at least 1, got %d", cfg.SummaryRetention)
	}
	for name, step := range cfg.Steps {
		if step.Criticality != "" && !step.Criticality.Valid() {
			return errors.Wrapf(errors.ErrConfigInvalidPipeline,
				"pipeline.steps.%s.criticality must be blocking or best_effort, got %q", name, step.Criticality)
		}
		if step.Timeout < 0 {
			return errors.Wrapf(errors.ErrConfigInvalidPipeline,
				"pipeline.steps.%s.timeout cannot be negative, got %s", name, step.Timeout)
		}
	}
	return nil
}

func validateRetryConfig(cfg *RetryConfig) error {
	if cfg.CallTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidRetry,
			"retry.call_timeout must be positive, got %s", cfg.CallTimeout)
	}
	if cfg.Backoff < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidRetry,
			"retry.backoff cannot be negative, got %s", cfg.Backoff)
	}
	return nil
}

func validateAdapters(cfg *Config) error {
	if c := cfg.Confluence; c.Enabled() {
		if err := validateBaseURL("confluence.base_url", c.BaseURL); err != nil {
			return err
		}
		if strings.Contains(c.BaseURL, "/rest/api") {
			return errors.Wrapf(errors.ErrConfigInvalidAdapter,
				"confluence.base_url must be the wiki root without /rest/api, got %q", c.BaseURL)
		}
		if c.Space == "" {
			return errors.Wrap(errors.ErrConfigInvalidAdapter, "confluence.space must not be empty")
		}
	}

	if c := cfg.Jira; c.Enabled() {
		if err := validateBaseURL("jira.base_url", c.BaseURL); err != nil {
			return err
		}
	}

	if c := cfg.RTM; c.Enabled() {
		if err := validateBaseURL("rtm.base_url", c.BaseURL); err != nil {
			return err
		}
		if c.ProjectKey == "" {
			return errors.Wrap(errors.ErrConfigInvalidAdapter, "rtm.project_key must not be empty")
		}
		if c.PollInterval <= 0 {
			return errors.Wrapf(errors.ErrConfigInvalidAdapter,
				"rtm.poll_interval must be positive, got %s", c.PollInterval)
		}
	}

	if c := cfg.Email; c.Enabled() {
		if c.Port < 1 || c.Port > 65535 {
			return errors.Wrapf(errors.ErrConfigInvalidAdapter,
				"email.port must be between 1 and 65535, got %d", c.Port)
		}
		if c.From == "" {
			return errors.Wrap(errors.ErrConfigInvalidAdapter, "email.from must not be empty")
		}
		if strings.Trim(c.To, " ,;") == "" {
			return errors.Wrap(errors.ErrConfigInvalidAdapter, "email.to must name at least one recipient")
		}
	}
	return nil
}

func validateBaseURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Wrapf(errors.ErrConfigInvalidAdapter,
			"%s must be an http(s) URL, got %q", key, raw)
	}
	return nil
}
