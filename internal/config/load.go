package config

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/tracing"
)

// newViperInstance creates a Viper instance with the herald defaults and
// HERALD_ environment binding (pipeline.results_dir → HERALD_PIPELINE_RESULTS_DIR).
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// unmarshalAndValidate unmarshals viper config into Config, fills derived
// values and validates it.
func unmarshalAndValidate(ctx context.Context, v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	fillDerived(&cfg)

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Str("pipeline.results_dir", cfg.Pipeline.ResultsDir).
		Str("pipeline.concurrency", string(cfg.Pipeline.Concurrency)).
		Bool("confluence", cfg.Confluence.Enabled()).
		Bool("jira", cfg.Jira.Enabled()).
		Bool("rtm", cfg.RTM.Enabled()).
		Bool("email", cfg.Email.Enabled()).
		Msg("configuration loaded and unmarshaled")

	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// fillDerived sets values that default to other settings.
func fillDerived(cfg *Config) {
	if cfg.Confluence.Title == "" {
		cfg.Confluence.Title = cfg.Pipeline.ReportTitle
	}
	if cfg.Tracing.Exporter == tracing.ExporterFile && cfg.Tracing.FilePath == "" {
		if path, err := TracesPath(); err == nil {
			cfg.Tracing.FilePath = path
		}
	}
}

// Load reads configuration from all available sources with proper precedence:
// environment variables, then the project config, then the global config,
// then built-in defaults. Missing config files are not an error.
//
// For CLI flag overrides, use LoadWithOverrides instead.
func Load(ctx context.Context) (*Config, error) {
	v := newViperInstance()

	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}
	return unmarshalAndValidate(ctx, v)
}

// loadGlobalConfig attempts to load the global config file (~/.herald/config.yaml).
// Returns nil if the file doesn't exist or the home directory cannot be determined.
func loadGlobalConfig(v *viper.Viper) error {
	path, err := GlobalConfigPath()
	if err != nil || !fileExists(path) {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// loadProjectConfig attempts to load the project config file (.herald/config.yaml).
// Returns nil if the file doesn't exist.
func loadProjectConfig(v *viper.Viper) error {
	path := ProjectConfigPath()
	if !fileExists(path) {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read project config file")
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadWithOverrides loads configuration and applies CLI flag overrides,
// which have the highest precedence. Only non-zero override values apply.
func LoadWithOverrides(ctx context.Context, overrides *Config) (*Config, error) {
	cfg, err := Load(ctx)
	if err != nil {
		return nil, err
	}

	if overrides != nil {
		applyOverrides(cfg, overrides)
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}
	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths. Either path
// can be empty to skip that level. Environment variables still apply.
func LoadFromPaths(ctx context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(ctx, v)
}

// setDefaults configures all default values on the Viper instance. Every key
// is registered, even empty ones, so AutomaticEnv can bind it.
// IMPORTANT: Keys must match the mapstructure tag names exactly.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("pipeline.results_dir", d.Pipeline.ResultsDir)
	v.SetDefault("pipeline.work_dir", "")
	v.SetDefault("pipeline.results_file", d.Pipeline.ResultsFile)
	v.SetDefault("pipeline.issue_key_file", d.Pipeline.IssueKeyFile)
	v.SetDefault("pipeline.report_base_name", d.Pipeline.ReportBaseName)
	v.SetDefault("pipeline.report_title", d.Pipeline.ReportTitle)
	v.SetDefault("pipeline.concurrency", string(d.Pipeline.Concurrency))
	v.SetDefault("pipeline.queue_timeout", d.Pipeline.QueueTimeout.String())
	v.SetDefault("pipeline.step_timeout", d.Pipeline.StepTimeout.String())
	v.SetDefault("pipeline.max_step_timeout", d.Pipeline.MaxStepTimeout.String())
	v.SetDefault("pipeline.summary_retention", d.Pipeline.SummaryRetention)
	v.SetDefault("pipeline.manual_checkout", false)

	v.SetDefault("commands.checkout", "")
	v.SetDefault("commands.setup", "")
	v.SetDefault("commands.install", "")
	v.SetDefault("commands.test", "")
	v.SetDefault("commands.render", "")
	v.SetDefault("commands.allow_test_failures", false)

	v.SetDefault("retry.backoff", d.Retry.Backoff.String())
	v.SetDefault("retry.call_timeout", d.Retry.CallTimeout.String())

	v.SetDefault("confluence.base_url", "")
	v.SetDefault("confluence.space", "")
	v.SetDefault("confluence.user", "")
	v.SetDefault("confluence.token_env", d.Confluence.TokenEnv)
	v.SetDefault("confluence.title", "")

	v.SetDefault("jira.base_url", "")
	v.SetDefault("jira.user", "")
	v.SetDefault("jira.token_env", d.Jira.TokenEnv)

	v.SetDefault("rtm.base_url", "")
	v.SetDefault("rtm.project_key", "")
	v.SetDefault("rtm.job_url", "")
	v.SetDefault("rtm.poll_interval", d.RTM.PollInterval.String())
	v.SetDefault("rtm.token_env", d.RTM.TokenEnv)

	v.SetDefault("email.host", "")
	v.SetDefault("email.port", d.Email.Port)
	v.SetDefault("email.user", "")
	v.SetDefault("email.password_env", d.Email.PasswordEnv)
	v.SetDefault("email.from", "")
	v.SetDefault("email.to", "")
	v.SetDefault("email.cc", "")
	v.SetDefault("email.bcc", "")
	v.SetDefault("email.insecure_skip_verify", false)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", "")
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// applyOverrides merges non-zero override values into the config.
//
// IMPORTANT: Boolean fields cannot be overridden to false here because the
// zero value is indistinguishable from "not set". The CLI handles boolean
// flags itself:
//
//	if cmd.Flags().Changed("manual-checkout") {
//	    cfg.Pipeline.ManualCheckout = manualCheckout
//	}
func applyOverrides(cfg, overrides *Config) {
	o := overrides.Pipeline
	if o.ResultsDir != "" {
		cfg.Pipeline.ResultsDir = o.ResultsDir
	}
	if o.WorkDir != "" {
		cfg.Pipeline.WorkDir = o.WorkDir
	}
	if o.Concurrency != "" {
		cfg.Pipeline.Concurrency = o.Concurrency
	}
	if o.QueueTimeout != 0 {
		cfg.Pipeline.QueueTimeout = o.QueueTimeout
	}
	if o.StepTimeout != 0 {
		cfg.Pipeline.StepTimeout = o.StepTimeout
	}
	if o.ManualCheckout {
		cfg.Pipeline.ManualCheckout = true
	}
	if overrides.Commands.AllowTestFailures {
		cfg.Commands.AllowTestFailures = true
	}
	if overrides.Tracing.Enabled {
		cfg.Tracing.Enabled = true
	}
	if overrides.Tracing.Exporter != "" {
		cfg.Tracing.Exporter = overrides.Tracing.Exporter
	}
}

// viperDecoderOption configures mapstructure to decode durations from strings.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}
