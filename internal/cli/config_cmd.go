package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/herald/internal/config"
	"github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/tui"
)

// credentialStatus reports whether a credential environment variable is set.
// Values are never shown.
type credentialStatus struct {
	Env string `json:"env" yaml:"env"`
	Set bool   `json:"set" yaml:"set"`
}

// configView is the effective configuration plus credential availability.
type configView struct {
	config.Config `yaml:",inline"`

	Credentials map[string]credentialStatus `yaml:"credentials"`
}

// AddConfigCommand adds the config command group to the root command.
func AddConfigCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect herald configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the effective configuration after merging built-in defaults,
~/.herald/config.yaml, .herald/config.yaml and HERALD_* environment variables.

Credentials are read from the environment variables named by the *_env keys;
only whether each one is set is shown.

Examples:
  herald config show
  herald config show -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd.Context(), cmd.OutOrStdout(), flags.Output, config.Load)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit non-zero when invalid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd.Context(), cmd.OutOrStdout(), flags.Output, config.Load)
		},
	})

	root.AddCommand(cmd)
}

func runConfigShow(ctx context.Context, w io.Writer, format string, load func(context.Context) (*config.Config, error)) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cfg, err := load(ctx)
	if err != nil {
		return errors.NewExitCode2Error(err)
	}
	view := newConfigView(cfg)

	if format != OutputJSON {
		return writeYAML(w, view)
	}

	// Round-trip through YAML so JSON keys match the config file keys.
	var buf bytes.Buffer
	if err := writeYAML(&buf, view); err != nil {
		return err
	}
	var generic map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &generic); err != nil {
		return fmt.Errorf("failed to convert configuration: %w", err)
	}
	return tui.NewJSONOutput(w).JSON(generic)
}

func newConfigView(cfg *config.Config) configView {
	creds := make(map[string]credentialStatus, 4)
	add := func(name, env string) {
		if env == "" {
			return
		}
		creds[name] = credentialStatus{Env: env, Set: os.Getenv(env) != ""}
	}
	add("confluence", cfg.Confluence.TokenEnv)
	add("jira", cfg.Jira.TokenEnv)
	add("rtm", cfg.RTM.TokenEnv)
	add("email", cfg.Email.PasswordEnv)
	return configView{Config: *cfg, Credentials: creds}
}

func runConfigValidate(ctx context.Context, w io.Writer, format string, load func(context.Context) (*config.Config, error)) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, err := load(ctx); err != nil {
		return errors.NewExitCode2Error(err)
	}
	tui.NewOutput(w, format).Success("configuration is valid")
	return nil
}
