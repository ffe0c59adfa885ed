package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/herald/internal/clock"
	"github.com/mrz1836/herald/internal/config"
	"github.com/mrz1836/herald/internal/domain"
	"github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/pipeline"
	"github.com/mrz1836/herald/internal/tui"
)

// statusOptions holds the flags of the status command.
type statusOptions struct {
	resultsDir string
	history    int
}

// statusDeps are the collaborators of runStatus that tests replace.
type statusDeps struct {
	loadConfig func(ctx context.Context) (*config.Config, error)
	runsDir    func() (string, error)
	clock      clock.Clock
}

func defaultStatusDeps() statusDeps {
	return statusDeps{
		loadConfig: config.Load,
		runsDir:    config.RunsDir,
		clock:      clock.RealClock{},
	}
}

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(root *cobra.Command, flags *GlobalFlags) {
	opts := &statusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest run summary",
		Long: `Display the summary of the latest run in a results directory: the run
status, the report version, and each step's outcome with its failure cause.

With --history, list archived runs from ~/.herald/runs instead, newest first.

Examples:
  herald status
  herald status --results-dir build/test-results
  herald status -o markdown
  herald status --history 10 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), flags.Output, opts, defaultStatusDeps())
		},
	}

	cmd.Flags().StringVar(&opts.resultsDir, "results-dir", "", "results directory (default from pipeline.results_dir)")
	cmd.Flags().IntVar(&opts.history, "history", 0, "list up to N archived runs instead of the latest summary")

	root.AddCommand(cmd)
}

// runStatus prints the latest run summary, or the archived history.
func runStatus(ctx context.Context, w io.Writer, format string, opts *statusOptions, deps statusDeps) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if opts.history > 0 {
		return runHistory(w, format, opts.history, deps)
	}

	dir := opts.resultsDir
	if dir == "" {
		cfg, err := deps.loadConfig(ctx)
		if err != nil {
			return errors.NewExitCode2Error(err)
		}
		dir = cfg.Pipeline.ResultsDir
	}

	summary, err := pipeline.LoadSummary(dir)
	if err != nil {
		return err
	}
	return writeSummary(w, format, summary, deps.clock)
}

func runHistory(w io.Writer, format string, limit int, deps statusDeps) error {
	dir, err := deps.runsDir()
	if err != nil {
		return err
	}
	paths, err := pipeline.ListArchived(dir)
	if err != nil {
		return err
	}

	logger := GetLogger()
	runs := make([]*domain.RunSummary, 0, min(limit, len(paths)))
	for _, path := range paths[:min(limit, len(paths))] {
		s, err := pipeline.ReadSummaryFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable run summary")
			continue
		}
		runs = append(runs, s)
	}

	switch format {
	case OutputJSON:
		return tui.NewJSONOutput(w).JSON(runs)
	case OutputYAML:
		return writeYAML(w, runs)
	case OutputMarkdown:
		for _, s := range runs {
			if _, err := fmt.Fprintln(w, tui.SummaryMarkdown(s)); err != nil {
				return err
			}
		}
		return nil
	default:
		tui.RenderHistory(w, runs, deps.clock)
		return nil
	}
}
