package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mrz1836/herald/internal/artifact"
	"github.com/mrz1836/herald/internal/clock"
	"github.com/mrz1836/herald/internal/command"
	"github.com/mrz1836/herald/internal/config"
	"github.com/mrz1836/herald/internal/confluence"
	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/domain"
	"github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/jira"
	"github.com/mrz1836/herald/internal/mail"
	"github.com/mrz1836/herald/internal/pipeline"
	"github.com/mrz1836/herald/internal/report"
	"github.com/mrz1836/herald/internal/retry"
	"github.com/mrz1836/herald/internal/rtm"
	"github.com/mrz1836/herald/internal/signal"
	"github.com/mrz1836/herald/internal/tracing"
	"github.com/mrz1836/herald/internal/tui"
	"github.com/mrz1836/herald/internal/workflow"
)

// pipelineName labels every run in logs and summaries.
const pipelineName = "herald"

// tracerShutdownTimeout bounds the final span flush.
const tracerShutdownTimeout = 5 * time.Second

// runOptions holds the flags of the run command.
type runOptions struct {
	resultsDir        string
	workDir           string
	concurrency       string
	queueTimeout      time.Duration
	stepTimeout       time.Duration
	manualCheckout    bool
	yes               bool
	allowTestFailures bool
	trace             bool
	traceExporter     string
}

// overrides converts the flags into a config overlay.
func (o *runOptions) overrides() *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline.ResultsDir = o.resultsDir
	cfg.Pipeline.WorkDir = o.workDir
	cfg.Pipeline.Concurrency = constants.ConcurrencyPolicy(o.concurrency)
	cfg.Pipeline.QueueTimeout = o.queueTimeout
	cfg.Pipeline.StepTimeout = o.stepTimeout
	cfg.Pipeline.ManualCheckout = o.manualCheckout
	cfg.Commands.AllowTestFailures = o.allowTestFailures
	cfg.Tracing.Enabled = o.trace
	cfg.Tracing.Exporter = o.traceExporter
	return cfg
}

// runDeps are the collaborators of runPipeline that tests replace.
type runDeps struct {
	loadConfig func(ctx context.Context, overrides *config.Config) (*config.Config, error)
	// forceExit terminates the process after a second interrupt.
	forceExit func(code int)
	clock     clock.Clock
	// interactive reports whether the checkout prompt can be shown.
	interactive func() bool
}

func defaultRunDeps() runDeps {
	return runDeps{
		loadConfig: config.LoadWithOverrides,
		forceExit:  os.Exit,
		clock:      clock.RealClock{},
	}
}

// AddRunCommand adds the run command to the root command.
func AddRunCommand(root *cobra.Command, flags *GlobalFlags) {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the report pipeline",
		Long: `Run the full pipeline against one results directory.

Steps, in order:
  • checkout, setup-environment, install-dependencies, run-tests
  • generate-report        next HTML/PDF version and results archive
  • resolve-issue-key      reads the issue key side artifact
  • publish-confluence, attach-jira, send-email, upload-rtm

The first four steps and report generation are blocking: a failure stops
the run. Publishers are best effort: a failure is recorded and the run
continues. Unconfigured publishers are skipped.

Press Ctrl+C once to stop before the next step starts; press it again to
exit immediately.

Exit codes:
  0  success or partial failure
  1  a blocking step failed, the run was cancelled, or another run holds the directory
  2  invalid flags or configuration

Examples:
  herald run
  herald run --results-dir build/test-results --concurrency queue
  herald run --manual-checkout --yes
  herald run -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), flags, opts, defaultRunDeps())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.resultsDir, "results-dir", "", "results directory (default from pipeline.results_dir)")
	f.StringVar(&opts.workDir, "work-dir", "", "working directory for collaborator commands")
	f.StringVar(&opts.concurrency, "concurrency", "", "behavior when the results directory is busy (reject|queue)")
	f.DurationVar(&opts.queueTimeout, "queue-timeout", 0, "maximum wait under the queue policy")
	f.DurationVar(&opts.stepTimeout, "step-timeout", 0, "timeout for steps without their own")
	f.BoolVar(&opts.manualCheckout, "manual-checkout", false, "ask for confirmation before checkout")
	f.BoolVarP(&opts.yes, "yes", "y", false, "confirm the manual checkout without prompting")
	f.BoolVar(&opts.allowTestFailures, "allow-test-failures", false, "continue when tests fail but results were written")
	f.BoolVar(&opts.trace, "trace", false, "enable OpenTelemetry tracing")
	f.StringVar(&opts.traceExporter, "trace-exporter", "", "trace exporter (none|file|stdout|otlp)")

	root.AddCommand(cmd)
}

// runPipeline loads configuration, takes the results directory lock and
// executes one run. The summary is written to w; live command output goes
// to liveOut.
func runPipeline(ctx context.Context, w, liveOut io.Writer, flags *GlobalFlags, opts *runOptions, deps runDeps) error {
	select {
	case <-ctx.Done():
		return errors.Wrap(errors.ErrCancelled, "run not started")
	default:
	}

	logger := GetLogger()

	cfg, err := deps.loadConfig(ctx, opts.overrides())
	if err != nil {
		return errors.NewExitCode2Error(err)
	}

	handler := signal.NewHandler(ctx)
	defer handler.Stop()
	ctx = handler.Context()
	stop := make(chan struct{})
	defer close(stop)
	go watchInterrupts(handler, stop, logger, deps.forceExit)

	resultsDir := cfg.Pipeline.ResultsDir
	if err := os.MkdirAll(resultsDir, 0o750); err != nil {
		return errors.Wrapf(err, "failed to create results directory %s", resultsDir)
	}

	release, err := pipeline.AcquireRunLock(ctx, resultsDir, pipeline.LockOptions{
		Policy:       cfg.Pipeline.Concurrency,
		QueueTimeout: cfg.Pipeline.QueueTimeout,
	})
	if err != nil {
		return err
	}
	defer release()

	provider, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return errors.NewExitCode2Error(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tracerShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	if flags.Quiet || flags.Output == OutputJSON {
		liveOut = nil
	}
	gate := &tui.CheckoutGate{AssumeYes: opts.yes, Interactive: deps.interactive}
	wf, err := buildDeps(cfg, logger, gate.Confirm, liveOut)
	if err != nil {
		return errors.NewExitCode2Error(err)
	}
	steps, err := workflow.Steps(wf)
	if err != nil {
		return errors.NewExitCode2Error(err)
	}

	archiveDir, err := config.RunsDir()
	if err != nil {
		logger.Warn().Err(err).Msg("run summaries will not be archived")
		archiveDir = ""
	}
	engine, err := pipeline.NewEngine(steps, pipeline.Options{
		Name:               pipelineName,
		ResultsDir:         resultsDir,
		Logger:             logger,
		Store:              pipeline.NewFileStore(resultsDir, archiveDir, cfg.Pipeline.SummaryRetention),
		Tracer:             provider.Tracer(),
		Clock:              deps.clock,
		DefaultStepTimeout: cfg.Pipeline.StepTimeout,
		MaxStepTimeout:     cfg.Pipeline.MaxStepTimeout,
	})
	if err != nil {
		return err
	}

	run, runErr := engine.Execute(ctx)
	if run != nil {
		if err := writeSummary(w, flags.Output, run.Summary(), deps.clock); err != nil {
			logger.Warn().Err(err).Msg("failed to render run summary")
		}
	}
	return runErr
}

// watchInterrupts exits the process when a second interrupt arrives. The
// first one only cancels the run context.
func watchInterrupts(h *signal.Handler, stop <-chan struct{}, logger zerolog.Logger, forceExit func(int)) {
	select {
	case <-h.Interrupted():
		logger.Warn().Msg("interrupt received, stopping before the next step (press Ctrl+C again to exit now)")
	case <-stop:
		return
	}
	select {
	case <-h.Forced():
		logger.Error().Msg("second interrupt received, exiting immediately")
		forceExit(ExitInterrupted)
	case <-stop:
	}
}

// buildDeps wires the configured adapters into the workflow. Adapters with
// no base URL (or SMTP host) stay nil, which skips their step.
func buildDeps(cfg *config.Config, logger zerolog.Logger, confirm workflow.ConfirmFunc, liveOut io.Writer) (workflow.Deps, error) {
	p := cfg.Pipeline
	runner := &command.ShellRunner{}

	resolver, err := artifact.NewResolver(p.ResultsDir, p.ReportBaseName)
	if err != nil {
		return workflow.Deps{}, errors.Wrap(err, "invalid results directory")
	}
	var renderer report.Renderer
	if cfg.Commands.Render != "" {
		renderer = &report.CommandRenderer{
			Runner:  runner,
			Command: cfg.Commands.Render,
			WorkDir: p.WorkDir,
			Logger:  logger,
		}
	}

	policy := retry.Policy{
		MaxAttempts: constants.MaxAdapterAttempts,
		Backoff:     cfg.Retry.Backoff,
		CallTimeout: cfg.Retry.CallTimeout,
	}

	d := workflow.Deps{
		Runner: runner,
		Generator: report.NewGenerator(resolver, renderer, report.Options{
			ResultsFile: p.ResultsFile,
			Title:       p.ReportTitle,
			Logger:      logger,
		}),
		Commands: workflow.Commands{
			Checkout:          cfg.Commands.Checkout,
			Setup:             cfg.Commands.Setup,
			Install:           cfg.Commands.Install,
			Test:              cfg.Commands.Test,
			AllowTestFailures: cfg.Commands.AllowTestFailures,
		},
		WorkDir:        p.WorkDir,
		ResultsDir:     p.ResultsDir,
		IssueKeyPath:   filepath.Join(p.ResultsDir, p.IssueKeyFile),
		URLFile:        filepath.Join(p.ResultsDir, constants.ConfluenceURLFileName),
		AdapterTimeout: policy.StepBudget(constants.MaxPublishCalls),
		Logger:         logger,
		LiveOut:        liveOut,
	}

	if p.ManualCheckout {
		d.Confirm = confirm
	}

	if len(p.Steps) > 0 {
		d.Overrides = make(map[string]workflow.Override, len(p.Steps))
		for name, sc := range p.Steps {
			d.Overrides[name] = workflow.Override{Criticality: sc.Criticality, Timeout: sc.Timeout}
		}
	}

	// Interfaces are assigned only for enabled adapters so a disabled one
	// stays a true nil.
	if c := cfg.Confluence; c.Enabled() {
		d.Confluence = confluence.New(confluence.Config{
			BaseURL: c.BaseURL,
			Space:   c.Space,
			User:    c.User,
			Token:   c.Token(),
			Title:   c.Title,
		}, policy, logger)
	}
	if j := cfg.Jira; j.Enabled() {
		d.Jira = jira.New(jira.Config{BaseURL: j.BaseURL, User: j.User, Token: j.Token()}, policy, logger)
	}
	if r := cfg.RTM; r.Enabled() {
		d.RTM = rtm.New(rtm.Config{
			BaseURL:      r.BaseURL,
			Token:        r.Token(),
			ProjectKey:   r.ProjectKey,
			JobURL:       r.JobURL,
			Fields:       r.Fields,
			PollInterval: r.PollInterval,
		}, policy, logger)
	}
	if e := cfg.Email; e.Enabled() {
		sender := mail.NewSMTPSender(mail.SMTPConfig{
			Host:               e.Host,
			Port:               e.Port,
			User:               e.User,
			Password:           e.Password(),
			InsecureSkipVerify: e.InsecureSkipVerify,
		}, logger)
		d.Mail = mail.NewNotifier(mail.Config{
			From:  e.From,
			To:    e.To,
			Cc:    e.Cc,
			Bcc:   e.Bcc,
			Title: p.ReportTitle,
		}, sender, policy, logger)
	}

	return d, nil
}

// writeSummary renders a run summary in the requested output format.
func writeSummary(w io.Writer, format string, s *domain.RunSummary, c clock.Clock) error {
	switch format {
	case OutputJSON:
		return tui.NewJSONOutput(w).JSON(s)
	case OutputYAML:
		return writeYAML(w, s)
	case OutputMarkdown:
		out, err := tui.RenderMarkdown(tui.SummaryMarkdown(s), markdownWidth, isTerminal(w))
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, out)
		return err
	default:
		tui.RenderSummary(w, s, c)
		return nil
	}
}
