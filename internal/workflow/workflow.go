// Package workflow assembles the herald pipeline: four collaborator command
// steps, report generation, issue-key resolution and the four publishers.
//
// Import rules:
//   - CAN import: internal/pipeline and every adapter package
//   - MUST NOT import: internal/cli, internal/config
package workflow

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/herald/internal/command"
	"github.com/mrz1836/herald/internal/confluence"
	"github.com/mrz1836/herald/internal/constants"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/jira"
	"github.com/mrz1836/herald/internal/mail"
	"github.com/mrz1836/herald/internal/pipeline"
	"github.com/mrz1836/herald/internal/report"
	"github.com/mrz1836/herald/internal/rtm"
)

// Step names, in execution order.
const (
	StepCheckout            = "checkout"
	StepSetupEnvironment    = "setup-environment"
	StepInstallDependencies = "install-dependencies"
	StepRunTests            = "run-tests"
	StepGenerateReport      = "generate-report"
	StepResolveIssueKey     = "resolve-issue-key"
	StepPublishConfluence   = "publish-confluence"
	StepAttachJira          = "attach-jira"
	StepSendEmail           = "send-email"
	StepUploadRTM           = "upload-rtm"
)

// StepNames returns every step name in execution order.
func StepNames() []string {
	return []string{
		StepCheckout,
		StepSetupEnvironment,
		StepInstallDependencies,
		StepRunTests,
		StepGenerateReport,
		StepResolveIssueKey,
		StepPublishConfluence,
		StepAttachJira,
		StepSendEmail,
		StepUploadRTM,
	}
}

// DefaultCriticality returns the built-in criticality of a step. Everything
// up to and including report generation is blocking.
func DefaultCriticality(step string) constants.Criticality {
	switch step {
	case StepCheckout, StepSetupEnvironment, StepInstallDependencies, StepRunTests, StepGenerateReport:
		return constants.CriticalityBlocking
	default:
		return constants.CriticalityBestEffort
	}
}

// Generator produces a versioned report.
type Generator interface {
	Generate(ctx context.Context) (*report.Output, error)
	ResultsPath() string
}

// Publisher publishes a report version to the wiki.
type Publisher interface {
	Publish(ctx context.Context, req confluence.PublishRequest) (*confluence.PublishResult, error)
}

// Attacher attaches report files to an issue.
type Attacher interface {
	Attach(ctx context.Context, issueKey string, files ...string) ([]jira.Attachment, error)
	BrowseURL(issueKey string) string
}

// Notifier emails the report.
type Notifier interface {
	Notify(ctx context.Context, note mail.Notification) (*mail.Message, error)
}

// Uploader imports the raw results into the test-management service.
type Uploader interface {
	Upload(ctx context.Context, archive, issueKey string) (*rtm.ImportStatus, error)
}

// ConfirmFunc asks the operator to confirm the checkout. It returns
// ErrCheckoutNotConfirmed when the answer is no.
type ConfirmFunc func(ctx context.Context) error

// Commands are the collaborator shell commands. An empty command skips its step.
type Commands struct {
	Checkout string
	Setup    string
	Install  string
	Test     string
	// AllowTestFailures lets run-tests succeed on a non-zero exit as long
	// as the results file was written.
	AllowTestFailures bool
}

// Override changes a step's built-in criticality or timeout.
type Override struct {
	Criticality constants.Criticality
	Timeout     time.Duration
}

// Deps are the collaborators the steps call. Nil publishers skip their step.
type Deps struct {
	Runner    command.Runner
	Generator Generator

	Confluence Publisher
	Jira       Attacher
	Mail       Notifier
	RTM        Uploader

	// Confirm gates the checkout step. Nil disables gating.
	Confirm ConfirmFunc

	Commands     Commands
	WorkDir      string
	ResultsDir   string
	IssueKeyPath string
	// URLFile receives the published page URL. Empty disables it.
	URLFile string

	// AdapterTimeout bounds each publisher step. Zero uses the engine default.
	AdapterTimeout time.Duration
	Overrides      map[string]Override

	Logger  zerolog.Logger
	LiveOut io.Writer
}

// Steps builds the pipeline definition.
func Steps(d Deps) ([]pipeline.Step, error) {
	if d.Runner == nil {
		d.Runner = &command.ShellRunner{}
	}
	if d.Generator == nil {
		return nil, fmt.Errorf("%w: no report generator", heralderrors.ErrInvalidDefinition)
	}
	known := make(map[string]bool, len(StepNames()))
	for _, name := range StepNames() {
		known[name] = true
	}
	for name, o := range d.Overrides {
		if !known[name] {
			return nil, fmt.Errorf("%w: unknown step %q in overrides", heralderrors.ErrConfigInvalidPipeline, name)
		}
		if o.Criticality != "" && !o.Criticality.Valid() {
			return nil, fmt.Errorf("%w: step %q has invalid criticality %q", heralderrors.ErrConfigInvalidPipeline, name, o.Criticality)
		}
	}

	b := &builder{d: d}
	steps := []pipeline.Step{
		b.checkout(),
		b.commandStep(StepSetupEnvironment, d.Commands.Setup),
		b.commandStep(StepInstallDependencies, d.Commands.Install),
		b.runTests(),
		b.generateReport(),
		b.resolveIssueKey(),
		b.publishConfluence(),
		b.attachJira(),
		b.sendEmail(),
		b.uploadRTM(),
	}
	for i := range steps {
		b.apply(&steps[i])
	}
	return steps, nil
}

type builder struct {
	d Deps
}

func (b *builder) apply(s *pipeline.Step) {
	s.Criticality = DefaultCriticality(s.Name)
	o, ok := b.d.Overrides[s.Name]
	if !ok {
		return
	}
	if o.Criticality != "" {
		s.Criticality = o.Criticality
	}
	if o.Timeout > 0 {
		s.Timeout = o.Timeout
	}
}
