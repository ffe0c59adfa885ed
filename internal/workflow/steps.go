package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mrz1836/herald/internal/artifact"
	"github.com/mrz1836/herald/internal/command"
	"github.com/mrz1836/herald/internal/confluence"
	"github.com/mrz1836/herald/internal/domain"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/fileutil"
	"github.com/mrz1836/herald/internal/mail"
	"github.com/mrz1836/herald/internal/pipeline"
	"github.com/mrz1836/herald/internal/report"
	"github.com/mrz1836/herald/internal/runctx"
)

// Environment variables passed to collaborator commands.
const (
	EnvResultsDir = "HERALD_RESULTS_DIR"
	EnvWorkDir    = "HERALD_WORK_DIR"
)

func (b *builder) spec(cmd string) command.Spec {
	return command.Spec{
		Dir:     b.d.WorkDir,
		Command: cmd,
		Env: map[string]string{
			EnvResultsDir: b.d.ResultsDir,
			EnvWorkDir:    b.d.WorkDir,
		},
		LiveOut: b.d.LiveOut,
	}
}

func (b *builder) commandStep(name, cmd string) pipeline.Step {
	return pipeline.Step{
		Name: name,
		Action: func(ctx context.Context, _ runctx.Reader) (pipeline.Result, error) {
			if cmd == "" {
				return pipeline.Skip("no command configured"), nil
			}
			if _, err := b.d.Runner.Run(ctx, b.spec(cmd)); err != nil {
				return pipeline.Result{}, err
			}
			return pipeline.Result{}, nil
		},
	}
}

func (b *builder) checkout() pipeline.Step {
	step := b.commandStep(StepCheckout, b.d.Commands.Checkout)
	if b.d.Confirm == nil {
		return step
	}
	run := step.Action
	step.Action = func(ctx context.Context, rc runctx.Reader) (pipeline.Result, error) {
		if err := b.d.Confirm(ctx); err != nil {
			return pipeline.Result{}, err
		}
		b.d.Logger.Info().Msg("manual checkout confirmed")
		return run(ctx, rc)
	}
	return step
}

func (b *builder) runTests() pipeline.Step {
	return pipeline.Step{
		Name: StepRunTests,
		Action: func(ctx context.Context, _ runctx.Reader) (pipeline.Result, error) {
			cmd := b.d.Commands.Test
			if cmd == "" {
				return pipeline.Skip("no command configured"), nil
			}
			res, err := b.d.Runner.Run(ctx, b.spec(cmd))
			if err == nil {
				return pipeline.Result{}, nil
			}
			if !b.d.Commands.AllowTestFailures || !heralderrors.Is(err, heralderrors.ErrCommandFailed) || res.ExitCode <= 0 {
				return pipeline.Result{}, err
			}
			written, statErr := fileutil.NonEmptyFile(b.d.Generator.ResultsPath())
			if statErr != nil || !written {
				return pipeline.Result{}, err
			}
			b.d.Logger.Warn().Int("exit_code", res.ExitCode).Msg("test command failed, continuing with its results")
			return pipeline.Result{Note: fmt.Sprintf("tests exited with code %d", res.ExitCode)}, nil
		},
	}
}

func (b *builder) generateReport() pipeline.Step {
	produces := []domain.ContextField{domain.FieldReportVersion}
	for _, kind := range domain.ArtifactKinds() {
		produces = append(produces, kind.Field())
	}
	return pipeline.Step{
		Name:     StepGenerateReport,
		Produces: produces,
		Action: func(ctx context.Context, _ runctx.Reader) (pipeline.Result, error) {
			out, err := b.d.Generator.Generate(ctx)
			if err != nil {
				return pipeline.Result{}, err
			}
			values := map[domain.ContextField]string{domain.FieldReportVersion: out.Version}
			for kind, path := range out.ByKind() {
				values[kind.Field()] = path
			}
			return pipeline.Result{Produces: values}, nil
		},
	}
}

func (b *builder) resolveIssueKey() pipeline.Step {
	return pipeline.Step{
		Name:     StepResolveIssueKey,
		Produces: []domain.ContextField{domain.FieldIssueKey},
		Action: func(_ context.Context, _ runctx.Reader) (pipeline.Result, error) {
			if b.d.IssueKeyPath == "" {
				return pipeline.Skip("no issue key file configured"), nil
			}
			key, err := artifact.ReadIssueKey(b.d.IssueKeyPath)
			if err != nil {
				return pipeline.Result{}, err
			}
			return pipeline.Result{Produces: map[domain.ContextField]string{domain.FieldIssueKey: key}}, nil
		},
	}
}

// notConfigured returns a step that records itself skipped. It requires
// nothing, so a missing upstream value does not turn it into a failure.
func notConfigured(name, adapter string) pipeline.Step {
	return pipeline.Step{
		Name: name,
		Action: func(context.Context, runctx.Reader) (pipeline.Result, error) {
			return pipeline.Skip(adapter + " not configured"), nil
		},
	}
}

func (b *builder) testSummary() domain.TestSummary {
	res, err := report.ParseJUnitFile(b.d.Generator.ResultsPath())
	if err != nil {
		b.d.Logger.Warn().Err(err).Msg("failed to re-read test results for summary")
		return domain.TestSummary{}
	}
	return res.Summary
}

func (b *builder) issueLink(rc runctx.Reader) (key, link string) {
	key, ok := rc.Lookup(domain.FieldIssueKey)
	if !ok || b.d.Jira == nil {
		return key, ""
	}
	return key, b.d.Jira.BrowseURL(key)
}

func (b *builder) publishConfluence() pipeline.Step {
	if b.d.Confluence == nil {
		return notConfigured(StepPublishConfluence, "confluence")
	}
	return pipeline.Step{
		Name:     StepPublishConfluence,
		Requires: []domain.ContextField{domain.FieldReportVersion, domain.FieldHTMLPath, domain.FieldPDFPath},
		Produces: []domain.ContextField{domain.FieldConfluenceURL},
		Timeout:  b.d.AdapterTimeout,
		Action: func(ctx context.Context, rc runctx.Reader) (pipeline.Result, error) {
			key, link := b.issueLink(rc)
			req := confluence.PublishRequest{
				Version:     value(rc, domain.FieldReportVersion),
				Summary:     b.testSummary(),
				HTMLPath:    value(rc, domain.FieldHTMLPath),
				PDFPath:     value(rc, domain.FieldPDFPath),
				IssueKey:    key,
				IssueURL:    link,
				GeneratedAt: time.Now().UTC(),
			}
			res, err := b.d.Confluence.Publish(ctx, req)
			if err != nil {
				return pipeline.Result{}, err
			}
			if b.d.URLFile != "" {
				if err := confluence.WriteURLFile(b.d.URLFile, res.PageURL); err != nil {
					b.d.Logger.Warn().Err(err).Str("path", b.d.URLFile).Msg("failed to record page URL")
				}
			}
			return pipeline.Result{Produces: map[domain.ContextField]string{domain.FieldConfluenceURL: res.PageURL}}, nil
		},
	}
}

func (b *builder) attachJira() pipeline.Step {
	if b.d.Jira == nil {
		return notConfigured(StepAttachJira, "jira")
	}
	return pipeline.Step{
		Name:     StepAttachJira,
		Requires: []domain.ContextField{domain.FieldIssueKey, domain.FieldHTMLPath, domain.FieldPDFPath},
		Timeout:  b.d.AdapterTimeout,
		Action: func(ctx context.Context, rc runctx.Reader) (pipeline.Result, error) {
			key := value(rc, domain.FieldIssueKey)
			attached, err := b.d.Jira.Attach(ctx, key, value(rc, domain.FieldPDFPath), value(rc, domain.FieldHTMLPath))
			if err != nil {
				return pipeline.Result{}, err
			}
			return pipeline.Result{Note: fmt.Sprintf("%d files attached to %s", len(attached), key)}, nil
		},
	}
}

func (b *builder) sendEmail() pipeline.Step {
	if b.d.Mail == nil {
		return notConfigured(StepSendEmail, "email")
	}
	return pipeline.Step{
		Name:     StepSendEmail,
		Requires: []domain.ContextField{domain.FieldReportVersion, domain.FieldPDFPath},
		Timeout:  b.d.AdapterTimeout,
		Action: func(ctx context.Context, rc runctx.Reader) (pipeline.Result, error) {
			key, link := b.issueLink(rc)
			pageURL, _ := rc.Lookup(domain.FieldConfluenceURL)
			msg, err := b.d.Mail.Notify(ctx, mail.Notification{
				Version:       value(rc, domain.FieldReportVersion),
				Summary:       b.testSummary(),
				PDFPath:       value(rc, domain.FieldPDFPath),
				ConfluenceURL: pageURL,
				IssueKey:      key,
				IssueURL:      link,
			})
			if err != nil {
				return pipeline.Result{}, err
			}
			return pipeline.Result{Note: msg.Subject}, nil
		},
	}
}

func (b *builder) uploadRTM() pipeline.Step {
	if b.d.RTM == nil {
		return notConfigured(StepUploadRTM, "rtm")
	}
	return pipeline.Step{
		Name:     StepUploadRTM,
		Requires: []domain.ContextField{domain.FieldIssueKey, domain.FieldResultsArchive},
		Timeout:  b.d.AdapterTimeout,
		Action: func(ctx context.Context, rc runctx.Reader) (pipeline.Result, error) {
			status, err := b.d.RTM.Upload(ctx, value(rc, domain.FieldResultsArchive), value(rc, domain.FieldIssueKey))
			if err != nil {
				return pipeline.Result{}, err
			}
			return pipeline.Result{Note: "import " + status.TaskID + " " + status.Status}, nil
		},
	}
}

// value reads a field the engine already checked through Requires.
func value(rc runctx.Reader, field domain.ContextField) string {
	v, _ := rc.Lookup(field)
	return v
}
