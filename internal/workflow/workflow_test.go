package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/herald/internal/artifact"
	"github.com/mrz1836/herald/internal/clock"
	"github.com/mrz1836/herald/internal/command"
	"github.com/mrz1836/herald/internal/confluence"
	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/domain"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/jira"
	"github.com/mrz1836/herald/internal/mail"
	"github.com/mrz1836/herald/internal/pipeline"
	"github.com/mrz1836/herald/internal/report"
	"github.com/mrz1836/herald/internal/rtm"
	"github.com/mrz1836/herald/internal/testutil"
)

type fakeConfluence struct {
	mu   sync.Mutex
	reqs []confluence.PublishRequest
	err  error
}

func (f *fakeConfluence) Publish(_ context.Context, req confluence.PublishRequest) (*confluence.PublishResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &confluence.PublishResult{PageID: "42", PageURL: "https://wiki.example.com/spaces/QA/pages/42"}, nil
}

type fakeJira struct {
	mu    sync.Mutex
	keys  []string
	files [][]string
}

func (f *fakeJira) Attach(_ context.Context, key string, files ...string) ([]jira.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.files = append(f.files, files)
	out := make([]jira.Attachment, len(files))
	for i, file := range files {
		out[i] = jira.Attachment{ID: fmt.Sprint(i), Filename: filepath.Base(file)}
	}
	return out, nil
}

func (f *fakeJira) BrowseURL(key string) string {
	return "https://jira.example.com/browse/" + key
}

type fakeMail struct {
	mu    sync.Mutex
	notes []mail.Notification
}

func (f *fakeMail) Notify(_ context.Context, note mail.Notification) (*mail.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, note)
	return &mail.Message{Subject: mail.Subject(note.Summary.Status(), note.Version)}, nil
}

type fakeRTM struct {
	mu       sync.Mutex
	archives []string
	keys     []string
}

func (f *fakeRTM) Upload(_ context.Context, archive, key string) (*rtm.ImportStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archives = append(f.archives, archive)
	f.keys = append(f.keys, key)
	return &rtm.ImportStatus{TaskID: "task-1", Status: "DONE"}, nil
}

type fakeRunner struct {
	mu       sync.Mutex
	commands []string
	fail     map[string]int
}

func (f *fakeRunner) Run(_ context.Context, spec command.Spec) (command.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, spec.Command)
	if code, ok := f.fail[spec.Command]; ok {
		return command.Result{ExitCode: code}, fmt.Errorf("%w: %q exited with code %d", heralderrors.ErrCommandFailed, spec.Command, code)
	}
	return command.Result{}, nil
}

type fixture struct {
	dir        string
	confluence *fakeConfluence
	jira       *fakeJira
	mail       *fakeMail
	rtm        *fakeRTM
	runner     *fakeRunner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		dir:        t.TempDir(),
		confluence: &fakeConfluence{},
		jira:       &fakeJira{},
		mail:       &fakeMail{},
		rtm:        &fakeRTM{},
		runner:     &fakeRunner{},
	}
}

func (f *fixture) deps(t *testing.T) Deps {
	t.Helper()
	resolver, err := artifact.NewResolver(f.dir, "")
	require.NoError(t, err)
	gen := report.NewGenerator(resolver, nil, report.Options{
		Logger: zerolog.Nop(),
		Clock:  clock.NewFake(time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC), 0),
	})
	return Deps{
		Runner:       f.runner,
		Generator:    gen,
		Confluence:   f.confluence,
		Jira:         f.jira,
		Mail:         f.mail,
		RTM:          f.rtm,
		ResultsDir:   f.dir,
		WorkDir:      f.dir,
		IssueKeyPath: filepath.Join(f.dir, constants.DefaultIssueKeyFileName),
		URLFile:      filepath.Join(f.dir, constants.ConfluenceURLFileName),
		Logger:       zerolog.Nop(),
	}
}

func execute(t *testing.T, d Deps) (*pipeline.Run, error) {
	t.Helper()
	steps, err := Steps(d)
	require.NoError(t, err)
	engine, err := pipeline.NewEngine(steps, pipeline.Options{Logger: zerolog.Nop(), ResultsDir: d.ResultsDir})
	require.NoError(t, err)
	return engine.Execute(context.Background())
}

func outcomes(run *pipeline.Run) map[string]domain.StepOutcome {
	out := make(map[string]domain.StepOutcome)
	for _, o := range run.Summary().Steps {
		out[o.Step] = o
	}
	return out
}

func TestSteps_Definition(t *testing.T) {
	f := newFixture(t)
	steps, err := Steps(f.deps(t))
	require.NoError(t, err)
	require.NoError(t, pipeline.ValidateDefinition(steps))

	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
		assert.Equal(t, DefaultCriticality(s.Name), s.Criticality, s.Name)
	}
	assert.Equal(t, StepNames(), names)

	blocking := 0
	for _, s := range steps {
		if s.Criticality == constants.CriticalityBlocking {
			blocking++
		}
	}
	assert.Equal(t, 5, blocking)
}

func TestSteps_InvalidOverrides(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]Override
	}{
		{"unknown step", map[string]Override{"deploy": {Criticality: constants.CriticalityBlocking}}},
		{"bad criticality", map[string]Override{StepSendEmail: {Criticality: "sometimes"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			d := f.deps(t)
			d.Overrides = tc.overrides
			_, err := Steps(d)
			require.ErrorIs(t, err, heralderrors.ErrConfigInvalidPipeline)
		})
	}
}

func TestSteps_RequiresGenerator(t *testing.T) {
	_, err := Steps(Deps{})
	require.ErrorIs(t, err, heralderrors.ErrInvalidDefinition)
}

func TestRun_PartialFailureWhenConfluenceFails(t *testing.T) {
	f := newFixture(t)
	testutil.WriteResults(t, f.dir, 9, 1)
	testutil.WriteFile(t, f.dir, constants.VersionMarkerFileName, "6\n")
	testutil.WriteFile(t, f.dir, constants.DefaultIssueKeyFileName, "QA-123\n")
	f.confluence.err = &heralderrors.AdapterError{Adapter: "confluence", Op: "create page", StatusCode: 500, Attempts: 2}

	run, err := execute(t, f.deps(t))
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusPartialFailure, run.Status)
	assert.Equal(t, "7", run.Context.ReportVersion())
	assert.Equal(t, "QA-123", run.Context.IssueKey())

	byStep := outcomes(run)
	assert.Equal(t, constants.StepStatusFailed, byStep[StepPublishConfluence].Status)
	assert.Equal(t, "adapter", byStep[StepPublishConfluence].ErrorKind)
	for _, name := range []string{StepGenerateReport, StepResolveIssueKey, StepAttachJira, StepSendEmail, StepUploadRTM} {
		assert.Equal(t, constants.StepStatusSuccess, byStep[name].Status, name)
	}
	for _, name := range []string{StepCheckout, StepSetupEnvironment, StepInstallDependencies, StepRunTests} {
		assert.Equal(t, constants.StepStatusSkipped, byStep[name].Status, name)
	}

	require.Len(t, f.jira.keys, 1)
	assert.Equal(t, "QA-123", f.jira.keys[0])
	assert.Equal(t, []string{"test_result_report_v7.pdf", "test_result_report_v7.html"},
		[]string{filepath.Base(f.jira.files[0][0]), filepath.Base(f.jira.files[0][1])})

	require.Len(t, f.mail.notes, 1)
	note := f.mail.notes[0]
	assert.Equal(t, "7", note.Version)
	assert.Equal(t, 1, note.Summary.Failed)
	assert.Empty(t, note.ConfluenceURL)
	assert.Equal(t, "https://jira.example.com/browse/QA-123", note.IssueURL)

	require.Len(t, f.rtm.archives, 1)
	assert.Equal(t, "test_results_v7.zip", filepath.Base(f.rtm.archives[0]))
	assert.Equal(t, "QA-123", f.rtm.keys[0])
}

func TestRun_SuccessRecordsPageURL(t *testing.T) {
	f := newFixture(t)
	testutil.WriteResults(t, f.dir, 4, 0)
	testutil.WriteFile(t, f.dir, constants.DefaultIssueKeyFileName, "QA-9")

	run, err := execute(t, f.deps(t))
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusSuccess, run.Status)

	url, ok := run.Context.Lookup(domain.FieldConfluenceURL)
	require.True(t, ok)
	assert.Equal(t, "https://wiki.example.com/spaces/QA/pages/42", url)
	require.Len(t, f.mail.notes, 1)
	assert.Equal(t, url, f.mail.notes[0].ConfluenceURL)

	require.Len(t, f.confluence.reqs, 1)
	assert.Equal(t, "1", f.confluence.reqs[0].Version)
	assert.Equal(t, "QA-9", f.confluence.reqs[0].IssueKey)
	assert.Equal(t, "PASS", f.confluence.reqs[0].Summary.Status())

	data, err := os.ReadFile(filepath.Join(f.dir, constants.ConfluenceURLFileName))
	require.NoError(t, err)
	assert.Equal(t, url, strings.TrimSpace(string(data)))
}

func TestRun_RerunIssuesNextVersion(t *testing.T) {
	f := newFixture(t)
	testutil.WriteResults(t, f.dir, 3, 0)
	testutil.WriteFile(t, f.dir, constants.DefaultIssueKeyFileName, "QA-1")

	first, err := execute(t, f.deps(t))
	require.NoError(t, err)
	second, err := execute(t, f.deps(t))
	require.NoError(t, err)

	assert.Equal(t, "1", first.Context.ReportVersion())
	assert.Equal(t, "2", second.Context.ReportVersion())
	require.Len(t, f.rtm.archives, 2)
	assert.Equal(t, "test_results_v2.zip", filepath.Base(f.rtm.archives[1]))
}

func TestRun_EmptyResultsFailsBeforePublishing(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.dir, constants.DefaultIssueKeyFileName, "QA-1")

	run, err := execute(t, f.deps(t))
	require.ErrorIs(t, err, heralderrors.ErrRunFailed)
	require.ErrorIs(t, err, heralderrors.ErrGeneration)
	assert.Equal(t, constants.RunStatusFailed, run.Status)

	byStep := outcomes(run)
	assert.Equal(t, constants.StepStatusFailed, byStep[StepGenerateReport].Status)
	assert.Equal(t, "generation", byStep[StepGenerateReport].ErrorKind)
	for _, name := range []string{StepResolveIssueKey, StepPublishConfluence, StepAttachJira, StepSendEmail, StepUploadRTM} {
		assert.Equal(t, constants.StepStatusNotRun, byStep[name].Status, name)
	}

	assert.Empty(t, f.confluence.reqs)
	assert.Empty(t, f.jira.keys)
	assert.Empty(t, f.mail.notes)
	assert.Empty(t, f.rtm.archives)
}

func TestRun_MissingIssueKeySkipsKeyedPublishers(t *testing.T) {
	f := newFixture(t)
	testutil.WriteResults(t, f.dir, 2, 0)

	run, err := execute(t, f.deps(t))
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusPartialFailure, run.Status)

	byStep := outcomes(run)
	assert.Equal(t, constants.StepStatusFailed, byStep[StepResolveIssueKey].Status)
	assert.Equal(t, "precondition", byStep[StepAttachJira].ErrorKind)
	assert.Equal(t, "precondition", byStep[StepUploadRTM].ErrorKind)
	assert.Equal(t, constants.StepStatusSuccess, byStep[StepSendEmail].Status)

	assert.Empty(t, f.jira.keys)
	assert.Empty(t, f.rtm.archives)
	require.Len(t, f.mail.notes, 1)
	assert.Empty(t, f.mail.notes[0].IssueURL)
}

func TestRun_CommandSteps(t *testing.T) {
	f := newFixture(t)
	testutil.WriteResults(t, f.dir, 2, 0)
	testutil.WriteFile(t, f.dir, constants.DefaultIssueKeyFileName, "QA-1")

	d := f.deps(t)
	d.Commands = Commands{Checkout: "git pull", Setup: "make env", Install: "make deps", Test: "make test"}

	run, err := execute(t, d)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusSuccess, run.Status)
	assert.Equal(t, []string{"git pull", "make env", "make deps", "make test"}, f.runner.commands)
}

func TestRun_TestFailures(t *testing.T) {
	tests := []struct {
		name       string
		allow      bool
		wantStatus constants.RunStatus
		wantTests  constants.StepStatus
	}{
		{"blocking by default", false, constants.RunStatusFailed, constants.StepStatusFailed},
		{"tolerated when allowed", true, constants.RunStatusSuccess, constants.StepStatusSuccess},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			testutil.WriteResults(t, f.dir, 2, 1)
			testutil.WriteFile(t, f.dir, constants.DefaultIssueKeyFileName, "QA-1")
			f.runner.fail = map[string]int{"make test": 1}

			d := f.deps(t)
			d.Commands = Commands{Test: "make test", AllowTestFailures: tc.allow}

			run, _ := execute(t, d)
			assert.Equal(t, tc.wantStatus, run.Status)
			assert.Equal(t, tc.wantTests, outcomes(run)[StepRunTests].Status)
		})
	}
}

func TestRun_ManualCheckoutGate(t *testing.T) {
	f := newFixture(t)
	testutil.WriteResults(t, f.dir, 2, 0)

	d := f.deps(t)
	d.Commands = Commands{Checkout: "git pull"}
	d.Confirm = func(context.Context) error { return heralderrors.ErrCheckoutNotConfirmed }

	run, err := execute(t, d)
	require.ErrorIs(t, err, heralderrors.ErrCheckoutNotConfirmed)
	assert.Equal(t, constants.RunStatusFailed, run.Status)
	assert.Empty(t, f.runner.commands)
	assert.Equal(t, constants.StepStatusNotRun, outcomes(run)[StepGenerateReport].Status)
}

func TestRun_CriticalityOverride(t *testing.T) {
	f := newFixture(t)
	testutil.WriteResults(t, f.dir, 2, 0)
	testutil.WriteFile(t, f.dir, constants.DefaultIssueKeyFileName, "QA-1")
	f.confluence.err = &heralderrors.AdapterError{Adapter: "confluence", Op: "create page", StatusCode: 500, Attempts: 2}

	d := f.deps(t)
	d.Overrides = map[string]Override{StepPublishConfluence: {Criticality: constants.CriticalityBlocking}}

	run, err := execute(t, d)
	require.ErrorIs(t, err, heralderrors.ErrRunFailed)
	assert.Equal(t, constants.RunStatusFailed, run.Status)
	assert.Empty(t, f.jira.keys)
}

func TestRun_UnconfiguredPublishersSkip(t *testing.T) {
	f := newFixture(t)
	testutil.WriteResults(t, f.dir, 2, 0)

	d := f.deps(t)
	d.Confluence, d.Jira, d.Mail, d.RTM = nil, nil, nil, nil
	d.IssueKeyPath = ""

	run, err := execute(t, d)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusSuccess, run.Status)

	byStep := outcomes(run)
	for _, name := range []string{StepResolveIssueKey, StepPublishConfluence, StepAttachJira, StepSendEmail, StepUploadRTM} {
		assert.Equal(t, constants.StepStatusSkipped, byStep[name].Status, name)
	}
}
