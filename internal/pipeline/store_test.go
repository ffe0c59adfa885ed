package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/domain"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/pipeline"
)

func TestFileStore_AppendOutcome(t *testing.T) {
	dir := t.TempDir()
	store := pipeline.NewFileStore(dir, "", 0)
	ctx := context.Background()

	require.NoError(t, store.AppendOutcome(ctx, "run-1", domain.StepOutcome{Step: "generate-report", Status: constants.StepStatusSuccess}))
	require.NoError(t, store.AppendOutcome(ctx, "run-1", domain.StepOutcome{Step: "send-email", Status: constants.StepStatusFailed, Error: "smtp down"}))

	data, err := os.ReadFile(pipeline.OutcomeLogPath(dir)) //#nosec G304 -- test path
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"run_id":"run-1"`)
	assert.Contains(t, lines[0], `"step":"generate-report"`)

	records, err := pipeline.ReadOutcomeLog(dir)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "smtp down", records[1].Error)
}

func TestFileStore_AppendOutcomeValidation(t *testing.T) {
	store := pipeline.NewFileStore(t.TempDir(), "", 0)

	err := store.AppendOutcome(context.Background(), "", domain.StepOutcome{Step: "x"})
	require.ErrorIs(t, err, heralderrors.ErrEmptyValue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = store.AppendOutcome(ctx, "run-1", domain.StepOutcome{Step: "x"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadOutcomeLog_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	content := "{\"run_id\":\"a\",\"step\":\"one\",\"status\":\"success\"}\nnot json\n\n{\"run_id\":\"a\",\"step\":\"two\",\"status\":\"skipped\"}\n"
	require.NoError(t, os.WriteFile(pipeline.OutcomeLogPath(dir), []byte(content), 0o600))

	records, err := pipeline.ReadOutcomeLog(dir)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "two", records[1].Step)
}

func TestReadOutcomeLog_Missing(t *testing.T) {
	records, err := pipeline.ReadOutcomeLog(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFileStore_SaveAndLoadSummary(t *testing.T) {
	dir := t.TempDir()
	store := pipeline.NewFileStore(dir, "", 0)

	started := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	in := &domain.RunSummary{
		SchemaVersion: constants.RunSummarySchemaVersion,
		RunID:         "run-1",
		Status:        constants.RunStatusPartialFailure,
		StartedAt:     started,
		CompletedAt:   started.Add(time.Minute),
		Context:       map[domain.ContextField]string{domain.FieldReportVersion: "7"},
		Steps: []domain.StepOutcome{
			{Step: "publish-confluence", Status: constants.StepStatusFailed, Criticality: constants.CriticalityBestEffort},
		},
	}
	require.NoError(t, store.SaveSummary(context.Background(), in))

	out, err := pipeline.LoadSummary(dir)
	require.NoError(t, err)
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, "7", out.Value(domain.FieldReportVersion))
	assert.Equal(t, constants.RunStatusPartialFailure, out.Status)
	require.Len(t, out.Steps, 1)
	assert.True(t, out.Steps[0].Failed())
}

func TestLoadSummary_NotFound(t *testing.T) {
	_, err := pipeline.LoadSummary(t.TempDir())
	require.ErrorIs(t, err, heralderrors.ErrSummaryNotFound)
}

func TestLoadSummary_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(pipeline.SummaryPath(dir), []byte("{"), 0o600))

	_, err := pipeline.LoadSummary(dir)
	require.Error(t, err)
	assert.NotErrorIs(t, err, heralderrors.ErrSummaryNotFound)
}

func TestFileStore_ArchiveRetention(t *testing.T) {
	resultsDir := t.TempDir()
	archiveDir := filepath.Join(t.TempDir(), constants.RunsDir)
	store := pipeline.NewFileStore(resultsDir, archiveDir, 2)

	base := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, store.SaveSummary(context.Background(), &domain.RunSummary{
			RunID:     id,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	archived, err := pipeline.ListArchived(archiveDir)
	require.NoError(t, err)
	require.Len(t, archived, 2)
	assert.True(t, strings.HasSuffix(archived[0], "-third.json"))
	assert.True(t, strings.HasSuffix(archived[1], "-second.json"))

	latest, err := pipeline.ReadSummaryFile(archived[0])
	require.NoError(t, err)
	assert.Equal(t, "third", latest.RunID)

	current, err := pipeline.LoadSummary(resultsDir)
	require.NoError(t, err)
	assert.Equal(t, "third", current.RunID)
}

func TestListArchived_Missing(t *testing.T) {
	archived, err := pipeline.ListArchived(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, archived)
}
