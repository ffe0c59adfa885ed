package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/domain"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/fileutil"
)

// OutcomeRecord is one line of the step-outcome log.
type OutcomeRecord struct {
	RunID string `json:"run_id"`
	domain.StepOutcome
}

// archiveTimeLayout prefixes archived summaries so names sort by age.
const archiveTimeLayout = "20060102T150405Z"

// FileStore persists run state to disk: the step-outcome log and the run
// summary in the results directory, plus a bounded archive of past summaries.
type FileStore struct {
	mu         sync.Mutex
	resultsDir string
	archiveDir string
	retention  int
}

// NewFileStore returns a store writing into resultsDir. Summaries are also
// archived into archiveDir, keeping the newest retention files; an empty
// archiveDir disables archiving.
func NewFileStore(resultsDir, archiveDir string, retention int) *FileStore {
	if retention <= 0 {
		retention = constants.DefaultSummaryRetention
	}
	return &FileStore{
		resultsDir: resultsDir,
		archiveDir: archiveDir,
		retention:  retention,
	}
}

// OutcomeLogPath returns the step-outcome log path for resultsDir.
func OutcomeLogPath(resultsDir string) string {
	return filepath.Join(resultsDir, constants.StepLogFileName)
}

// SummaryPath returns the run summary path for resultsDir.
func SummaryPath(resultsDir string) string {
	return filepath.Join(resultsDir, constants.RunSummaryFileName)
}

// AppendOutcome appends one JSON line to the step-outcome log.
func (s *FileStore) AppendOutcome(ctx context.Context, runID string, outcome domain.StepOutcome) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if runID == "" {
		return fmt.Errorf("failed to append outcome: run ID %w", heralderrors.ErrEmptyValue)
	}

	entry, err := json.Marshal(OutcomeRecord{RunID: runID, StepOutcome: outcome})
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fileutil.AppendLine(OutcomeLogPath(s.resultsDir), entry); err != nil {
		return fmt.Errorf("failed to append outcome: %w", err)
	}
	return nil
}

// SaveSummary writes the summary to the results directory and, when enabled,
// to the archive, pruning archived summaries beyond the retention count.
func (s *FileStore) SaveSummary(ctx context.Context, summary *domain.RunSummary) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fileutil.AtomicWrite(SummaryPath(s.resultsDir), data); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}

	if s.archiveDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.archiveDir, fileutil.DirPerm); err != nil {
		return fmt.Errorf("failed to create run archive: %w", err)
	}
	name := summary.StartedAt.UTC().Format(archiveTimeLayout) + "-" + summary.RunID + ".json"
	if err := fileutil.AtomicWrite(filepath.Join(s.archiveDir, name), data); err != nil {
		return fmt.Errorf("failed to archive run summary: %w", err)
	}
	return s.prune()
}

func (s *FileStore) prune() error {
	archived, err := ListArchived(s.archiveDir)
	if err != nil {
		return err
	}
	for _, path := range archived[min(len(archived), s.retention):] {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to prune run archive: %w", err)
		}
	}
	return nil
}

// ListArchived returns archived summary paths, newest first.
func ListArchived(archiveDir string) ([]string, error) {
	entries, err := os.ReadDir(archiveDir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list run archive: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(archiveDir, name)
	}
	return paths, nil
}

// LoadSummary reads the run summary from resultsDir.
func LoadSummary(resultsDir string) (*domain.RunSummary, error) {
	return ReadSummaryFile(SummaryPath(resultsDir))
}

// ReadSummaryFile reads a run summary from path.
func ReadSummaryFile(path string) (*domain.RunSummary, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is constructed internally or given by the operator
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", heralderrors.ErrSummaryNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run summary: %w", err)
	}

	var summary domain.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse run summary %s: %w", path, err)
	}
	return &summary, nil
}

// ReadOutcomeLog returns every record in the step-outcome log of resultsDir,
// oldest first. Malformed lines are skipped.
func ReadOutcomeLog(resultsDir string) ([]OutcomeRecord, error) {
	f, err := os.Open(OutcomeLogPath(resultsDir)) //#nosec G304 -- path is constructed internally
	if os.IsNotExist(err) {
		return []OutcomeRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open outcome log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var records []OutcomeRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec OutcomeRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outcome log: %w", err)
	}
	return records, nil
}

var _ Store = (*FileStore)(nil)
