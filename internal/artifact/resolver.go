// Package artifact resolves versioned report artifacts in a results directory.
//
// Versioned files are named <base>_v<N>.<ext>. The last issued version is
// persisted in a plain-text marker file (version.txt) which is the durable
// source of truth: Next scans both the directory and the marker, and Current
// re-reads the marker after a restart.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/domain"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/fileutil"
)

// Paths are the files belonging to one report version.
type Paths struct {
	Version     string
	HTML        string
	PDF         string
	VersionFile string
	Archive     string
}

// ByKind returns the paths keyed by artifact kind.
func (p Paths) ByKind() map[domain.ArtifactKind]string {
	return map[domain.ArtifactKind]string{
		domain.ArtifactHTML:           p.HTML,
		domain.ArtifactPDF:            p.PDF,
		domain.ArtifactVersionFile:    p.VersionFile,
		domain.ArtifactResultsArchive: p.Archive,
	}
}

// Resolver determines report versions and artifact paths for one directory.
type Resolver struct {
	dir         string
	baseName    string
	archiveBase string
	pattern     *regexp.Regexp
}

// NewResolver returns a resolver for dir using baseName as the report stem.
// An empty baseName falls back to constants.DefaultReportBaseName.
func NewResolver(dir, baseName string) (*Resolver, error) {
	if dir == "" {
		return nil, fmt.Errorf("results directory %w", heralderrors.ErrEmptyValue)
	}
	if baseName == "" {
		baseName = constants.DefaultReportBaseName
	}
	if strings.ContainsAny(baseName, `/\`) {
		return nil, fmt.Errorf("%w: report base name %q must not contain path separators", heralderrors.ErrConfigInvalidPipeline, baseName)
	}

	pattern := regexp.MustCompile(`^(?:` + regexp.QuoteMeta(baseName) + `_v(\d+)\.(?:html|pdf)|` +
		regexp.QuoteMeta(constants.ResultsArchiveBaseName) + `_v(\d+)\.zip)$`)

	return &Resolver{
		dir:         dir,
		baseName:    baseName,
		archiveBase: constants.ResultsArchiveBaseName,
		pattern:     pattern,
	}, nil
}

// Dir returns the results directory.
func (r *Resolver) Dir() string {
	return r.dir
}

// MarkerPath returns the version marker path.
func (r *Resolver) MarkerPath() string {
	return filepath.Join(r.dir, constants.VersionMarkerFileName)
}

// Scan returns every version number found in versioned artifact file names.
func (r *Resolver) Scan() ([]int, error) {
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", r.dir, err)
	}

	var versions []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := r.pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			continue
		}
		versions = append(versions, n)
	}
	return versions, nil
}

// Marker returns the version recorded in the marker file, and false if the
// marker does not exist.
func (r *Resolver) Marker() (int, bool, error) {
	data, err := os.ReadFile(r.MarkerPath()) //#nosec G304 -- path is constructed internally
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read version marker: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("version marker %s holds %q: %w", r.MarkerPath(), text, heralderrors.ErrGeneration)
	}
	return n, true, nil
}

// Latest returns the highest version known from file names and the marker,
// or 0 if none exists.
func (r *Resolver) Latest() (int, error) {
	versions, err := r.Scan()
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, v := range versions {
		highest = max(highest, v)
	}

	marker, ok, err := r.Marker()
	if err != nil {
		return 0, err
	}
	if ok {
		highest = max(highest, marker)
	}
	return highest, nil
}

// Next issues the next version: one more than the highest known version,
// or 1. The new version is written to the marker before it is returned, so
// a crash after Next never hands the same number to a later run.
func (r *Resolver) Next(ctx context.Context) (Paths, error) {
	if err := ctx.Err(); err != nil {
		return Paths{}, err
	}
	if err := os.MkdirAll(r.dir, fileutil.DirPerm); err != nil {
		return Paths{}, fmt.Errorf("failed to create results directory: %w", err)
	}

	latest, err := r.Latest()
	if err != nil {
		return Paths{}, err
	}
	next := latest + 1

	if err := fileutil.AtomicWrite(r.MarkerPath(), []byte(strconv.Itoa(next)+"\n")); err != nil {
		return Paths{}, fmt.Errorf("failed to write version marker: %w", err)
	}
	return r.Paths(strconv.Itoa(next)), nil
}

// Current returns the paths of the version recorded in the marker. It is the
// recovery path for any step that needs the version after a restart.
func (r *Resolver) Current() (Paths, error) {
	marker, ok, err := r.Marker()
	if err != nil {
		return Paths{}, err
	}
	if !ok || marker < 1 {
		return Paths{}, heralderrors.ErrNoVersion
	}
	return r.Paths(strconv.Itoa(marker)), nil
}

// Paths returns the artifact paths for version.
func (r *Resolver) Paths(version string) Paths {
	return Paths{
		Version:     version,
		HTML:        filepath.Join(r.dir, fmt.Sprintf("%s_v%s.html", r.baseName, version)),
		PDF:         filepath.Join(r.dir, fmt.Sprintf("%s_v%s.pdf", r.baseName, version)),
		VersionFile: r.MarkerPath(),
		Archive:     filepath.Join(r.dir, fmt.Sprintf("%s_v%s.zip", r.archiveBase, version)),
	}
}

// IsGenerated reports whether name is a file herald itself writes into the
// results directory. Such files are excluded from the raw-results archive.
func (r *Resolver) IsGenerated(name string) bool {
	if r.pattern.MatchString(name) {
		return true
	}
	switch name {
	case constants.VersionMarkerFileName,
		constants.RunSummaryFileName,
		constants.StepLogFileName,
		constants.LockFileName,
		constants.ConfluenceURLFileName:
		return true
	}
	return strings.HasSuffix(name, ".tmp")
}
