// Package report turns raw test results into a versioned report: it issues
// the next version, renders HTML and PDF, and archives the raw results.
package report

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/mrz1836/herald/internal/artifact"
	"github.com/mrz1836/herald/internal/clock"
	"github.com/mrz1836/herald/internal/constants"
	heralderrors "github.com/mrz1836/herald/internal/errors"
	"github.com/mrz1836/herald/internal/fileutil"
)

// DefaultTitle is the report title when none is configured.
const DefaultTitle = "Test Result Report"

// Output is the result of one generation.
type Output struct {
	artifact.Paths
	Results *Results
}

// Options configures a Generator.
type Options struct {
	// ResultsFile is the junit file name inside the results directory.
	ResultsFile string
	// Title is the report title.
	Title string
	// Logger receives generation progress.
	Logger zerolog.Logger
	// Clock stamps the report. Defaults to the real clock.
	Clock clock.Clock
}

// Generator produces versioned reports for one results directory.
type Generator struct {
	resolver    *artifact.Resolver
	renderer    Renderer
	resultsFile string
	title       string
	logger      zerolog.Logger
	clock       clock.Clock
}

// NewGenerator returns a generator writing into the resolver's directory.
func NewGenerator(resolver *artifact.Resolver, renderer Renderer, opts Options) *Generator {
	if opts.ResultsFile == "" {
		opts.ResultsFile = constants.DefaultResultsFileName
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if renderer == nil {
		renderer = BuiltinRenderer{}
	}
	return &Generator{
		resolver:    resolver,
		renderer:    renderer,
		resultsFile: opts.ResultsFile,
		title:       opts.Title,
		logger:      opts.Logger,
		clock:       opts.Clock,
	}
}

// ResultsPath returns the path of the junit file.
func (g *Generator) ResultsPath() string {
	return filepath.Join(g.resolver.Dir(), g.resultsFile)
}

// Generate validates the raw results, issues the next version, renders the
// HTML and PDF reports and archives the raw results. Every failure is a
// *errors.GenerationError. A version is only issued once the results parse.
func (g *Generator) Generate(ctx context.Context) (*Output, error) {
	dir := g.resolver.Dir()
	fail := func(err error) (*Output, error) {
		return nil, &heralderrors.GenerationError{Dir: dir, Err: err}
	}

	resultsPath := g.ResultsPath()
	present, err := fileutil.NonEmptyFile(resultsPath)
	if err != nil {
		return fail(err)
	}
	if !present {
		return fail(fmt.Errorf("%s: %w", g.resultsFile, heralderrors.ErrArtifactMissing))
	}

	results, err := ParseJUnitFile(resultsPath)
	if err != nil {
		return fail(err)
	}

	paths, err := g.resolver.Next(ctx)
	if err != nil {
		return fail(err)
	}
	log := g.logger.With().Str("report_version", paths.Version).Logger()
	log.Info().
		Int("total", results.Summary.Total).
		Int("failed", results.Summary.Failed).
		Int("errors", results.Summary.Errors).
		Msg("issued report version")

	in := RenderInput{
		Title:       g.title,
		Version:     paths.Version,
		GeneratedAt: g.clock.Now(),
		ResultsDir:  dir,
		ResultsFile: resultsPath,
		HTMLPath:    paths.HTML,
		PDFPath:     paths.PDF,
		Results:     results,
	}
	if err := g.renderer.Render(ctx, in); err != nil {
		return fail(fmt.Errorf("render v%s: %w", paths.Version, err))
	}

	for _, p := range []string{paths.HTML, paths.PDF} {
		ok, err := fileutil.NonEmptyFile(p)
		if err != nil {
			return fail(err)
		}
		if !ok {
			return fail(fmt.Errorf("%s: %w", filepath.Base(p), heralderrors.ErrArtifactMissing))
		}
	}

	count, err := ArchiveDir(dir, paths.Archive, g.resolver.IsGenerated)
	if err != nil {
		return fail(err)
	}
	log.Info().Str("archive", paths.Archive).Int("files", count).Msg("archived raw results")

	return &Output{Paths: paths, Results: results}, nil
}
