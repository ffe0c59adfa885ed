package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/herald/internal/command"
	"github.com/mrz1836/herald/internal/fileutil"
)

// RenderInput is everything a renderer needs to produce one report version.
type RenderInput struct {
	Title       string
	Version     string
	GeneratedAt time.Time
	ResultsDir  string
	ResultsFile string
	HTMLPath    string
	PDFPath     string
	Results     *Results
}

// Renderer writes the HTML and PDF files named in RenderInput.
type Renderer interface {
	Render(ctx context.Context, in RenderInput) error
}

// BuiltinRenderer renders the HTML report with html/template and the PDF
// with fpdf.
type BuiltinRenderer struct{}

// Render implements Renderer.
func (BuiltinRenderer) Render(ctx context.Context, in RenderInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	html, err := RenderHTML(in)
	if err != nil {
		return err
	}
	if err := fileutil.AtomicWrite(in.HTMLPath, html); err != nil {
		return fmt.Errorf("failed to write html report: %w", err)
	}

	pdf, err := RenderPDF(in)
	if err != nil {
		return err
	}
	if err := fileutil.AtomicWrite(in.PDFPath, pdf); err != nil {
		return fmt.Errorf("failed to write pdf report: %w", err)
	}
	return nil
}

// CommandRenderer delegates rendering to an external command. The command
// reads its inputs from HERALD_* environment variables and must write both
// output files.
type CommandRenderer struct {
	Runner  command.Runner
	Command string
	WorkDir string
	Logger  zerolog.Logger
}

// Render implements Renderer.
func (r *CommandRenderer) Render(ctx context.Context, in RenderInput) error {
	env := map[string]string{
		"HERALD_REPORT_VERSION": in.Version,
		"HERALD_REPORT_TITLE":   in.Title,
		"HERALD_HTML_OUT":       in.HTMLPath,
		"HERALD_PDF_OUT":        in.PDFPath,
		"HERALD_RESULTS_DIR":    in.ResultsDir,
		"HERALD_RESULTS_FILE":   in.ResultsFile,
	}

	r.Logger.Debug().Str("command", r.Command).Str("version", in.Version).Msg("running render command")
	res, err := r.Runner.Run(ctx, command.Spec{Dir: r.WorkDir, Command: r.Command, Env: env})
	if err != nil {
		r.Logger.Error().Int("exit_code", res.ExitCode).Str("stderr", res.Stderr).Msg("render command failed")
		return err
	}
	return nil
}

var (
	_ Renderer = BuiltinRenderer{}
	_ Renderer = (*CommandRenderer)(nil)
)
