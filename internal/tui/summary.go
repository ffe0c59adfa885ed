package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrz1836/herald/internal/clock"
	"github.com/mrz1836/herald/internal/constants"
	"github.com/mrz1836/herald/internal/domain"
)

// summaryHeaders are the step table columns.
//
//nolint:gochecknoglobals // column layout
var summaryHeaders = []string{"STEP", "STATUS", "CRITICALITY", "DURATION", "DETAIL"}

//nolint:gochecknoglobals // column layout
var historyHeaders = []string{"RUN", "STATUS", "FINISHED", "DURATION", "REPORT", "STEPS OK"}

// maxDetailWidth truncates long failure causes in the terminal table.
const maxDetailWidth = 72

// RenderSummary writes a run summary as a styled header and step table.
func RenderSummary(w io.Writer, s *domain.RunSummary, c clock.Clock) {
	CheckNoColor()
	statusStyle := lipgloss.NewStyle().Bold(true).Foreground(RunStatusColor(s.Status))
	dim := lipgloss.NewStyle().Foreground(ColorMuted)

	_, _ = fmt.Fprintf(w, "%s  %s\n",
		statusStyle.Render(RunStatusIcon(s.Status)+" "+StatusLabel(s.Status)),
		dim.Render(fmt.Sprintf("run %s · %s · %s", s.RunID, RelativeTimeWith(s.CompletedAt, c), FormatDuration(s.DurationMs))))
	if v := s.Value(domain.FieldReportVersion); v != "" {
		_, _ = fmt.Fprintf(w, "%s v%s\n", dim.Render("report"), v)
	}
	if s.FailureReason != "" {
		_, _ = fmt.Fprintf(w, "%s %s\n", dim.Render("reason"), s.FailureReason)
	}
	_, _ = fmt.Fprintln(w)

	rows := make([][]string, 0, len(s.Steps))
	for _, step := range s.Steps {
		label := lipgloss.NewStyle().Foreground(StepStatusColor(step.Status)).
			Render(StepStatusIcon(step.Status) + " " + StatusLabel(step.Status))
		duration := "-"
		if step.DurationMs > 0 {
			duration = FormatDuration(step.DurationMs)
		}
		rows = append(rows, []string{step.Step, label, StatusLabel(step.Criticality), duration, truncate(stepDetail(step), maxDetailWidth)})
	}
	writeTable(w, summaryHeaders, rows)

	if url := s.Value(domain.FieldConfluenceURL); url != "" {
		_, _ = fmt.Fprintf(w, "\n%s %s\n", dim.Render("confluence"), url)
	}
	if key := s.Value(domain.FieldIssueKey); key != "" {
		_, _ = fmt.Fprintf(w, "%s %s\n", dim.Render("issue"), key)
	}
}

// RenderHistory writes one row per archived run, newest first.
func RenderHistory(w io.Writer, runs []*domain.RunSummary, c clock.Clock) {
	CheckNoColor()
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, lipgloss.NewStyle().Foreground(ColorMuted).Render("No archived runs."))
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, s := range runs {
		counts := s.StepCounts()
		version := "-"
		if v := s.Value(domain.FieldReportVersion); v != "" {
			version = "v" + v
		}
		label := lipgloss.NewStyle().Foreground(RunStatusColor(s.Status)).
			Render(RunStatusIcon(s.Status) + " " + StatusLabel(s.Status))
		rows = append(rows, []string{
			s.RunID,
			label,
			RelativeTimeWith(s.CompletedAt, c),
			FormatDuration(s.DurationMs),
			version,
			fmt.Sprintf("%d/%d", counts[constants.StepStatusSuccess], len(s.Steps)),
		})
	}
	writeTable(w, historyHeaders, rows)
}

// writeTable pads every column to its widest visible cell.
func writeTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	header := lipgloss.NewStyle().Bold(true)
	parts := make([]string, len(headers))
	for i, h := range headers {
		parts[i] = header.Render(pad(h, widths[i]))
	}
	_, _ = fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))

	for _, row := range rows {
		for i, cell := range row {
			parts[i] = pad(cell, widths[i])
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}
}

func pad(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

func stepDetail(step domain.StepOutcome) string {
	if step.Error != "" {
		return step.Error
	}
	return step.Note
}

// SummaryMarkdown renders a run summary as a markdown document.
func SummaryMarkdown(s *domain.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s\n\n", s.Pipeline, StatusLabel(s.Status))
	fmt.Fprintf(&b, "- **Run:** `%s`\n", s.RunID)
	fmt.Fprintf(&b, "- **Results:** `%s`\n", s.ResultsDir)
	fmt.Fprintf(&b, "- **Started:** %s\n", s.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Duration:** %s\n", FormatDuration(s.DurationMs))
	if v := s.Value(domain.FieldReportVersion); v != "" {
		fmt.Fprintf(&b, "- **Report version:** %s\n", v)
	}
	if url := s.Value(domain.FieldConfluenceURL); url != "" {
		fmt.Fprintf(&b, "- **Confluence:** <%s>\n", url)
	}
	if key := s.Value(domain.FieldIssueKey); key != "" {
		fmt.Fprintf(&b, "- **Issue:** %s\n", key)
	}
	if s.FailureReason != "" {
		fmt.Fprintf(&b, "- **Reason:** %s\n", s.FailureReason)
	}

	b.WriteString("\n| Step | Status | Criticality | Duration | Detail |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, step := range s.Steps {
		fmt.Fprintf(&b, "| %s | %s %s | %s | %s | %s |\n",
			step.Step, StepStatusIcon(step.Status), StatusLabel(step.Status), StatusLabel(step.Criticality),
			FormatDuration(step.DurationMs), strings.ReplaceAll(stepDetail(step), "|", `\|`))
	}
	return b.String()
}

// RenderMarkdown renders markdown for the terminal. With styled false the
// "notty" style is used, which keeps output free of escape sequences.
func RenderMarkdown(md string, width int, styled bool) (string, error) {
	style := glamour.WithStandardStyle("notty")
	if styled && HasColorSupport() {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
