package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/mrz1836/herald/internal/domain"
)

// Links are the optional cross-references included in published summaries.
type Links struct {
	ConfluenceURL string
	IssueKey      string
	IssueURL      string
}

// SummaryMarkdown renders the short report summary shared by the Confluence
// page body and the notification email.
func SummaryMarkdown(title, version string, s domain.TestSummary, links Links) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s v%s\n\n", title, version)
	fmt.Fprintf(&b, "**Overall status: %s**\n\n", s.Status())
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total | %d |\n", s.Total)
	fmt.Fprintf(&b, "| Passed | %d |\n", s.Passed)
	fmt.Fprintf(&b, "| Failed | %d |\n", s.Failed)
	fmt.Fprintf(&b, "| Errors | %d |\n", s.Errors)
	fmt.Fprintf(&b, "| Skipped | %d |\n", s.Skipped)
	fmt.Fprintf(&b, "| Pass rate | %.1f%% |\n", s.PassRate())

	if links.ConfluenceURL != "" || links.IssueURL != "" {
		b.WriteString("\n")
	}
	if links.ConfluenceURL != "" {
		fmt.Fprintf(&b, "- Full report: [Confluence](%s)\n", links.ConfluenceURL)
	}
	if links.IssueURL != "" {
		label := links.IssueKey
		if label == "" {
			label = "issue"
		}
		fmt.Fprintf(&b, "- Test execution: [%s](%s)\n", label, links.IssueURL)
	}
	return b.String()
}

//nolint:gochecknoglobals // configured once
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Linkify),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

// MarkdownToHTML converts markdown to XHTML, which both email clients and the
// Confluence storage format accept.
func MarkdownToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return buf.String(), nil
}
