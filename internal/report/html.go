package report

import (
	"bytes"
	"fmt"
	"html/template"
)

//nolint:gochecknoglobals // parsed once
var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct": func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"sec": func(v float64) string { return fmt.Sprintf("%.2fs", v) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} v{{.Version}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 2em; color: #222; }
h1 { margin-bottom: 0.2em; }
.meta { color: #666; margin-bottom: 1.5em; }
.status { display: inline-block; padding: 0.2em 0.8em; border-radius: 4px; color: #fff; font-weight: bold; }
.PASS { background: #2e7d32; }
.FAIL { background: #c62828; }
table { border-collapse: collapse; width: 100%; margin-top: 1em; }
th, td { border: 1px solid #ddd; padding: 6px 8px; text-align: left; }
th { background: #f5f5f5; }
tr.failed td, tr.error td { background: #fdecea; }
tr.skipped td { color: #888; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">Version {{.Version}} &middot; generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</div>
<p>Overall status: <span class="status {{.Results.Summary.Status}}">{{.Results.Summary.Status}}</span></p>
<table class="summary">
<tr><th>Total</th><th>Passed</th><th>Failed</th><th>Errors</th><th>Skipped</th><th>Pass rate</th><th>Duration</th></tr>
<tr><td>{{.Results.Summary.Total}}</td><td>{{.Results.Summary.Passed}}</td><td>{{.Results.Summary.Failed}}</td><td>{{.Results.Summary.Errors}}</td><td>{{.Results.Summary.Skipped}}</td><td>{{pct .Results.Summary.PassRate}}</td><td>{{sec .Results.Summary.Duration}}</td></tr>
</table>
<h2>Test cases</h2>
<table class="cases">
<tr><th>Suite</th><th>Test</th><th>Status</th><th>Duration</th><th>Message</th></tr>
{{- range .Results.Cases}}
<tr class="{{.Status}}"><td>{{.Suite}}</td><td>{{.Name}}</td><td>{{.Status}}</td><td>{{sec .Duration}}</td><td>{{.Message}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

// RenderHTML renders the HTML report for in.
func RenderHTML(in RenderInput) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, in); err != nil {
		return nil, fmt.Errorf("failed to render html: %w", err)
	}
	return buf.Bytes(), nil
}
