package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

type rgb struct{ r, g, b int }

//nolint:gochecknoglobals // palette
var (
	colorPassed  = rgb{46, 125, 50}
	colorFailed  = rgb{198, 40, 40}
	colorErrored = rgb{239, 108, 0}
	colorSkipped = rgb{158, 158, 158}
	colorHeader  = rgb{245, 245, 245}
)

// RenderPDF renders the PDF report: title, overall status, a bar chart of
// outcome counts and a metric table.
func RenderPDF(in RenderInput) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("%s v%s", in.Title, in.Version), true)
	pdf.SetCreator("herald", true)
	pdf.SetCreationDate(in.GeneratedAt)
	pdf.AddPage()

	summary := in.Results.Summary

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr(in.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Version %s - generated %s", in.Version, in.GeneratedAt.Format("2006-01-02 15:04:05 MST"))), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	status := colorPassed
	if !summary.OK() {
		status = colorFailed
	}
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetFillColor(status.r, status.g, status.b)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(40, 10, summary.Status(), "", 1, "C", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)

	drawBarChart(pdf, []bar{
		{"Passed", summary.Passed, colorPassed},
		{"Failed", summary.Failed, colorFailed},
		{"Errors", summary.Errors, colorErrored},
		{"Skipped", summary.Skipped, colorSkipped},
	})
	pdf.Ln(8)

	drawMetricTable(pdf, [][2]string{
		{"Total tests", fmt.Sprint(summary.Total)},
		{"Passed", fmt.Sprint(summary.Passed)},
		{"Failed", fmt.Sprint(summary.Failed)},
		{"Errors", fmt.Sprint(summary.Errors)},
		{"Skipped", fmt.Sprint(summary.Skipped)},
		{"Pass rate", fmt.Sprintf("%.1f%%", summary.PassRate())},
		{"Duration", fmt.Sprintf("%.2fs", summary.Duration)},
	})

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type bar struct {
	label string
	value int
	color rgb
}

const (
	chartHeight = 50.0
	barWidth    = 25.0
	barGap      = 12.0
)

func drawBarChart(pdf *fpdf.Fpdf, bars []bar) {
	highest := 1
	for _, b := range bars {
		highest = max(highest, b.value)
	}

	left, top := pdf.GetXY()
	baseline := top + chartHeight

	pdf.SetDrawColor(180, 180, 180)
	pdf.Line(left, baseline, left+float64(len(bars))*(barWidth+barGap), baseline)

	pdf.SetFont("Helvetica", "", 9)
	for i, b := range bars {
		x := left + float64(i)*(barWidth+barGap)
		h := chartHeight * float64(b.value) / float64(highest)
		if h > 0 {
			pdf.SetFillColor(b.color.r, b.color.g, b.color.b)
			pdf.Rect(x, baseline-h, barWidth, h, "F")
		}
		pdf.SetXY(x, baseline-h-5)
		pdf.CellFormat(barWidth, 5, fmt.Sprint(b.value), "", 0, "C", false, 0, "")
		pdf.SetXY(x, baseline+1)
		pdf.CellFormat(barWidth, 5, b.label, "", 0, "C", false, 0, "")
	}
	pdf.SetXY(left, baseline+8)
}

func drawMetricTable(pdf *fpdf.Fpdf, rows [][2]string) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(colorHeader.r, colorHeader.g, colorHeader.b)
	pdf.CellFormat(60, 8, "Metric", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 8, "Value", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, row := range rows {
		pdf.CellFormat(60, 7, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, row[1], "1", 1, "R", false, 0, "")
	}
}
