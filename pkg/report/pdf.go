package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/safeops/postureboard/pkg/apis/posture/v1alpha1"
	"github.com/safeops/postureboard/pkg/postureboard"
	"github.com/safeops/postureboard/pkg/report/templates"
)

const (
	// PDFReportLimit caps the vulnerability reports listed in the PDF.
	PDFReportLimit = 10
	// PDFFixLimit caps the fix suggestions listed in the PDF.
	PDFFixLimit = 10

	pdfFont       = "Helvetica"
	pdfMonoFont   = "Courier"
	pdfLineHeight = 5.0
	pdfMargin     = 15.0
)

var severityColors = map[v1alpha1.Severity][3]int{
	v1alpha1.SeverityCritical: {183, 28, 28},
	v1alpha1.SeverityHigh:     {230, 81, 0},
	v1alpha1.SeverityMedium:   {249, 168, 37},
	v1alpha1.SeverityLow:      {84, 110, 122},
}

type pdfReporter struct {
}

// NewPDFReporter returns a Reporter writing an A4 document with one page per
// section: summary, vulnerabilities, fix suggestions and anomalies. The
// output only depends on the page, including its generation time.
func NewPDFReporter() Reporter {
	return &pdfReporter{}
}

func (r *pdfReporter) Generate(page *templates.ReportPage, writer io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(page.GeneratedAt)
	pdf.SetModificationDate(page.GeneratedAt)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)

	w := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetTitle(w.tr("Security Posture Report - "+page.Pipeline), false)
	pdf.SetCreator(postureboard.ToolName, false)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin + 5)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, fmt.Sprintf("%s - page %d/{nb}", page.Pipeline, pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	w.summary(page)
	w.vulnerabilities(page)
	w.fixes(page)
	w.anomalies(page)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("drawing pdf report: %w", err)
	}
	if err := pdf.Output(writer); err != nil {
		return fmt.Errorf("writing pdf report: %w", err)
	}
	return nil
}

type pdfWriter struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (w *pdfWriter) heading(text string) {
	w.pdf.SetFont(pdfFont, "B", 16)
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.CellFormat(0, 10, w.tr(text), "B", 1, "L", false, 0, "")
	w.pdf.Ln(4)
}

func (w *pdfWriter) subheading(text string) {
	w.pdf.SetFont(pdfFont, "B", 12)
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.MultiCell(0, 6, w.tr(text), "", "L", false)
}

func (w *pdfWriter) text(style string, size float64, text string) {
	w.pdf.SetFont(pdfFont, style, size)
	w.pdf.SetTextColor(40, 40, 40)
	w.pdf.MultiCell(0, pdfLineHeight, w.tr(text), "", "L", false)
}

func (w *pdfWriter) keyValue(key, value string) {
	w.pdf.SetFont(pdfFont, "B", 10)
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.CellFormat(50, 6, w.tr(key), "", 0, "L", false, 0, "")
	w.pdf.SetFont(pdfFont, "", 10)
	w.pdf.CellFormat(0, 6, w.tr(value), "", 1, "L", false, 0, "")
}

func (w *pdfWriter) summary(page *templates.ReportPage) {
	w.pdf.AddPage()
	w.pdf.SetFont(pdfFont, "B", 22)
	w.pdf.CellFormat(0, 12, "Security Posture Report", "", 1, "L", false, 0, "")
	w.pdf.Ln(2)

	w.keyValue("Pipeline", page.Pipeline)
	w.keyValue("Generated", page.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	w.keyValue("Mode", string(page.Mode))
	w.pdf.Ln(6)

	w.heading("Score")
	w.pdf.SetFont(pdfFont, "B", 40)
	w.pdf.CellFormat(0, 18, fmt.Sprintf("%d / 100", page.Score.Value), "", 1, "L", false, 0, "")
	w.pdf.Ln(2)

	w.keyValue("Reports", fmt.Sprintf("%d", page.Stats.Reports))
	w.keyValue("Findings", fmt.Sprintf("%d", page.Stats.Findings))
	w.keyValue("Critical", fmt.Sprintf("%d", page.Stats.Critical))
	w.keyValue("High", fmt.Sprintf("%d", page.Stats.High))
	w.keyValue("Medium", fmt.Sprintf("%d", page.Stats.Medium))
	w.keyValue("Low", fmt.Sprintf("%d", page.Stats.Low))
	w.keyValue("Total risk", fmt.Sprintf("%d", page.Score.Details.TotalRisk))
	w.keyValue("Vulnerability penalty", fmt.Sprintf("-%d", page.Penalties.Vuln))
	w.keyValue("Anomaly penalty", fmt.Sprintf("-%d", page.Penalties.Anomaly))
}

func (w *pdfWriter) vulnerabilities(page *templates.ReportPage) {
	w.pdf.AddPage()
	w.heading("Vulnerabilities")
	if len(page.Vulns) == 0 {
		w.text("I", 10, "No vulnerability reports.")
		return
	}
	for i, v := range page.Vulns {
		if i == PDFReportLimit {
			w.text("I", 9, fmt.Sprintf("%d more reports not shown.", len(page.Vulns)-PDFReportLimit))
			break
		}
		w.subheading(fmt.Sprintf("Run %s", v.Report.RunID))
		w.text("", 9, fmt.Sprintf("%s | %s | %s", v.Report.Source, v.Report.Status, v.Report.CreatedAt.UTC().Format("2006-01-02 15:04:05")))
		if len(v.Findings) == 0 {
			w.text("I", 9, "No findings.")
		}
		for _, f := range v.Findings {
			w.finding(f)
		}
		w.pdf.Ln(3)
	}
}

func (w *pdfWriter) finding(f v1alpha1.Finding) {
	w.pdf.Ln(1)
	color := severityColors[v1alpha1.ParseSeverity(string(f.Severity))]
	w.pdf.SetFont(pdfFont, "B", 10)
	w.pdf.SetTextColor(color[0], color[1], color[2])
	w.pdf.CellFormat(22, pdfLineHeight, strings.ToUpper(string(f.Severity)), "", 0, "L", false, 0, "")
	w.pdf.SetTextColor(0, 0, 0)

	title := f.Title
	if f.RuleID != "" {
		title = fmt.Sprintf("%s  %s", f.RuleID, f.Title)
	}
	w.pdf.MultiCell(0, pdfLineHeight, w.tr(title), "", "L", false)

	if f.Description != "" && f.Description != f.Title {
		w.text("", 9, f.Description)
	}
	if f.Recommendation != "" {
		w.text("I", 9, "Recommendation: "+f.Recommendation)
	}
}

func (w *pdfWriter) fixes(page *templates.ReportPage) {
	w.pdf.AddPage()
	w.heading("Fix Suggestions")
	if len(page.Fixes) == 0 {
		w.text("I", 10, "No fix suggestions.")
		return
	}
	for i, fix := range page.Fixes {
		if i == PDFFixLimit {
			break
		}
		w.subheading(fix.Title)
		w.text("", 9, fmt.Sprintf("%s | %s | %s", fix.RuleID, fix.PipelineID, fix.RunID))
		if fix.Patch != "" {
			w.pdf.SetFont(pdfMonoFont, "", 8)
			w.pdf.SetFillColor(245, 245, 245)
			w.pdf.MultiCell(0, 4, w.tr(fix.Patch), "", "L", true)
		}
		w.pdf.Ln(3)
	}
}

func (w *pdfWriter) anomalies(page *templates.ReportPage) {
	w.pdf.AddPage()
	w.heading("Anomalies")
	w.text("", 11, fmt.Sprintf("Detected anomalies: %d", page.Anomalies))
}
