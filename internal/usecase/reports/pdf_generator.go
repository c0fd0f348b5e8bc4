package reports

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/external/threatintel"
)

// PDFGenerator renders a single lookup as a PDF threat report
type PDFGenerator struct{}

// NewPDFGenerator creates a new PDF generator
func NewPDFGenerator() *PDFGenerator {
	return &PDFGenerator{}
}

// Color definitions
var (
	colorPrimary = []int{37, 99, 235}   // Blue
	colorDanger  = []int{239, 68, 68}   // Red
	colorWarning = []int{245, 158, 11}  // Amber
	colorSuccess = []int{34, 197, 94}   // Green
	colorMuted   = []int{107, 114, 128} // Gray
	colorDark    = []int{31, 41, 55}    // Dark gray
	colorLight   = []int{243, 244, 246} // Light gray
	colorWhite   = []int{255, 255, 255}
)

// levelColor maps a risk level to its accent color
func levelColor(level threatintel.RiskLevel) []int {
	switch level {
	case threatintel.RiskHigh:
		return colorDanger
	case threatintel.RiskMedium:
		return colorWarning
	case threatintel.RiskLow:
		return colorPrimary
	case threatintel.RiskClean:
		return colorSuccess
	}
	return colorMuted
}

// Generate creates the PDF for one lookup
func (g *PDFGenerator) Generate(data *ReportData) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(fmt.Sprintf("Threat Report - %s", data.Query), true)

	// core fonts are cp1252
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	g.addHeader(pdf, tr, data)
	g.addSummary(pdf, data)
	g.addThreats(pdf, tr, data)

	for _, section := range sourceSections(data.Sources) {
		g.addSource(pdf, tr, section)
	}

	g.addFooter(pdf, data)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return buf.Bytes(), nil
}

func (g *PDFGenerator) addHeader(pdf *fpdf.Fpdf, tr func(string) string, data *ReportData) {
	color := levelColor(data.Aggregated.RiskLevel)
	pdf.SetFillColor(color[0], color[1], color[2])
	pdf.Rect(0, 0, 210, 55, "F")

	pdf.SetTextColor(colorWhite[0], colorWhite[1], colorWhite[2])
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetY(15)
	pdf.CellFormat(0, 10, "THREAT INTELLIGENCE REPORT", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 13)
	pdf.CellFormat(0, 8, tr(data.Query), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	subtitle := fmt.Sprintf("Type: %s", strings.ToUpper(data.Type))
	if !data.Timestamp.IsZero() {
		subtitle += " | Analyzed: " + data.Timestamp.UTC().Format("January 2, 2006 at 15:04 UTC")
	}
	pdf.CellFormat(0, 6, subtitle, "", 1, "C", false, 0, "")

	pdf.SetTextColor(colorDark[0], colorDark[1], colorDark[2])
	pdf.SetY(65)
}

func (g *PDFGenerator) addSummary(pdf *fpdf.Fpdf, data *ReportData) {
	g.addSectionHeader(pdf, "Risk Assessment")

	agg := data.Aggregated
	startY := pdf.GetY() + 2
	cardWidth := 85.0
	cardHeight := 25.0

	g.drawMetricCard(pdf, 15, startY, cardWidth, cardHeight, "Risk Level", string(agg.RiskLevel), levelColor(agg.RiskLevel))
	g.drawMetricCard(pdf, 105, startY, cardWidth, cardHeight, "Risk Score", fmt.Sprintf("%d / 100", agg.RiskScore), levelColor(agg.RiskLevel))
	g.drawMetricCard(pdf, 15, startY+30, cardWidth, cardHeight, "Engine Detections", fmt.Sprintf("%d", agg.Detections), colorDanger)
	g.drawMetricCard(pdf, 105, startY+30, cardWidth, cardHeight, "Sources Queried", fmt.Sprintf("%d", agg.TotalSources), colorPrimary)

	pdf.SetY(startY + 60)
	g.drawScoreBar(pdf, agg.RiskScore, levelColor(agg.RiskLevel))
	pdf.Ln(8)
}

func (g *PDFGenerator) addThreats(pdf *fpdf.Fpdf, tr func(string) string, data *ReportData) {
	g.addSubHeader(pdf, "Threat Indicators")

	if len(data.Aggregated.Threats) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
		pdf.CellFormat(0, 7, "No threats identified.", "", 1, "L", false, 0, "")
		pdf.Ln(4)
		return
	}

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(colorDark[0], colorDark[1], colorDark[2])
	for _, threat := range data.Aggregated.Threats {
		pdf.SetX(18)
		pdf.MultiCell(172, 6, "- "+tr(threat), "", "L", false)
	}
	pdf.Ln(4)
}

func (g *PDFGenerator) addSource(pdf *fpdf.Fpdf, tr func(string) string, section SourceSection) {
	if pdf.GetY() > 240 {
		pdf.AddPage()
	}
	g.addSubHeader(pdf, section.Title)

	if section.Unavailable != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
		pdf.CellFormat(0, 6, tr("Unavailable: "+section.Unavailable), "", 1, "L", false, 0, "")
		pdf.Ln(4)
		return
	}

	if len(section.Facts) == 0 {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
		pdf.CellFormat(0, 6, "No data returned.", "", 1, "L", false, 0, "")
		pdf.Ln(4)
		return
	}

	widths := []float64{50, 130}
	g.drawTableHeader(pdf, []string{"Field", "Value"}, widths)
	for i, fact := range section.Facts {
		g.drawTableRow(pdf, []string{tr(fact.Label), tr(fact.Value)}, widths, i%2 == 1)
	}
	pdf.Ln(6)
}

func (g *PDFGenerator) addFooter(pdf *fpdf.Fpdf, data *ReportData) {
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
	pdf.CellFormat(0, 4, fmt.Sprintf("Generated: %s", data.GeneratedAt.Format("January 2, 2006 at 15:04 UTC")), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 4, "Confidential - For authorized personnel only", "", 1, "C", false, 0, "")
}

func (g *PDFGenerator) addSectionHeader(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(colorDark[0], colorDark[1], colorDark[2])
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.SetLineWidth(0.5)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(5)
}

func (g *PDFGenerator) addSubHeader(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(colorDark[0], colorDark[1], colorDark[2])
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func (g *PDFGenerator) drawMetricCard(pdf *fpdf.Fpdf, x, y, w, h float64, label string, value string, color []int) {
	pdf.SetFillColor(colorLight[0], colorLight[1], colorLight[2])
	pdf.RoundedRect(x, y, w, h, 2, "1234", "F")

	// accent
	pdf.SetFillColor(color[0], color[1], color[2])
	pdf.Rect(x, y, 3, h, "F")

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
	pdf.SetXY(x+6, y+3)
	pdf.CellFormat(w-8, 4, label, "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(colorDark[0], colorDark[1], colorDark[2])
	pdf.SetXY(x+6, y+10)
	pdf.CellFormat(w-8, 8, value, "", 0, "L", false, 0, "")
}

// drawScoreBar draws the 0-100 gauge under the metric cards
func (g *PDFGenerator) drawScoreBar(pdf *fpdf.Fpdf, score int, color []int) {
	x, y := 15.0, pdf.GetY()
	width, height := 180.0, 6.0

	pdf.SetFillColor(colorLight[0], colorLight[1], colorLight[2])
	pdf.Rect(x, y, width, height, "F")

	if score > 0 {
		pdf.SetFillColor(color[0], color[1], color[2])
		pdf.Rect(x, y, width*float64(min(score, 100))/100, height, "F")
	}
	pdf.SetY(y + height)
}

func (g *PDFGenerator) drawTableHeader(pdf *fpdf.Fpdf, headers []string, widths []float64) {
	pdf.SetFillColor(colorDark[0], colorDark[1], colorDark[2])
	pdf.SetTextColor(colorWhite[0], colorWhite[1], colorWhite[2])
	pdf.SetFont("Helvetica", "B", 9)

	for i, header := range headers {
		pdf.CellFormat(widths[i], 7, header, "", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

func (g *PDFGenerator) drawTableRow(pdf *fpdf.Fpdf, values []string, widths []float64, alternate bool) {
	if alternate {
		pdf.SetFillColor(colorLight[0], colorLight[1], colorLight[2])
	} else {
		pdf.SetFillColor(colorWhite[0], colorWhite[1], colorWhite[2])
	}
	pdf.SetTextColor(colorDark[0], colorDark[1], colorDark[2])
	pdf.SetFont("Helvetica", "", 8)

	for i, value := range values {
		pdf.CellFormat(widths[i], 6, value, "", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}
