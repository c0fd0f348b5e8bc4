package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/external/threatintel"
)

const (
	FormatPDF = "pdf"
	FormatXML = "xml"
)

// ErrInvalidReport is returned when the submitted lookup cannot be rendered
var ErrInvalidReport = errors.New("invalid threat data")

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ReportData is a lookup response as returned by POST /api/threat-intel.
// Sources are kept raw so reports can be rendered for lookups produced by
// older versions of the API.
type ReportData struct {
	ID         string                     `json:"id,omitempty"`
	Query      string                     `json:"query"`
	Type       string                     `json:"type"`
	Timestamp  time.Time                  `json:"timestamp"`
	Sources    map[string]json.RawMessage `json:"sources"`
	Aggregated threatintel.Verdict        `json:"aggregated"`

	GeneratedAt time.Time `json:"-"`
}

// Service handles report generation
type Service struct {
	pdfGenerator *PDFGenerator
	xmlGenerator *XMLGenerator
	logger       *slog.Logger
	now          func() time.Time
}

// NewService creates a new reports service
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pdfGenerator: NewPDFGenerator(),
		xmlGenerator: NewXMLGenerator(),
		logger:       logger,
		now:          time.Now,
	}
}

// GenerateReport renders data in the requested format and returns the
// document with its download filename
func (s *Service) GenerateReport(_ context.Context, data *ReportData, format string) ([]byte, string, error) {
	if data == nil || data.Query == "" {
		return nil, "", ErrInvalidReport
	}
	if format == "" {
		format = FormatPDF
	}

	generated := s.now().UTC()
	data.GeneratedAt = generated

	var (
		out []byte
		err error
	)
	switch format {
	case FormatPDF:
		out, err = s.pdfGenerator.Generate(data)
	case FormatXML:
		out, err = s.xmlGenerator.Generate(data)
	default:
		return nil, "", fmt.Errorf("%w: unsupported format %q", ErrInvalidReport, format)
	}
	if err != nil {
		return nil, "", err
	}

	filename := Filename(data.Query, generated, format)
	s.logger.Info("Report generated",
		"query", data.Query,
		"format", format,
		"risk_level", data.Aggregated.RiskLevel,
		"size_bytes", len(out),
		"filename", filename,
	)

	return out, filename, nil
}

// Filename builds threat-report-<query>-<date>.<ext>, replacing characters
// that are unsafe in a Content-Disposition header
func Filename(query string, at time.Time, format string) string {
	safe := unsafeFilename.ReplaceAllString(query, "_")
	return fmt.Sprintf("threat-report-%s-%s.%s", safe, at.Format("2006-01-02"), format)
}

// ContentType returns the MIME type for a report format
func ContentType(format string) string {
	if format == FormatXML {
		return "application/xml"
	}
	return "application/pdf"
}
