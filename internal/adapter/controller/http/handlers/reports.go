package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/usecase/reports"
)

// ReportGenerator renders lookup reports
type ReportGenerator interface {
	GenerateReport(ctx context.Context, data *reports.ReportData, format string) ([]byte, string, error)
}

// ReportsHandler handles report-related HTTP requests
type ReportsHandler struct {
	service ReportGenerator
}

// NewReportsHandler creates a new reports handler
func NewReportsHandler(service ReportGenerator) *ReportsHandler {
	return &ReportsHandler{service: service}
}

// GenerateReport renders a lookup response as a downloadable report.
// The body is the JSON returned by POST /api/threat-intel.
// POST /api/generate-report?format=pdf|xml
func (h *ReportsHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var data reports.ReportData
	if err := DecodeJSON(w, r, &data); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid threat data", err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = reports.FormatPDF
	}
	if format != reports.FormatPDF && format != reports.FormatXML {
		ErrorResponse(w, http.StatusBadRequest, "Invalid format. Use 'pdf' or 'xml'", nil)
		return
	}

	out, filename, err := h.service.GenerateReport(r.Context(), &data, format)
	if err != nil {
		if errors.Is(err, reports.ErrInvalidReport) {
			ErrorResponse(w, http.StatusBadRequest, "Invalid threat data", nil)
			return
		}
		ErrorResponse(w, http.StatusInternalServerError, "Failed to generate PDF report", err)
		return
	}

	w.Header().Set("Content-Type", reports.ContentType(format))
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}
