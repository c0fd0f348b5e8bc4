package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/config"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/usecase/reports"
)

const lookupBody = `{
	"query": "evil.example.com",
	"type": "domain",
	"timestamp": "2024-06-01T12:00:00Z",
	"sources": {"virustotal": {"found": true, "malicious": 9}},
	"aggregated": {"riskLevel": "Medium", "riskScore": 50, "threats": ["Detected as malicious by 9 antivirus engines"], "detections": 9, "totalSources": 1}
}`

func TestReportsHandler_GenerateReport(t *testing.T) {
	h := NewReportsHandler(reports.NewService(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/generate-report", strings.NewReader(lookupBody))
	rec := httptest.NewRecorder()
	h.GenerateReport(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Regexp(t, `^attachment; filename=threat-report-evil\.example\.com-\d{4}-\d{2}-\d{2}\.pdf$`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestReportsHandler_GenerateReport_XML(t *testing.T) {
	h := NewReportsHandler(reports.NewService(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/generate-report?format=xml", strings.NewReader(lookupBody))
	rec := httptest.NewRecorder()
	h.GenerateReport(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Query>evil.example.com</Query>")
}

func TestReportsHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		body     string
		wantCode int
		wantErr  string
	}{
		{"missing query", "/api/generate-report", `{"type":"ip"}`, http.StatusBadRequest, "Invalid threat data"},
		{"not json", "/api/generate-report", `<xml/>`, http.StatusBadRequest, "Invalid threat data"},
		{"bad format", "/api/generate-report?format=docx", lookupBody, http.StatusBadRequest, "Invalid format. Use 'pdf' or 'xml'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewReportsHandler(reports.NewService(nil))
			rec, body := do(t, http.HandlerFunc(h.GenerateReport), http.MethodPost, tt.target, tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, body["error"])
		})
	}
}

type failingGenerator struct{}

func (failingGenerator) GenerateReport(context.Context, *reports.ReportData, string) ([]byte, string, error) {
	return nil, "", errors.New("font missing")
}

func TestReportsHandler_RenderFailure(t *testing.T) {
	h := NewReportsHandler(failingGenerator{})
	rec, body := do(t, http.HandlerFunc(h.GenerateReport), http.MethodPost, "/api/generate-report", lookupBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to generate PDF report", body["error"])
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthCheck(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test", Version: "1.2.3"}}

	tests := []struct {
		name        string
		history     Pinger
		wantStatus  string
		wantHistory string
	}{
		{"no store", nil, "ok", "disabled"},
		{"store up", stubPinger{}, "ok", "ok"},
		{"store down", stubPinger{err: errors.New("dial tcp: refused")}, "degraded", "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, HealthCheck(cfg, tt.history), http.MethodGet, "/health", "")

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, "Threat Intelligence API is running", body["message"])
			assert.Equal(t, "1.2.3", body["version"])
			assert.Equal(t, "test", body["environment"])
			assert.Equal(t, tt.wantHistory, body["checks"].(map[string]any)["history"])
		})
	}
}
