package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/external/threatintel"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/entity"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/usecase/apiusage"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/usecase/threats"
)

type MockThreatsService struct {
	mock.Mock
}

func (m *MockThreatsService) Analyze(ctx context.Context, q entity.Query) (*threats.AnalysisResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*threats.AnalysisResult), args.Error(1)
}

func (m *MockThreatsService) History(ctx context.Context, limit int) ([]entity.LookupRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.LookupRecord), args.Error(1)
}

func (m *MockThreatsService) GetLookup(ctx context.Context, id uuid.UUID) (*entity.LookupRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LookupRecord), args.Error(1)
}

func (m *MockThreatsService) Stats(ctx context.Context) (*entity.LookupStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LookupStats), args.Error(1)
}

func (m *MockThreatsService) Providers() []threatintel.ProviderStatus {
	return m.Called().Get(0).([]threatintel.ProviderStatus)
}

type stubUsage map[string]apiusage.ProviderUsage

func (s stubUsage) Snapshot() map[string]apiusage.ProviderUsage { return s }

func newRouter(h *ThreatsHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/threat-intel", h.Analyze)
	r.Get("/api/history", h.History)
	r.Get("/api/history/{id}", h.GetLookup)
	r.Get("/api/stats", h.Stats)
	r.Get("/api/providers", h.Providers)
	return r
}

func do(t *testing.T, handler http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestThreatsHandler_Analyze_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing type", `{"query":"8.8.8.8"}`, "Missing required fields: query and type"},
		{"missing query", `{"type":"ip"}`, "Missing required fields: query and type"},
		{"empty query", `{"query":"","type":"ip"}`, "Missing required fields: query and type"},
		{"blank query", `{"query":"   ","type":"ip"}`, "Query cannot be empty"},
		{"blank query bad type", `{"query":"  ","type":"url"}`, "Query cannot be empty"},
		{"bad type", `{"query":"8.8.8.8","type":"url"}`, "Invalid type. Must be: ip, domain, or hash"},
		{"bad ip", `{"query":"999.1.1.1","type":"ip"}`, "Invalid IP address format"},
		{"bad domain", `{"query":"not_a_domain","type":"domain"}`, "Invalid domain format"},
		{"bad hash", `{"query":"abc","type":"hash"}`, "Invalid hash format. Must be MD5 (32 chars), SHA1 (40 chars), or SHA256 (64 chars)"},
		{"malformed json", `{"query":`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockThreatsService)
			rec, body := do(t, newRouter(NewThreatsHandler(svc)), http.MethodPost, "/api/threat-intel", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantErr, body["error"])
			assert.Equal(t, false, body["success"])
			svc.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
		})
	}
}

func TestThreatsHandler_Analyze(t *testing.T) {
	svc := new(MockThreatsService)
	result := &threats.AnalysisResult{
		ID:        uuid.New(),
		Query:     "8.8.8.8",
		Type:      entity.KindIP,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Sources: map[string]threatintel.Result{
			threatintel.ProviderShodan: &threatintel.Unavailable{Reason: threatintel.ReasonRateLimited, Error: "API rate limit exceeded"},
		},
		Aggregated: threatintel.Verdict{RiskLevel: threatintel.RiskClean, Threats: []string{}},
	}
	svc.On("Analyze", mock.Anything, entity.Query{Value: "8.8.8.8", Kind: entity.KindIP}).Return(result, nil)

	rec, body := do(t, newRouter(NewThreatsHandler(svc)), http.MethodPost, "/api/threat-intel", `{"query":" 8.8.8.8 ","type":"ip"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "8.8.8.8", body["query"])
	sources := body["sources"].(map[string]any)
	assert.Equal(t, map[string]any{"error": "API rate limit exceeded", "reason": "rate_limited"}, sources["shodan"])
	assert.Equal(t, "Clean", body["aggregated"].(map[string]any)["riskLevel"])
	svc.AssertExpectations(t)
}

func TestThreatsHandler_Analyze_ServiceError(t *testing.T) {
	svc := new(MockThreatsService)
	svc.On("Analyze", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	rec, body := do(t, newRouter(NewThreatsHandler(svc)), http.MethodPost, "/api/threat-intel", `{"query":"example.com","type":"domain"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to analyze threat intelligence", body["error"])
	assert.Equal(t, "boom", body["details"])
}

func TestThreatsHandler_History(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantLimit int
	}{
		{"default", "/api/history", threats.DefaultHistoryLimit},
		{"explicit", "/api/history?limit=5", 5},
		{"invalid falls back", "/api/history?limit=abc", threats.DefaultHistoryLimit},
		{"negative falls back", "/api/history?limit=-3", threats.DefaultHistoryLimit},
		{"large passed through", "/api/history?limit=500", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockThreatsService)
			svc.On("History", mock.Anything, tt.wantLimit).Return([]entity.LookupRecord{{Query: "8.8.8.8", Type: entity.KindIP}}, nil)

			rec, body := do(t, newRouter(NewThreatsHandler(svc)), http.MethodGet, tt.target, "")

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Len(t, body["history"], 1)
			svc.AssertExpectations(t)
		})
	}
}

func TestThreatsHandler_NoDatabase(t *testing.T) {
	svc := new(MockThreatsService)
	svc.On("History", mock.Anything, mock.Anything).Return(nil, threats.ErrHistoryUnavailable)
	svc.On("Stats", mock.Anything).Return(nil, threats.ErrHistoryUnavailable)
	svc.On("GetLookup", mock.Anything, mock.Anything).Return(nil, threats.ErrHistoryUnavailable)
	router := newRouter(NewThreatsHandler(svc))

	rec, body := do(t, router, http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["history"])
	assert.Equal(t, "Database not connected", body["message"])

	rec, body = do(t, router, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["totalLookups"])
	assert.Equal(t, map[string]any{}, body["riskDistribution"])
	assert.Equal(t, "Database not connected", body["message"])

	rec, _ = do(t, router, http.MethodGet, "/api/history/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestThreatsHandler_GetLookup(t *testing.T) {
	id := uuid.New()
	missing := uuid.New()

	svc := new(MockThreatsService)
	svc.On("GetLookup", mock.Anything, id).Return(&entity.LookupRecord{ID: id, Query: "example.com", Sources: json.RawMessage(`{"virustotal":{"found":false}}`)}, nil)
	svc.On("GetLookup", mock.Anything, missing).Return(nil, fmt.Errorf("fetch lookup: %w", entity.ErrLookupNotFound))
	router := newRouter(NewThreatsHandler(svc))

	rec, body := do(t, router, http.MethodGet, "/api/history/"+id.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "example.com", body["query"])
	assert.Contains(t, body, "sources")

	rec, _ = do(t, router, http.MethodGet, "/api/history/"+missing.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, router, http.MethodGet, "/api/history/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid lookup ID", body["error"])
}

func TestThreatsHandler_Stats(t *testing.T) {
	svc := new(MockThreatsService)
	svc.On("Stats", mock.Anything).Return(&entity.LookupStats{
		TotalLookups:     7,
		RiskDistribution: map[string]uint64{"High": 2, "Clean": 5},
	}, nil)

	rec, body := do(t, newRouter(NewThreatsHandler(svc)), http.MethodGet, "/api/stats", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(7), body["totalLookups"])
	assert.Equal(t, map[string]any{"High": float64(2), "Clean": float64(5)}, body["riskDistribution"])
}

func TestThreatsHandler_Providers(t *testing.T) {
	svc := new(MockThreatsService)
	svc.On("Providers").Return([]threatintel.ProviderStatus{
		{Name: threatintel.ProviderVirusTotal, Configured: true, Supports: []string{"ip", "domain", "hash"}},
		{Name: threatintel.ProviderShodan, Configured: false, Supports: []string{"ip"}},
	})

	h := NewThreatsHandler(svc)
	rec, body := do(t, newRouter(h), http.MethodGet, "/api/providers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["providers"], 2)
	assert.NotContains(t, body, "usage")

	h.SetUsageReporter(stubUsage{"virustotal": {Provider: "virustotal", TotalCalls: 3}})
	_, body = do(t, newRouter(h), http.MethodGet, "/api/providers", "")
	usage := body["usage"].(map[string]any)
	assert.Equal(t, float64(3), usage["virustotal"].(map[string]any)["totalCalls"])
}
