package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/external/threatintel"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/entity"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/usecase/apiusage"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/usecase/threats"
)

const msgDatabaseNotConnected = "Database not connected"

// ThreatsService is the part of threats.Service used by the handler
type ThreatsService interface {
	Analyze(ctx context.Context, q entity.Query) (*threats.AnalysisResult, error)
	History(ctx context.Context, limit int) ([]entity.LookupRecord, error)
	GetLookup(ctx context.Context, id uuid.UUID) (*entity.LookupRecord, error)
	Stats(ctx context.Context) (*entity.LookupStats, error)
	Providers() []threatintel.ProviderStatus
}

// UsageReporter exposes per-provider call counters
type UsageReporter interface {
	Snapshot() map[string]apiusage.ProviderUsage
}

// ThreatsHandler handles threat intelligence HTTP requests
type ThreatsHandler struct {
	service ThreatsService
	usage   UsageReporter
}

// NewThreatsHandler creates a new threats handler
func NewThreatsHandler(service ThreatsService) *ThreatsHandler {
	return &ThreatsHandler{service: service}
}

// SetUsageReporter adds provider usage to the providers endpoint
func (h *ThreatsHandler) SetUsageReporter(u UsageReporter) {
	h.usage = u
}

// Analyze aggregates threat intelligence for one indicator
// POST /api/threat-intel
func (h *ThreatsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req ThreatIntelRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	query, err := req.Validate()
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := h.service.Analyze(r.Context(), query)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidQuery) {
			ErrorResponse(w, http.StatusBadRequest, entity.InvalidQueryMessage(err), nil)
			return
		}
		ErrorResponse(w, http.StatusInternalServerError, "Failed to analyze threat intelligence", err)
		return
	}

	JSONResponse(w, http.StatusOK, result)
}

// History returns the most recent lookups
// GET /api/history?limit=20
func (h *ThreatsHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := threats.DefaultHistoryLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	history, err := h.service.History(r.Context(), limit)
	if err != nil {
		if errors.Is(err, threats.ErrHistoryUnavailable) {
			JSONResponse(w, http.StatusOK, map[string]interface{}{
				"history": []entity.LookupRecord{},
				"message": msgDatabaseNotConnected,
			})
			return
		}
		ErrorResponse(w, http.StatusInternalServerError, "Failed to fetch history", err)
		return
	}

	if history == nil {
		history = []entity.LookupRecord{}
	}
	JSONResponse(w, http.StatusOK, map[string]interface{}{
		"history": history,
	})
}

// GetLookup returns one stored lookup with its source payloads
// GET /api/history/{id}
func (h *ThreatsHandler) GetLookup(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid lookup ID", err)
		return
	}

	rec, err := h.service.GetLookup(r.Context(), id)
	switch {
	case err == nil:
		JSONResponse(w, http.StatusOK, rec)
	case errors.Is(err, threats.ErrHistoryUnavailable):
		ErrorResponse(w, http.StatusServiceUnavailable, msgDatabaseNotConnected, nil)
	case errors.Is(err, entity.ErrLookupNotFound):
		ErrorResponse(w, http.StatusNotFound, "Lookup not found", nil)
	default:
		ErrorResponse(w, http.StatusInternalServerError, "Failed to fetch lookup", err)
	}
}

// Stats returns lookup totals by risk level
// GET /api/stats
func (h *ThreatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		if errors.Is(err, threats.ErrHistoryUnavailable) {
			JSONResponse(w, http.StatusOK, map[string]interface{}{
				"totalLookups":     0,
				"riskDistribution": map[string]uint64{},
				"message":          msgDatabaseNotConnected,
			})
			return
		}
		ErrorResponse(w, http.StatusInternalServerError, "Failed to fetch stats", err)
		return
	}

	JSONResponse(w, http.StatusOK, stats)
}

// Providers returns the configured state of each threat intel provider
// GET /api/providers
func (h *ThreatsHandler) Providers(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"providers": h.service.Providers(),
	}
	if h.usage != nil {
		response["usage"] = h.usage.Snapshot()
	}
	JSONResponse(w, http.StatusOK, response)
}
