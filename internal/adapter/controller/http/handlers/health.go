package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/config"
)

var startTime = time.Now()

// Pinger checks a dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string            `json:"status"`
	Message     string            `json:"message"`
	Version     string            `json:"version"`
	Uptime      string            `json:"uptime"`
	Environment string            `json:"environment"`
	Timestamp   time.Time         `json:"timestamp"`
	Checks      map[string]string `json:"checks"`
	System      SystemInfo        `json:"system"`
}

// SystemInfo represents system information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAllocMB   uint64 `json:"mem_alloc_mb"`
}

// HealthCheck returns a handler for the health check endpoint. history may
// be nil when no lookup store is configured.
func HealthCheck(cfg *config.Config, history Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		checks := map[string]string{
			"api":     "ok",
			"history": "disabled",
		}
		if history != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			if err := history.Ping(ctx); err != nil {
				checks["history"] = "unreachable"
			} else {
				checks["history"] = "ok"
			}
			cancel()
		}

		// a missing history store does not make the API unhealthy
		status := "ok"
		if checks["history"] == "unreachable" {
			status = "degraded"
		}

		response := HealthResponse{
			Status:      status,
			Message:     "Threat Intelligence API is running",
			Version:     cfg.App.Version,
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			Environment: cfg.App.Env,
			Timestamp:   time.Now().UTC(),
			Checks:      checks,
			System: SystemInfo{
				GoVersion:    runtime.Version(),
				NumCPU:       runtime.NumCPU(),
				NumGoroutine: runtime.NumGoroutine(),
				MemAllocMB:   m.Alloc / 1024 / 1024,
			},
		}

		JSONResponse(w, http.StatusOK, response)
	}
}
