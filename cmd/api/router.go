package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/controller/http/handlers"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/controller/http/middleware"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/config"
)

type routes struct {
	threats *handlers.ThreatsHandler
	reports *handlers.ReportsHandler
	health  http.HandlerFunc
	ws      http.Handler
	metrics http.Handler
}

func newRouter(cfg *config.Config, logger *slog.Logger, h routes) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.health)
	r.Handle("/metrics", h.metrics)

	// no compression on the upgrade path
	r.Get("/ws", h.ws.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Compress(5))
		r.Use(middleware.NoStore)
		r.Use(httprate.Limit(
			cfg.HTTP.RateLimit,
			cfg.HTTP.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				handlers.ErrorResponse(w, http.StatusTooManyRequests, "Too many requests, please try again later", nil)
			}),
		))

		r.Post("/threat-intel", h.threats.Analyze)
		r.Get("/history", h.threats.History)
		r.Get("/history/{id}", h.threats.GetLookup)
		r.Get("/stats", h.threats.Stats)
		r.Get("/providers", h.threats.Providers)
		r.Post("/generate-report", h.reports.GenerateReport)
	})

	return r
}
