package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/controller/http/handlers"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/controller/ws"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/external/events"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/external/threatintel"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/metrics"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/repository/clickhouse"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/config"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/usecase/apiusage"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/usecase/reports"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/usecase/threats"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := config.SetupLogger(cfg)
	logger.Info("Starting Threat Intelligence API",
		"env", cfg.App.Env,
		"port", cfg.App.Port,
		"version", cfg.App.Version,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	m := metrics.New()
	usage := apiusage.NewService(logger)

	// Threat intel providers
	ti := cfg.ThreatIntel
	coordinator := threatintel.NewCoordinator(logger,
		threatintel.NewVirusTotalClient(threatintel.VirusTotalConfig{
			APIKey:        ti.VirusTotal.APIKey,
			Timeout:       ti.VirusTotal.Timeout,
			RatePerMinute: ti.VirusTotal.RatePerMinute,
		}),
		threatintel.NewShodanClient(threatintel.ShodanConfig{
			APIKey:        ti.Shodan.APIKey,
			Timeout:       ti.Shodan.Timeout,
			RatePerMinute: ti.Shodan.RatePerMinute,
		}),
		threatintel.NewAbuseIPDBClient(threatintel.AbuseIPDBConfig{
			APIKey:        ti.AbuseIPDB.APIKey,
			Timeout:       ti.AbuseIPDB.Timeout,
			MaxAgeDays:    ti.AbuseIPDBMaxAgeDays,
			RatePerMinute: ti.AbuseIPDB.RatePerMinute,
		}),
	).WithObserver(m).WithObserver(usage)

	for _, p := range coordinator.GetProviderStatus() {
		logger.Info("Threat intel provider", "provider", p.Name, "configured", p.Configured)
	}

	// History store (optional)
	var (
		repo    threats.LookupRepository
		history handlers.Pinger
	)
	if cfg.ClickHouse.Enabled {
		conn, err := clickhouse.NewConnection(&cfg.ClickHouse, cfg.App.Version, logger)
		if err != nil {
			logger.Warn("ClickHouse unavailable, lookup history disabled", "error", err)
		} else {
			defer conn.Close()
			lookups := clickhouse.NewLookupsRepository(conn)
			schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := lookups.EnsureSchema(schemaCtx)
			cancel()
			if err != nil {
				logger.Warn("Failed to prepare lookup history table, history disabled", "error", err)
			} else {
				repo = lookups
				history = conn
			}
		}
	}

	svc := threats.NewService(coordinator, repo, logger)
	svc.SetRecorder(m)

	// Live feed
	hub := ws.NewHub(cfg.AllowedOrigins(), logger)
	hub.OnClientCount(m.SetClients)
	go hub.Run(ctx)
	svc.AddPublisher(hub)

	// Event stream (optional)
	var kafka *events.KafkaPublisher
	if cfg.KafkaEnabled() {
		kafka = events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, logger)
		svc.AddPublisher(kafka)
		logger.Info("Publishing lookups to Kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	threatsHandler := handlers.NewThreatsHandler(svc)
	threatsHandler.SetUsageReporter(usage)

	r := newRouter(cfg, logger, routes{
		threats: threatsHandler,
		reports: handlers.NewReportsHandler(reports.NewService(logger)),
		health:  handlers.HealthCheck(cfg, history),
		ws:      http.HandlerFunc(hub.ServeWS),
		metrics: m.Handler(),
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// let in-flight history writes finish before closing their sinks
	svc.Wait()
	stop()

	if kafka != nil {
		if err := kafka.Close(); err != nil {
			logger.Warn("Failed to close Kafka writer", "error", err)
		}
	}

	logger.Info("Server stopped")
}
