package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "threatintel"

// Metrics holds the Prometheus collectors exported on /metrics
type Metrics struct {
	registry *prometheus.Registry

	lookups          *prometheus.CounterVec
	providerOutcomes *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	persistFailures  prometheus.Counter
	wsClients        prometheus.Gauge
}

// New creates a registry with the process and Go collectors plus our own
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Completed lookups by query type and risk level.",
		}, []string{"type", "risk_level"}),
		providerOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_outcomes_total",
			Help:      "Provider invocations by outcome status (ok or unavailable reason).",
		}, []string{"provider", "status"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Latency of provider lookups.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		}, []string{"provider"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_persist_failures_total",
			Help:      "Lookups that could not be written to the history store.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected live feed clients.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.lookups,
		m.providerOutcomes,
		m.providerLatency,
		m.persistFailures,
		m.wsClients,
	)

	return m
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveProvider records one provider invocation
func (m *Metrics) ObserveProvider(provider, status string, elapsed time.Duration) {
	m.providerOutcomes.WithLabelValues(provider, status).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveLookup records a completed lookup
func (m *Metrics) ObserveLookup(kind, riskLevel string) {
	m.lookups.WithLabelValues(kind, riskLevel).Inc()
}

// PersistFailed counts a history write failure
func (m *Metrics) PersistFailed() {
	m.persistFailures.Inc()
}

// SetClients sets the number of connected live feed clients
func (m *Metrics) SetClients(n int) {
	m.wsClients.Set(float64(n))
}
