package threatintel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/entity"
)

// OutcomeStatusOK is reported to observers for outcomes that carry a signal
const OutcomeStatusOK = "ok"

// Observer receives one call per provider invocation. status is
// OutcomeStatusOK or the Unavailable reason.
type Observer interface {
	ObserveProvider(provider, status string, elapsed time.Duration)
}

// Coordinator fans a query out to every applicable provider and collects one
// outcome per provider
type Coordinator struct {
	providers []ThreatIntelProvider
	observers []Observer
	logger    *slog.Logger
}

// NewCoordinator creates a coordinator. Provider order is normalized to
// VirusTotal, Shodan, AbuseIPDB.
func NewCoordinator(logger *slog.Logger, providers ...ThreatIntelProvider) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	ordered := make([]ThreatIntelProvider, 0, len(providers))
	used := make([]bool, len(providers))
	for _, name := range providerOrder {
		for i, p := range providers {
			if !used[i] && p.GetProviderName() == name {
				ordered = append(ordered, p)
				used[i] = true
			}
		}
	}
	for i, p := range providers {
		if !used[i] {
			ordered = append(ordered, p)
		}
	}

	return &Coordinator{
		providers: ordered,
		logger:    logger,
	}
}

// WithObserver attaches an observer for per-provider metrics. Call it
// before the first Evaluate.
func (c *Coordinator) WithObserver(o Observer) *Coordinator {
	c.observers = append(c.observers, o)
	return c
}

// Applicable returns the providers that will run for kind
func (c *Coordinator) Applicable(kind entity.QueryKind) []ThreatIntelProvider {
	var out []ThreatIntelProvider
	for _, p := range c.providers {
		if p.Supports(kind) {
			out = append(out, p)
		}
	}
	return out
}

// Evaluate invokes all applicable providers concurrently and waits for every
// one of them. The returned slice is in provider order regardless of
// completion order. Evaluate never fails: each provider error or panic
// becomes an Unavailable outcome.
func (c *Coordinator) Evaluate(ctx context.Context, q entity.Query) []Outcome {
	applicable := c.Applicable(q.Kind)
	outcomes := make([]Outcome, len(applicable))

	var wg sync.WaitGroup
	for i, p := range applicable {
		wg.Add(1)
		go func(i int, p ThreatIntelProvider) {
			defer wg.Done()
			outcomes[i] = c.invoke(ctx, p, q)
		}(i, p)
	}
	wg.Wait()

	return outcomes
}

// invoke runs a single provider and converts its result into an outcome
func (c *Coordinator) invoke(ctx context.Context, p ThreatIntelProvider, q entity.Query) (out Outcome) {
	name := p.GetProviderName()
	start := time.Now()
	out.Provider = name

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Provider panicked", "provider", name, "query", q.Value, "panic", r)
			out.Result = &Unavailable{
				Reason: ReasonTransient,
				Error:  fmt.Sprintf("%s: internal provider error", name),
			}
		}
		c.observe(name, out.Result, time.Since(start))
	}()

	signal, err := p.Lookup(ctx, q)
	switch {
	case err != nil:
		reason := ReasonOf(err)
		if reason == ReasonNotConfigured {
			c.logger.Debug("Provider not configured", "provider", name)
		} else {
			c.logger.Warn("Provider lookup failed", "provider", name, "query", q.Value, "reason", reason, "error", err)
		}
		out.Result = &Unavailable{Reason: reason, Error: errorMessage(err)}
	case signal == nil:
		out.Result = &Unavailable{Reason: ReasonTransient, Error: "empty provider response"}
	default:
		out.Result = signal
	}

	return out
}

func (c *Coordinator) observe(provider string, result Result, elapsed time.Duration) {
	if len(c.observers) == 0 {
		return
	}
	status := OutcomeStatusOK
	if u, ok := result.(*Unavailable); ok {
		status = string(u.Reason)
	}
	for _, o := range c.observers {
		o.ObserveProvider(provider, status, elapsed)
	}
}

// errorMessage is the user facing text for an Unavailable outcome
func errorMessage(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Message
	}
	return err.Error()
}

// ProviderStatus represents the status of a provider
type ProviderStatus struct {
	Name        string   `json:"name"`
	Configured  bool     `json:"configured"`
	Description string   `json:"description"`
	Supports    []string `json:"supports"`
}

var providerDescriptions = map[string]string{
	ProviderVirusTotal: "Multi-AV consensus & reputation",
	ProviderShodan:     "Open ports, services & known vulnerabilities",
	ProviderAbuseIPDB:  "IP abuse reports & confidence scoring",
}

// GetProviderStatus returns detailed status of all providers
func (c *Coordinator) GetProviderStatus() []ProviderStatus {
	kinds := []entity.QueryKind{entity.KindIP, entity.KindDomain, entity.KindHash}

	statuses := make([]ProviderStatus, 0, len(c.providers))
	for _, p := range c.providers {
		supports := []string{}
		for _, k := range kinds {
			if p.Supports(k) {
				supports = append(supports, string(k))
			}
		}
		statuses = append(statuses, ProviderStatus{
			Name:        p.GetProviderName(),
			Configured:  p.IsConfigured(),
			Description: providerDescriptions[p.GetProviderName()],
			Supports:    supports,
		})
	}
	return statuses
}
