package apiusage

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/external/threatintel"
)

// ProviderUsage summarizes calls made to one provider since startup
type ProviderUsage struct {
	Provider        string     `json:"provider"`
	TotalCalls      uint64     `json:"totalCalls"`
	TodaySuccess    uint64     `json:"todaySuccess"`
	TodayErrors     uint64     `json:"todayErrors"`
	AvgLatencyMs    int64      `json:"avgLatencyMs"`
	LastSuccess     *time.Time `json:"lastSuccess,omitempty"`
	LastError       *time.Time `json:"lastError,omitempty"`
	LastErrorReason string     `json:"lastErrorReason,omitempty"`
	HasError        bool       `json:"hasError"`
}

type counters struct {
	day          string
	total        uint64
	todaySuccess uint64
	todayErrors  uint64
	latency      time.Duration
	lastSuccess  time.Time
	lastError    time.Time
	lastReason   string
}

// Service tracks provider usage in memory. It is fed by the coordinator as
// a threatintel.Observer.
type Service struct {
	mu     sync.RWMutex
	usage  map[string]*counters
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a new API usage service
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		usage:  make(map[string]*counters),
		now:    time.Now,
		logger: logger,
	}
}

// ObserveProvider records one provider invocation. Providers skipped for
// missing credentials are not counted.
func (s *Service) ObserveProvider(provider, status string, elapsed time.Duration) {
	if status == string(threatintel.ReasonNotConfigured) {
		return
	}

	now := s.now().UTC()
	day := now.Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.usage[provider]
	if !ok {
		c = &counters{day: day}
		s.usage[provider] = c
	}
	if c.day != day {
		c.day = day
		c.todaySuccess = 0
		c.todayErrors = 0
	}

	c.total++
	c.latency += elapsed

	if status == threatintel.OutcomeStatusOK {
		c.todaySuccess++
		c.lastSuccess = now
		return
	}

	c.todayErrors++
	c.lastError = now
	c.lastReason = status
	if status == string(threatintel.ReasonRateLimited) {
		s.logger.Warn("[API_USAGE] Provider rate limited", "provider", provider, "today_errors", c.todayErrors)
	}
}

// Snapshot returns usage for every provider seen so far, keyed by provider
func (s *Service) Snapshot() map[string]ProviderUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := s.now().UTC().Format("2006-01-02")

	out := make(map[string]ProviderUsage, len(s.usage))
	for name, c := range s.usage {
		u := ProviderUsage{
			Provider:        name,
			TotalCalls:      c.total,
			LastErrorReason: c.lastReason,
			HasError:        !c.lastError.IsZero() && c.lastError.After(c.lastSuccess),
		}
		if c.day == today {
			u.TodaySuccess = c.todaySuccess
			u.TodayErrors = c.todayErrors
		}
		if c.total > 0 {
			u.AvgLatencyMs = (c.latency / time.Duration(c.total)).Milliseconds()
		}
		if !c.lastSuccess.IsZero() {
			t := c.lastSuccess
			u.LastSuccess = &t
		}
		if !c.lastError.IsZero() {
			t := c.lastError
			u.LastError = &t
		}
		out[name] = u
	}
	return out
}
