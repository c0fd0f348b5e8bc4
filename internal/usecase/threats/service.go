package threats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/external/threatintel"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/entity"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100

	persistTimeout = 10 * time.Second
)

// ErrHistoryUnavailable is returned by read operations when no history store is configured
var ErrHistoryUnavailable = errors.New("database not connected")

// Evaluator runs the provider fan-out for a query
type Evaluator interface {
	Evaluate(ctx context.Context, q entity.Query) []threatintel.Outcome
	GetProviderStatus() []threatintel.ProviderStatus
}

// LookupRepository is the history store
type LookupRepository interface {
	InsertLookup(ctx context.Context, rec *entity.LookupRecord) error
	RecentLookups(ctx context.Context, limit int) ([]entity.LookupRecord, error)
	GetLookup(ctx context.Context, id uuid.UUID) (*entity.LookupRecord, error)
	GetStats(ctx context.Context) (*entity.LookupStats, error)
}

// Publisher receives every completed lookup (live feed, event stream)
type Publisher interface {
	PublishLookup(ctx context.Context, rec *entity.LookupRecord) error
}

// Recorder collects lookup metrics
type Recorder interface {
	ObserveLookup(kind, riskLevel string)
	PersistFailed()
}

// AnalysisResult is the response for one lookup
type AnalysisResult struct {
	ID         uuid.UUID                     `json:"id"`
	Query      string                        `json:"query"`
	Type       entity.QueryKind              `json:"type"`
	Timestamp  time.Time                     `json:"timestamp"`
	Sources    map[string]threatintel.Result `json:"sources"`
	Aggregated threatintel.Verdict           `json:"aggregated"`
}

// Service handles threat intelligence business logic
type Service struct {
	evaluator  Evaluator
	repo       LookupRepository
	publishers []Publisher
	recorder   Recorder
	logger     *slog.Logger
	now        func() time.Time

	pending sync.WaitGroup
}

// NewService creates a new threats service. repo may be nil when no history
// store is configured.
func NewService(evaluator Evaluator, repo LookupRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		evaluator: evaluator,
		repo:      repo,
		logger:    logger,
		now:       time.Now,
	}
}

// AddPublisher registers a sink notified after each lookup
func (s *Service) AddPublisher(p Publisher) {
	s.publishers = append(s.publishers, p)
}

// SetRecorder attaches lookup metrics
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// HistoryEnabled reports whether a history store is configured
func (s *Service) HistoryEnabled() bool {
	return s.repo != nil
}

// Analyze evaluates q against every applicable provider and folds the
// outcomes into a verdict. Persistence and publishing happen in the
// background and never affect the result.
func (s *Service) Analyze(ctx context.Context, q entity.Query) (*AnalysisResult, error) {
	if !entity.MatchesKind(q.Value, q.Kind) {
		return nil, fmt.Errorf("%w: %q is not a valid %s", entity.ErrInvalidQuery, q.Value, q.Kind)
	}

	outcomes := s.evaluator.Evaluate(ctx, q)
	verdict := threatintel.Fold(outcomes)

	result := &AnalysisResult{
		ID:         uuid.New(),
		Query:      q.Value,
		Type:       q.Kind,
		Timestamp:  s.now().UTC(),
		Sources:    make(map[string]threatintel.Result, len(outcomes)),
		Aggregated: verdict,
	}
	for _, o := range outcomes {
		result.Sources[o.Provider] = o.Result
	}

	s.logger.Info("Lookup completed",
		"query", q.Value,
		"type", q.Kind,
		"risk_level", verdict.RiskLevel,
		"risk_score", verdict.RiskScore,
		"sources", verdict.TotalSources,
	)

	if s.recorder != nil {
		s.recorder.ObserveLookup(string(q.Kind), string(verdict.RiskLevel))
	}

	rec, err := result.Record()
	if err != nil {
		s.logger.Error("Failed to encode lookup sources", "query", q.Value, "error", err)
		return result, nil
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.persist(rec)
	}()

	return result, nil
}

// Record is the persisted projection of the result
func (r *AnalysisResult) Record() (*entity.LookupRecord, error) {
	sources, err := json.Marshal(r.Sources)
	if err != nil {
		return nil, fmt.Errorf("marshal sources: %w", err)
	}
	return &entity.LookupRecord{
		ID:        r.ID,
		Query:     r.Query,
		Type:      r.Type,
		RiskLevel: string(r.Aggregated.RiskLevel),
		RiskScore: r.Aggregated.RiskScore,
		Sources:   sources,
		Timestamp: r.Timestamp,
	}, nil
}

// persist stores and publishes a lookup, errors are logged only
func (s *Service) persist(rec *entity.LookupRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if s.repo != nil {
		if err := s.repo.InsertLookup(ctx, rec); err != nil {
			s.logger.Error("Database save error", "query", rec.Query, "error", err)
			if s.recorder != nil {
				s.recorder.PersistFailed()
			}
		}
	}

	summary := rec.Summary()
	for _, p := range s.publishers {
		if err := p.PublishLookup(ctx, &summary); err != nil {
			s.logger.Warn("Failed to publish lookup", "query", rec.Query, "error", err)
		}
	}
}

// Wait blocks until background persistence of earlier lookups has finished
func (s *Service) Wait() {
	s.pending.Wait()
}

// History returns the most recent lookups without source payloads
func (s *Service) History(ctx context.Context, limit int) ([]entity.LookupRecord, error) {
	if s.repo == nil {
		return nil, ErrHistoryUnavailable
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	records, err := s.repo.RecentLookups(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	for i := range records {
		records[i] = records[i].Summary()
	}
	return records, nil
}

// GetLookup returns one stored lookup with its source payloads
func (s *Service) GetLookup(ctx context.Context, id uuid.UUID) (*entity.LookupRecord, error) {
	if s.repo == nil {
		return nil, ErrHistoryUnavailable
	}
	rec, err := s.repo.GetLookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch lookup: %w", err)
	}
	return rec, nil
}

// Stats returns the total lookup count and the risk level distribution
func (s *Service) Stats(ctx context.Context) (*entity.LookupStats, error) {
	if s.repo == nil {
		return nil, ErrHistoryUnavailable
	}
	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}
	return stats, nil
}

// Providers returns the configured state of every provider
func (s *Service) Providers() []threatintel.ProviderStatus {
	return s.evaluator.GetProviderStatus()
}
