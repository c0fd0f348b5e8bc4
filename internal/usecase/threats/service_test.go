package threats

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/adapter/external/threatintel"
	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/entity"
)

// =============================================================================
// Mocks
// =============================================================================

type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) Evaluate(ctx context.Context, q entity.Query) []threatintel.Outcome {
	args := m.Called(ctx, q)
	return args.Get(0).([]threatintel.Outcome)
}

func (m *MockEvaluator) GetProviderStatus() []threatintel.ProviderStatus {
	args := m.Called()
	return args.Get(0).([]threatintel.ProviderStatus)
}

type MockLookupRepository struct {
	mock.Mock
}

func (m *MockLookupRepository) InsertLookup(ctx context.Context, rec *entity.LookupRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockLookupRepository) RecentLookups(ctx context.Context, limit int) ([]entity.LookupRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.LookupRecord), args.Error(1)
}

func (m *MockLookupRepository) GetLookup(ctx context.Context, id uuid.UUID) (*entity.LookupRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LookupRecord), args.Error(1)
}

func (m *MockLookupRepository) GetStats(ctx context.Context) (*entity.LookupStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LookupStats), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishLookup(ctx context.Context, rec *entity.LookupRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) ObserveLookup(kind, riskLevel string) {
	m.Called(kind, riskLevel)
}

func (m *MockRecorder) PersistFailed() {
	m.Called()
}

// =============================================================================
// Helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(eval Evaluator, repo LookupRepository) *Service {
	svc := NewService(eval, repo, testLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func maliciousOutcomes() []threatintel.Outcome {
	return []threatintel.Outcome{
		{Provider: threatintel.ProviderVirusTotal, Result: &threatintel.VirusTotalResult{Found: true, Malicious: 5}},
		{Provider: threatintel.ProviderShodan, Result: &threatintel.Unavailable{Reason: threatintel.ReasonNotConfigured, Error: "Shodan API key not configured"}},
		{Provider: threatintel.ProviderAbuseIPDB, Result: &threatintel.Unavailable{Reason: threatintel.ReasonNotConfigured, Error: "AbuseIPDB API key not configured"}},
	}
}

// =============================================================================
// Analyze
// =============================================================================

func TestAnalyze(t *testing.T) {
	q := entity.Query{Value: "185.220.101.1", Kind: entity.KindIP}

	eval := new(MockEvaluator)
	eval.On("Evaluate", mock.Anything, q).Return(maliciousOutcomes())

	repo := new(MockLookupRepository)
	repo.On("InsertLookup", mock.Anything, mock.MatchedBy(func(rec *entity.LookupRecord) bool {
		return rec.Query == q.Value &&
			rec.Type == entity.KindIP &&
			rec.RiskLevel == "Medium" &&
			rec.RiskScore == 40 &&
			len(rec.Sources) > 0
	})).Return(nil)

	pub := new(MockPublisher)
	pub.On("PublishLookup", mock.Anything, mock.MatchedBy(func(rec *entity.LookupRecord) bool {
		return rec.Query == q.Value && rec.Sources == nil
	})).Return(nil)

	rec := new(MockRecorder)
	rec.On("ObserveLookup", "ip", "Medium").Return()

	svc := newTestService(eval, repo)
	svc.AddPublisher(pub)
	svc.SetRecorder(rec)

	result, err := svc.Analyze(context.Background(), q)
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, q.Value, result.Query)
	assert.Equal(t, entity.KindIP, result.Type)
	assert.Equal(t, fixedNow, result.Timestamp)
	assert.NotEqual(t, uuid.Nil, result.ID)
	assert.Equal(t, 40, result.Aggregated.RiskScore)
	assert.Equal(t, threatintel.RiskMedium, result.Aggregated.RiskLevel)
	assert.Equal(t, 1, result.Aggregated.TotalSources)
	assert.Len(t, result.Sources, 3)

	eval.AssertExpectations(t)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
	rec.AssertExpectations(t)
}

func TestAnalyze_ResponseShape(t *testing.T) {
	q := entity.Query{Value: "example.com", Kind: entity.KindDomain}

	eval := new(MockEvaluator)
	eval.On("Evaluate", mock.Anything, q).Return([]threatintel.Outcome{
		{Provider: threatintel.ProviderVirusTotal, Result: &threatintel.Unavailable{Reason: threatintel.ReasonRateLimited, Error: "API rate limit exceeded"}},
	})

	svc := newTestService(eval, nil)
	result, err := svc.Analyze(context.Background(), q)
	require.NoError(t, err)
	svc.Wait()

	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "example.com", decoded["query"])
	assert.Equal(t, "domain", decoded["type"])

	sources := decoded["sources"].(map[string]any)
	vt := sources["virustotal"].(map[string]any)
	assert.Equal(t, "rate_limited", vt["reason"])
	assert.Equal(t, "API rate limit exceeded", vt["error"])

	aggregated := decoded["aggregated"].(map[string]any)
	assert.Equal(t, "Clean", aggregated["riskLevel"])
	assert.Equal(t, float64(0), aggregated["riskScore"])
	assert.Equal(t, float64(0), aggregated["totalSources"])
	assert.Equal(t, []any{}, aggregated["threats"])
}

func TestAnalyze_PersistenceFailureIsNotSurfaced(t *testing.T) {
	q := entity.Query{Value: "1.2.3.4", Kind: entity.KindIP}

	eval := new(MockEvaluator)
	eval.On("Evaluate", mock.Anything, q).Return(maliciousOutcomes())

	repo := new(MockLookupRepository)
	repo.On("InsertLookup", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	rec := new(MockRecorder)
	rec.On("ObserveLookup", "ip", "Medium").Return()
	rec.On("PersistFailed").Return()

	pub := new(MockPublisher)
	pub.On("PublishLookup", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	svc := newTestService(eval, repo)
	svc.SetRecorder(rec)
	svc.AddPublisher(pub)

	result, err := svc.Analyze(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, result)
	svc.Wait()

	repo.AssertExpectations(t)
	rec.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestAnalyze_RejectsMalformedQuery(t *testing.T) {
	eval := new(MockEvaluator)
	svc := newTestService(eval, nil)

	_, err := svc.Analyze(context.Background(), entity.Query{Value: "not-an-ip", Kind: entity.KindIP})

	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrInvalidQuery)
	eval.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
}

// =============================================================================
// History and stats
// =============================================================================

func TestHistory(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		expected  int
	}{
		{"default when zero", 0, DefaultHistoryLimit},
		{"default when negative", -3, DefaultHistoryLimit},
		{"passes through", 5, 5},
		{"capped", 1000, MaxHistoryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockLookupRepository)
			repo.On("RecentLookups", mock.Anything, tt.expected).Return([]entity.LookupRecord{
				{Query: "8.8.8.8", Type: entity.KindIP, RiskLevel: "Clean", Sources: json.RawMessage(`{"x":1}`)},
			}, nil)

			svc := newTestService(new(MockEvaluator), repo)
			records, err := svc.History(context.Background(), tt.requested)

			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Nil(t, records[0].Sources)
			repo.AssertExpectations(t)
		})
	}
}

func TestHistory_NoStore(t *testing.T) {
	svc := newTestService(new(MockEvaluator), nil)

	assert.False(t, svc.HistoryEnabled())

	_, err := svc.History(context.Background(), 10)
	assert.ErrorIs(t, err, ErrHistoryUnavailable)

	_, err = svc.Stats(context.Background())
	assert.ErrorIs(t, err, ErrHistoryUnavailable)

	_, err = svc.GetLookup(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
}

func TestStats(t *testing.T) {
	repo := new(MockLookupRepository)
	repo.On("GetStats", mock.Anything).Return(&entity.LookupStats{
		TotalLookups:     7,
		RiskDistribution: map[string]uint64{"High": 2, "Clean": 5},
	}, nil)

	svc := newTestService(new(MockEvaluator), repo)
	stats, err := svc.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, uint64(7), stats.TotalLookups)
	assert.Equal(t, uint64(2), stats.RiskDistribution["High"])
}

func TestStats_RepositoryError(t *testing.T) {
	repo := new(MockLookupRepository)
	repo.On("GetStats", mock.Anything).Return(nil, errors.New("timeout"))

	svc := newTestService(new(MockEvaluator), repo)
	_, err := svc.Stats(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch stats")
}

func TestProviders(t *testing.T) {
	eval := new(MockEvaluator)
	eval.On("GetProviderStatus").Return([]threatintel.ProviderStatus{
		{Name: threatintel.ProviderVirusTotal, Configured: true},
	})

	svc := newTestService(eval, nil)
	statuses := svc.Providers()

	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Configured)
}
