package clickhouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/entity"
)

const createLookupHistory = `
	CREATE TABLE IF NOT EXISTS lookup_history (
		id UUID,
		query String,
		type LowCardinality(String),
		risk_level LowCardinality(String),
		risk_score UInt8,
		sources String CODEC(ZSTD(3)),
		timestamp DateTime64(3, 'UTC')
	)
	ENGINE = MergeTree
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, id)
`

// LookupsRepository handles lookup history persistence in ClickHouse
type LookupsRepository struct {
	conn *Connection
}

// NewLookupsRepository creates a new lookups repository
func NewLookupsRepository(conn *Connection) *LookupsRepository {
	return &LookupsRepository{conn: conn}
}

// EnsureSchema creates the lookup_history table if it does not exist
func (r *LookupsRepository) EnsureSchema(ctx context.Context) error {
	if err := r.conn.Exec(ctx, createLookupHistory); err != nil {
		return fmt.Errorf("create lookup_history: %w", err)
	}
	return nil
}

// InsertLookup stores one completed lookup
func (r *LookupsRepository) InsertLookup(ctx context.Context, rec *entity.LookupRecord) error {
	query := `
		INSERT INTO lookup_history (id, query, type, risk_level, risk_score, sources, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	sources := string(rec.Sources)
	if sources == "" {
		sources = "{}"
	}

	if err := r.conn.Exec(ctx, query,
		rec.ID,
		rec.Query,
		string(rec.Type),
		rec.RiskLevel,
		clampScore(rec.RiskScore),
		sources,
		rec.Timestamp.UTC(),
	); err != nil {
		return fmt.Errorf("insert lookup: %w", err)
	}

	return nil
}

// RecentLookups returns the most recent lookups, newest first, without source payloads
func (r *LookupsRepository) RecentLookups(ctx context.Context, limit int) ([]entity.LookupRecord, error) {
	query := `
		SELECT id, query, type, risk_level, risk_score, timestamp
		FROM lookup_history
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query lookups: %w", err)
	}
	defer rows.Close()

	records := []entity.LookupRecord{}
	for rows.Next() {
		var (
			id        uuid.UUID
			value     string
			kind      string
			level     string
			score     uint8
			timestamp time.Time
		)
		if err := rows.Scan(&id, &value, &kind, &level, &score, &timestamp); err != nil {
			return nil, fmt.Errorf("scan lookup: %w", err)
		}
		records = append(records, entity.LookupRecord{
			ID:        id,
			Query:     value,
			Type:      entity.QueryKind(kind),
			RiskLevel: level,
			RiskScore: int(score),
			Timestamp: timestamp,
		})
	}

	return records, rows.Err()
}

// GetLookup returns one lookup including its source payloads
func (r *LookupsRepository) GetLookup(ctx context.Context, id uuid.UUID) (*entity.LookupRecord, error) {
	query := `
		SELECT id, query, type, risk_level, risk_score, sources, timestamp
		FROM lookup_history
		WHERE id = ?
		LIMIT 1
	`

	var (
		rec     entity.LookupRecord
		kind    string
		score   uint8
		sources string
	)
	row := r.conn.QueryRow(ctx, query, id)
	if err := row.Scan(&rec.ID, &rec.Query, &kind, &rec.RiskLevel, &score, &sources, &rec.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrLookupNotFound
		}
		return nil, fmt.Errorf("scan lookup %s: %w", id, err)
	}
	rec.Type = entity.QueryKind(kind)
	rec.RiskScore = int(score)
	rec.Sources = json.RawMessage(sources)

	return &rec, nil
}

// GetStats returns the total lookup count and the count per risk level
func (r *LookupsRepository) GetStats(ctx context.Context) (*entity.LookupStats, error) {
	query := `
		SELECT risk_level, count() AS total
		FROM lookup_history
		GROUP BY risk_level
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query lookup stats: %w", err)
	}
	defer rows.Close()

	stats := &entity.LookupStats{RiskDistribution: map[string]uint64{}}
	for rows.Next() {
		var (
			level string
			total uint64
		)
		if err := rows.Scan(&level, &total); err != nil {
			return nil, fmt.Errorf("scan lookup stats: %w", err)
		}
		stats.RiskDistribution[level] = total
		stats.TotalLookups += total
	}

	return stats, rows.Err()
}

func clampScore(score int) uint8 {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return uint8(score)
	}
}
