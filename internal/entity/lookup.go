package entity

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLookupNotFound is returned when a stored lookup does not exist
var ErrLookupNotFound = errors.New("lookup not found")

// LookupRecord is the persisted projection of one completed lookup
type LookupRecord struct {
	ID        uuid.UUID       `json:"id" ch:"id"`
	Query     string          `json:"query" ch:"query"`
	Type      QueryKind       `json:"type" ch:"type"`
	RiskLevel string          `json:"riskLevel" ch:"risk_level"`
	RiskScore int             `json:"riskScore" ch:"risk_score"`
	Sources   json.RawMessage `json:"sources,omitempty" ch:"sources"`
	Timestamp time.Time       `json:"timestamp" ch:"timestamp"`
}

// Summary drops the raw source payloads, as returned by the history endpoint
func (r LookupRecord) Summary() LookupRecord {
	r.Sources = nil
	return r
}

// LookupStats aggregates the lookup history
type LookupStats struct {
	TotalLookups     uint64            `json:"totalLookups"`
	RiskDistribution map[string]uint64 `json:"riskDistribution"`
}
