package threatintel

import (
	"context"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/entity"
)

// Provider keys, also used as the keys of the "sources" object in responses
const (
	ProviderVirusTotal = "virustotal"
	ProviderShodan     = "shodan"
	ProviderAbuseIPDB  = "abuseipdb"
)

// ThreatIntelProvider is implemented by every external source adapter
type ThreatIntelProvider interface {
	GetProviderName() string
	IsConfigured() bool
	Supports(kind entity.QueryKind) bool
	Lookup(ctx context.Context, q entity.Query) (Signal, error)
}

// Result is the closed set of things a provider invocation can produce:
// one of the Signal types below, or Unavailable.
type Result interface {
	isResult()
}

// Signal is a normalized, successfully retrieved provider response. A signal
// may still report that the provider holds no record for the entity.
type Signal interface {
	Result
	isSignal()
}

// Unavailable is a classified failure to obtain a signal
type Unavailable struct {
	Reason Reason `json:"reason"`
	Error  string `json:"error"`
}

func (*Unavailable) isResult() {}

// Outcome pairs a provider with what it produced for one query
type Outcome struct {
	Provider string
	Result   Result
}

// Available reports whether the outcome carries a signal
func (o Outcome) Available() bool {
	_, ok := o.Result.(Signal)
	return ok
}

func (*VirusTotalResult) isResult() {}
func (*VirusTotalResult) isSignal() {}
func (*ShodanResult) isResult()     {}
func (*ShodanResult) isSignal()     {}
func (*AbuseIPDBResult) isResult()  {}
func (*AbuseIPDBResult) isSignal()  {}
