package threatintel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/entity"
)

// VirusTotalClient handles communication with VirusTotal API v3
type VirusTotalClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// VirusTotalConfig holds VirusTotal client configuration
type VirusTotalConfig struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	RatePerMinute int
}

// NewVirusTotalClient creates a new VirusTotal client
func NewVirusTotalClient(cfg VirusTotalConfig) *VirusTotalClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.virustotal.com/api/v3"
	}

	return &VirusTotalClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: newQuotaLimiter(cfg.RatePerMinute),
	}
}

// VirusTotalResponse is the v3 object envelope shared by IP, domain and file lookups
type VirusTotalResponse struct {
	Data struct {
		Type       string               `json:"type"`
		ID         string               `json:"id"`
		Attributes VirusTotalAttributes `json:"attributes"`
	} `json:"data"`
}

// VirusTotalAttributes is the union of the attributes we read across object types
type VirusTotalAttributes struct {
	// ip_address / domain
	ASN                  int    `json:"asn"`
	ASOwner              string `json:"as_owner"`
	Country              string `json:"country"`
	Network              string `json:"network"`
	Registrar            string `json:"registrar"`
	LastUpdateDate       int64  `json:"last_update_date"`
	LastModificationDate int64  `json:"last_modification_date"`

	// file
	SHA256          string `json:"sha256"`
	SHA1            string `json:"sha1"`
	MD5             string `json:"md5"`
	Size            int64  `json:"size"`
	TypeDescription string `json:"type_description"`

	Reputation          int                               `json:"reputation"`
	LastAnalysisDate    int64                             `json:"last_analysis_date"`
	LastAnalysisStats   VirusTotalAnalysisStats           `json:"last_analysis_stats"`
	LastAnalysisResults map[string]VirusTotalEngineResult `json:"last_analysis_results"`
}

// VirusTotalAnalysisStats contains detection statistics
type VirusTotalAnalysisStats struct {
	Harmless   int `json:"harmless"`
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Timeout    int `json:"timeout"`
	Undetected int `json:"undetected"`
}

// VirusTotalEngineResult contains individual engine results
type VirusTotalEngineResult struct {
	Category   string `json:"category"`
	Result     string `json:"result"`
	Method     string `json:"method"`
	EngineName string `json:"engine_name"`
}

// EngineDetection is one engine that flagged the indicator
type EngineDetection struct {
	Engine string `json:"engine"`
	Result string `json:"result"`
	Method string `json:"method,omitempty"`
}

// VirusTotalResult is the normalized engine-scan signal
type VirusTotalResult struct {
	Found         bool              `json:"found"`
	Message       string            `json:"message,omitempty"`
	ScanDate      int64             `json:"scanDate,omitempty"`
	Malicious     int               `json:"malicious"`
	Suspicious    int               `json:"suspicious"`
	Total         int               `json:"total"`
	DetectionRate string            `json:"detectionRate,omitempty"`
	Reputation    int               `json:"reputation"`
	Detections    []EngineDetection `json:"detections,omitempty"`

	// ip and domain metadata
	ASN          int    `json:"asn,omitempty"`
	Country      string `json:"country,omitempty"`
	Network      string `json:"network,omitempty"`
	Organization string `json:"organization,omitempty"`
	Registrar    string `json:"registrar,omitempty"`
	LastUpdate   int64  `json:"lastUpdate,omitempty"`

	// file metadata
	SHA256   string `json:"sha256,omitempty"`
	SHA1     string `json:"sha1,omitempty"`
	MD5      string `json:"md5,omitempty"`
	Size     int64  `json:"size,omitempty"`
	FileType string `json:"fileType,omitempty"`
}

// GetProviderName returns the provider name
func (c *VirusTotalClient) GetProviderName() string {
	return ProviderVirusTotal
}

// IsConfigured returns true if the client has a usable API key
func (c *VirusTotalClient) IsConfigured() bool {
	return !isPlaceholderKey(c.apiKey)
}

// Supports returns true for every query kind
func (c *VirusTotalClient) Supports(kind entity.QueryKind) bool {
	switch kind {
	case entity.KindIP, entity.KindDomain, entity.KindHash:
		return true
	}
	return false
}

// Lookup implements ThreatIntelProvider
func (c *VirusTotalClient) Lookup(ctx context.Context, q entity.Query) (Signal, error) {
	result, err := c.Analyze(ctx, q)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Analyze queries VirusTotal for an IP, domain or file hash
func (c *VirusTotalClient) Analyze(ctx context.Context, q entity.Query) (*VirusTotalResult, error) {
	if !c.IsConfigured() {
		return nil, notConfigured(ProviderVirusTotal, "VirusTotal", "VIRUSTOTAL_API_KEY")
	}

	endpoint, err := c.endpointFor(q)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil && !c.limiter.Allow() {
		return nil, localRateLimited(ProviderVirusTotal)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, requestError(ProviderVirusTotal, err)
	}

	req.Header.Set("x-apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, requestError(ProviderVirusTotal, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Unknown to VT: a successful lookup with nothing to score
		return &VirusTotalResult{
			Found:   false,
			Message: "No results found in VirusTotal database",
		}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(ProviderVirusTotal, resp)
	}

	var apiResp VirusTotalResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, decodeError(ProviderVirusTotal, err)
	}

	return normalizeVirusTotal(q.Kind, apiResp.Data.Attributes), nil
}

func (c *VirusTotalClient) endpointFor(q entity.Query) (string, error) {
	escaped := url.PathEscape(q.Value)
	switch q.Kind {
	case entity.KindIP:
		return "/ip_addresses/" + escaped, nil
	case entity.KindDomain:
		return "/domains/" + escaped, nil
	case entity.KindHash:
		return "/files/" + escaped, nil
	default:
		return "", &ProviderError{
			Provider: ProviderVirusTotal,
			Reason:   ReasonTransient,
			Message:  fmt.Sprintf("unsupported type: %s", q.Kind),
		}
	}
}

func normalizeVirusTotal(kind entity.QueryKind, attrs VirusTotalAttributes) *VirusTotalResult {
	stats := attrs.LastAnalysisStats
	total := stats.Harmless + stats.Malicious + stats.Suspicious + stats.Undetected

	detectionRate := "0.00"
	if total > 0 {
		detectionRate = fmt.Sprintf("%.2f", float64(stats.Malicious+stats.Suspicious)/float64(total)*100)
	}

	result := &VirusTotalResult{
		Found:         true,
		ScanDate:      attrs.LastAnalysisDate,
		Malicious:     stats.Malicious,
		Suspicious:    stats.Suspicious,
		Total:         total,
		DetectionRate: detectionRate,
		Reputation:    attrs.Reputation,
		Detections:    []EngineDetection{},
	}

	for engine, scan := range attrs.LastAnalysisResults {
		if scan.Category != "malicious" && scan.Category != "suspicious" {
			continue
		}
		verdict := scan.Result
		if verdict == "" {
			verdict = scan.Category
		}
		result.Detections = append(result.Detections, EngineDetection{
			Engine: engine,
			Result: verdict,
			Method: scan.Method,
		})
	}
	// map iteration order is random
	sort.Slice(result.Detections, func(i, j int) bool {
		return result.Detections[i].Engine < result.Detections[j].Engine
	})

	switch kind {
	case entity.KindIP, entity.KindDomain:
		result.ASN = attrs.ASN
		result.Country = attrs.Country
		result.Network = attrs.Network
		if result.Network == "" {
			result.Network = attrs.ASOwner
		}
		result.Organization = attrs.ASOwner
		if result.Organization == "" {
			result.Organization = attrs.Network
		}
		if kind == entity.KindDomain {
			result.Registrar = attrs.Registrar
			result.LastUpdate = attrs.LastUpdateDate
		} else {
			result.LastUpdate = attrs.LastModificationDate
		}
	case entity.KindHash:
		result.SHA256 = attrs.SHA256
		result.SHA1 = attrs.SHA1
		result.MD5 = attrs.MD5
		result.Size = attrs.Size
		result.FileType = attrs.TypeDescription
	}

	return result
}

// newQuotaLimiter spreads perMinute requests evenly with a small burst; zero disables it
func newQuotaLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	burst := perMinute
	if burst > 5 {
		burst = 5
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
}
