package threatintel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/entity"
)

// AbuseIPDBClient handles communication with AbuseIPDB API
type AbuseIPDBClient struct {
	apiKey     string
	baseURL    string
	maxAgeDays int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// AbuseIPDBConfig holds AbuseIPDB client configuration
type AbuseIPDBConfig struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	MaxAgeDays    int
	RatePerMinute int
}

// NewAbuseIPDBClient creates a new AbuseIPDB client
func NewAbuseIPDBClient(cfg AbuseIPDBConfig) *AbuseIPDBClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.abuseipdb.com/api/v2"
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 90
	}

	return &AbuseIPDBClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		maxAgeDays: cfg.MaxAgeDays,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: newQuotaLimiter(cfg.RatePerMinute),
	}
}

// AbuseIPDBResponse represents the API response for IP check
type AbuseIPDBResponse struct {
	Data AbuseIPDBData `json:"data"`
}

// AbuseIPDBData contains the IP information
type AbuseIPDBData struct {
	IPAddress            string            `json:"ipAddress"`
	IsPublic             bool              `json:"isPublic"`
	IsWhitelisted        bool              `json:"isWhitelisted"`
	AbuseConfidenceScore int               `json:"abuseConfidenceScore"`
	CountryCode          string            `json:"countryCode"`
	CountryName          string            `json:"countryName"`
	UsageType            string            `json:"usageType"`
	ISP                  string            `json:"isp"`
	Domain               string            `json:"domain"`
	TotalReports         int               `json:"totalReports"`
	NumDistinctUsers     int               `json:"numDistinctUsers"`
	LastReportedAt       string            `json:"lastReportedAt"`
	IsTor                bool              `json:"isTor"`
	Reports              []AbuseIPDBReport `json:"reports"`
}

// AbuseIPDBReport is one community report, only present with verbose=true
type AbuseIPDBReport struct {
	ReportedAt string `json:"reportedAt"`
	Categories []int  `json:"categories"`
}

// AbuseIPDBResult is the normalized abuse-report signal
type AbuseIPDBResult struct {
	IP                   string `json:"ip,omitempty"`
	AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
	IsTor                bool   `json:"isTor"`
	Categories           []int  `json:"categories"`
	TotalReports         int    `json:"totalReports"`
	NumDistinctUsers     int    `json:"numDistinctUsers"`
	CountryCode          string `json:"countryCode,omitempty"`
	CountryName          string `json:"countryName,omitempty"`
	ISP                  string `json:"isp,omitempty"`
	Domain               string `json:"domain,omitempty"`
	UsageType            string `json:"usageType,omitempty"`
	IsPublic             bool   `json:"isPublic"`
	IsWhitelisted        bool   `json:"isWhitelisted"`
	LastReportedAt       string `json:"lastReportedAt,omitempty"`
}

// GetProviderName returns the provider name
func (c *AbuseIPDBClient) GetProviderName() string {
	return ProviderAbuseIPDB
}

// IsConfigured returns true if the client has a usable API key
func (c *AbuseIPDBClient) IsConfigured() bool {
	return !isPlaceholderKey(c.apiKey)
}

// Supports returns true only for IP lookups
func (c *AbuseIPDBClient) Supports(kind entity.QueryKind) bool {
	return kind == entity.KindIP
}

// Lookup implements ThreatIntelProvider
func (c *AbuseIPDBClient) Lookup(ctx context.Context, q entity.Query) (Signal, error) {
	result, err := c.CheckIP(ctx, q.Value)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CheckIP queries AbuseIPDB for IP reputation
func (c *AbuseIPDBClient) CheckIP(ctx context.Context, ip string) (*AbuseIPDBResult, error) {
	if !c.IsConfigured() {
		return nil, notConfigured(ProviderAbuseIPDB, "AbuseIPDB", "ABUSEIPDB_API_KEY")
	}

	if c.limiter != nil && !c.limiter.Allow() {
		return nil, localRateLimited(ProviderAbuseIPDB)
	}

	reqURL := fmt.Sprintf("%s/check?ipAddress=%s&maxAgeInDays=%d&verbose=true",
		c.baseURL, url.QueryEscape(ip), c.maxAgeDays)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, requestError(ProviderAbuseIPDB, err)
	}

	req.Header.Set("Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, requestError(ProviderAbuseIPDB, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(ProviderAbuseIPDB, resp)
	}

	var apiResp AbuseIPDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, decodeError(ProviderAbuseIPDB, err)
	}

	data := apiResp.Data
	return &AbuseIPDBResult{
		IP:                   data.IPAddress,
		AbuseConfidenceScore: data.AbuseConfidenceScore,
		IsTor:                data.IsTor,
		Categories:           collectCategories(data.Reports),
		TotalReports:         data.TotalReports,
		NumDistinctUsers:     data.NumDistinctUsers,
		CountryCode:          data.CountryCode,
		CountryName:          data.CountryName,
		ISP:                  data.ISP,
		Domain:               data.Domain,
		UsageType:            data.UsageType,
		IsPublic:             data.IsPublic,
		IsWhitelisted:        data.IsWhitelisted,
		LastReportedAt:       data.LastReportedAt,
	}, nil
}

// collectCategories returns the distinct category ids across all reports, in first-seen order
func collectCategories(reports []AbuseIPDBReport) []int {
	categories := []int{}
	seen := make(map[int]struct{})
	for _, r := range reports {
		for _, id := range r.Categories {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			categories = append(categories, id)
		}
	}
	return categories
}
