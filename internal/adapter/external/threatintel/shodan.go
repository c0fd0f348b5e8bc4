package threatintel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/MiteshChaudhari18/Real-Time-Threat/internal/entity"
)

const maxBannerLength = 200

// ShodanClient queries the Shodan host API
// Provides: open ports, service banners, known vulnerabilities, geo and org data
type ShodanClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ShodanConfig holds Shodan client configuration
type ShodanConfig struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	RatePerMinute int
}

// NewShodanClient creates a new Shodan client
func NewShodanClient(cfg ShodanConfig) *ShodanClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.shodan.io"
	}

	return &ShodanClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: newQuotaLimiter(cfg.RatePerMinute),
	}
}

// ShodanHostResponse represents the /shodan/host/{ip} response
type ShodanHostResponse struct {
	IPStr      string              `json:"ip_str"`
	Country    string              `json:"country_name"`
	City       string              `json:"city"`
	Latitude   float64             `json:"latitude"`
	Longitude  float64             `json:"longitude"`
	Org        string              `json:"org"`
	ISP        string              `json:"isp"`
	OS         *string             `json:"os"`
	Ports      []int               `json:"ports"`
	Hostnames  []string            `json:"hostnames"`
	LastUpdate string              `json:"last_update"`
	Data       []ShodanServiceData `json:"data"`
	Vulns      json.RawMessage     `json:"vulns"`
}

// ShodanServiceData is one banner collected by Shodan
type ShodanServiceData struct {
	Port      int     `json:"port"`
	Transport string  `json:"transport"`
	Product   string  `json:"product"`
	Version   *string `json:"version"`
	Data      string  `json:"data"`
}

// ShodanService is a normalized exposed service
type ShodanService struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Product  string `json:"product"`
	Version  string `json:"version,omitempty"`
	Banner   string `json:"banner,omitempty"`
}

// ShodanResult is the normalized host-exposure signal
type ShodanResult struct {
	Found        bool            `json:"found"`
	Message      string          `json:"message,omitempty"`
	IP           string          `json:"ip,omitempty"`
	Country      string          `json:"country,omitempty"`
	City         string          `json:"city,omitempty"`
	Latitude     float64         `json:"latitude,omitempty"`
	Longitude    float64         `json:"longitude,omitempty"`
	Organization string          `json:"organization,omitempty"`
	ISP          string          `json:"isp,omitempty"`
	OS           string          `json:"os,omitempty"`
	Ports        []int           `json:"ports"`
	Services     []ShodanService `json:"services"`
	Vulns        []string        `json:"vulns"`
	Hostnames    []string        `json:"hostnames,omitempty"`
	LastUpdate   string          `json:"lastUpdate,omitempty"`
}

// GetProviderName returns the provider name
func (c *ShodanClient) GetProviderName() string {
	return ProviderShodan
}

// IsConfigured returns true if the client has a usable API key
func (c *ShodanClient) IsConfigured() bool {
	return !isPlaceholderKey(c.apiKey)
}

// Supports returns true only for IP lookups
func (c *ShodanClient) Supports(kind entity.QueryKind) bool {
	return kind == entity.KindIP
}

// Lookup implements ThreatIntelProvider
func (c *ShodanClient) Lookup(ctx context.Context, q entity.Query) (Signal, error) {
	result, err := c.CheckIP(ctx, q.Value)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CheckIP queries Shodan for an IP address
func (c *ShodanClient) CheckIP(ctx context.Context, ip string) (*ShodanResult, error) {
	if !c.IsConfigured() {
		return nil, notConfigured(ProviderShodan, "Shodan", "SHODAN_API_KEY")
	}

	if c.limiter != nil && !c.limiter.Allow() {
		return nil, localRateLimited(ProviderShodan)
	}

	reqURL := c.baseURL + "/shodan/host/" + url.PathEscape(ip) + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, requestError(ProviderShodan, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, requestError(ProviderShodan, err)
	}
	defer resp.Body.Close()

	// 404 means Shodan has never indexed the host
	if resp.StatusCode == http.StatusNotFound {
		return &ShodanResult{
			Found:    false,
			Message:  "IP not found in Shodan database",
			Ports:    []int{},
			Services: []ShodanService{},
			Vulns:    []string{},
		}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(ProviderShodan, resp)
	}

	var hostResp ShodanHostResponse
	if err := json.NewDecoder(resp.Body).Decode(&hostResp); err != nil {
		return nil, decodeError(ProviderShodan, err)
	}

	return c.processResponse(&hostResp), nil
}

// processResponse converts the Shodan host document to our result format
func (c *ShodanClient) processResponse(resp *ShodanHostResponse) *ShodanResult {
	result := &ShodanResult{
		Found:        true,
		IP:           resp.IPStr,
		Country:      resp.Country,
		City:         resp.City,
		Latitude:     resp.Latitude,
		Longitude:    resp.Longitude,
		Organization: resp.Org,
		ISP:          resp.ISP,
		OS:           "Unknown",
		Ports:        resp.Ports,
		Services:     make([]ShodanService, 0, len(resp.Data)),
		Vulns:        parseVulns(resp.Vulns),
		Hostnames:    resp.Hostnames,
		LastUpdate:   resp.LastUpdate,
	}
	if resp.OS != nil && *resp.OS != "" {
		result.OS = *resp.OS
	}
	if result.Ports == nil {
		result.Ports = []int{}
	}

	for _, svc := range resp.Data {
		service := ShodanService{
			Port:     svc.Port,
			Protocol: svc.Transport,
			Product:  svc.Product,
			Banner:   truncate(svc.Data, maxBannerLength),
		}
		if service.Protocol == "" {
			service.Protocol = "tcp"
		}
		if service.Product == "" {
			service.Product = "Unknown"
		}
		if svc.Version != nil {
			service.Version = *svc.Version
		}
		result.Services = append(result.Services, service)
	}

	return result
}

// parseVulns accepts both shapes Shodan uses for "vulns": a list of CVE ids,
// or an object keyed by CVE id.
func parseVulns(raw json.RawMessage) []string {
	vulns := []string{}
	if len(raw) == 0 {
		return vulns
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return append(vulns, list...)
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keyed); err == nil {
		for id := range keyed {
			vulns = append(vulns, id)
		}
		sort.Strings(vulns)
	}

	return vulns
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
