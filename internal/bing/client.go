package bing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"searchlens/internal/domain"
)

// DefaultBaseURL is the Bing Webmaster Tools JSON endpoint.
const DefaultBaseURL = "https://ssl.bing.com/webmaster/api.svc/json"

// Site is one verified Bing property.
type Site struct {
	URL      string `json:"Url"`
	Verified bool   `json:"IsVerified"`
}

// TrafficStat is one day of rank-and-traffic data.
type TrafficStat struct {
	Date        string  `json:"Date"`
	Clicks      float64 `json:"Clicks"`
	Impressions float64 `json:"Impressions"`
	AvgPosition float64 `json:"AvgImpressionPosition"`
}

// KeywordStat is query-level performance data.
type KeywordStat struct {
	Query       string  `json:"Query"`
	Clicks      float64 `json:"Clicks"`
	Impressions float64 `json:"Impressions"`
	AvgPosition float64 `json:"AvgImpressionPosition"`
}

// CrawlStat is one day of crawler activity.
type CrawlStat struct {
	Date            string  `json:"Date"`
	CrawledPages    float64 `json:"CrawledPages"`
	InIndex         float64 `json:"InIndex"`
	CrawlErrors     float64 `json:"AllOtherCodes"`
	BlockedByRobots float64 `json:"BlockedByRobotsTxt"`
}

// Client calls the documented Bing Webmaster REST API with an API key. It is
// the conventional sibling of the reverse-engineered Google channel: plain
// JSON, a "d" result envelope, no session gymnastics.
type Client struct {
	base   string
	apiKey string
	http   *http.Client
	logger *slog.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Logger  *slog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{base: cfg.BaseURL, apiKey: cfg.APIKey, http: cfg.Client, logger: cfg.Logger}
}

// ListSites returns the properties registered under the API key.
func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	var out []Site
	if err := c.get(ctx, "GetUserSites", nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.Errorf(domain.EmptyResult, "no Bing properties under this API key")
	}
	return out, nil
}

// TrafficStats returns daily rank-and-traffic data for a site.
func (c *Client) TrafficStats(ctx context.Context, site string) ([]TrafficStat, error) {
	var out []TrafficStat
	if err := c.get(ctx, "GetRankAndTrafficStats", url.Values{"siteUrl": {site}}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.Errorf(domain.EmptyResult, "no Bing traffic data for %s", site)
	}
	return out, nil
}

// KeywordStats returns query-level performance for a site.
func (c *Client) KeywordStats(ctx context.Context, site string) ([]KeywordStat, error) {
	var out []KeywordStat
	if err := c.get(ctx, "GetKeywordStats", url.Values{"siteUrl": {site}}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.Errorf(domain.EmptyResult, "no Bing keyword data for %s", site)
	}
	return out, nil
}

// CrawlStats returns daily crawler activity for a site.
func (c *Client) CrawlStats(ctx context.Context, site string) ([]CrawlStat, error) {
	var out []CrawlStat
	if err := c.get(ctx, "GetCrawlStats", url.Values{"siteUrl": {site}}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.Errorf(domain.EmptyResult, "no Bing crawl data for %s", site)
	}
	return out, nil
}

// get issues one API call and unwraps the "d" envelope into out.
func (c *Client) get(ctx context.Context, method string, params url.Values, out any) error {
	if c.apiKey == "" {
		return domain.Errorf(domain.RpcAuthError, "no Bing API key configured")
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)

	endpoint := fmt.Sprintf("%s/%s?%s", c.base, method, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Wrap(domain.RpcTransportError, fmt.Sprintf("call %s", method), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Wrap(domain.RpcTransportError, fmt.Sprintf("read response for %s", method), err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.Errorf(domain.RpcAuthError, "Bing rejected the API key (HTTP %d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		return domain.Errorf(domain.RpcTransportError, "Bing service error HTTP %d", resp.StatusCode)
	default:
		return domain.Errorf(domain.RpcTransportError, "Bing answered HTTP %d for %s", resp.StatusCode, method)
	}

	var envelope struct {
		D json.RawMessage `json:"d"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.Wrap(domain.RpcDecodeError, fmt.Sprintf("%s response is not JSON", method), err)
	}
	if len(envelope.D) == 0 || string(envelope.D) == "null" {
		return domain.Errorf(domain.RpcDecodeError, "%s response has no result envelope", method)
	}
	if err := json.Unmarshal(envelope.D, out); err != nil {
		return domain.Wrap(domain.RpcDecodeError, fmt.Sprintf("decode %s result", method), err)
	}
	return nil
}
