package gsc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"searchlens/internal/domain"
)

// Procedure ids observed for the search console backend.
const (
	procSearchAnalytics = "YqCdKf"
	procListSites       = "kLdYbe"
	procListSitemaps    = "nQzrVe"
)

// caller abstracts the Channel for tests.
type caller interface {
	Call(ctx context.Context, procID string, args any) (json.RawMessage, error)
}

// Query is one search-analytics request.
type Query struct {
	Site       string
	Dimensions []string
	Start      time.Time
	End        time.Time
	Limit      int
}

// Site is one verified property.
type Site struct {
	URL        string `json:"url"`
	Permission string `json:"permission"`
}

// Sitemap is one submitted sitemap.
type Sitemap struct {
	Path      string `json:"path"`
	Status    string `json:"status"`
	Submitted string `json:"submitted,omitempty"`
}

// Client exposes the search console operations over a Channel.
type Client struct {
	caller    caller
	table     CodeTable
	extractor *Extractor
	logger    *slog.Logger
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Caller caller
	Table  CodeTable
	Logger *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Table.Dimensions == nil {
		cfg.Table = DefaultCodeTable()
	}
	return &Client{
		caller:    cfg.Caller,
		table:     cfg.Table,
		extractor: NewExtractor(cfg.Table),
		logger:    cfg.Logger,
	}
}

// SearchAnalytics runs one analytics query. Alongside the semantic rows it
// returns how many response rows were dropped for missing a requested
// dimension, so callers can report partial extraction instead of hiding it.
func (c *Client) SearchAnalytics(ctx context.Context, q Query) ([]domain.SemanticRow, int, error) {
	if q.Site == "" {
		return nil, 0, fmt.Errorf("site is required")
	}
	if q.End.Before(q.Start) {
		return nil, 0, fmt.Errorf("end date %s is before start date %s", q.End.Format(dateLayout), q.Start.Format(dateLayout))
	}
	codes := make([]int, 0, len(q.Dimensions))
	for _, name := range q.Dimensions {
		code, ok := c.table.DimensionCode(name)
		if !ok {
			return nil, 0, fmt.Errorf("unknown dimension %q", name)
		}
		codes = append(codes, code)
	}

	args := []any{
		q.Site,
		codes,
		q.Start.Format(dateLayout),
		q.End.Format(dateLayout),
		q.Limit,
	}
	payload, err := c.caller.Call(ctx, procSearchAnalytics, args)
	if err != nil {
		return nil, 0, err
	}
	raw, err := Decode(payload)
	if err != nil {
		return nil, 0, err
	}
	rows, skipped := c.extractor.Extract(raw, q.Dimensions)
	if skipped > 0 {
		c.logger.Warn("rows skipped during extraction", "site", q.Site, "skipped", skipped, "kept", len(rows))
	}
	if len(rows) == 0 {
		return nil, skipped, domain.Errorf(domain.EmptyResult, "no rows for %s between %s and %s",
			q.Site, q.Start.Format(dateLayout), q.End.Format(dateLayout))
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, skipped, nil
}

// TopQueries returns the best-performing search queries for a site.
func (c *Client) TopQueries(ctx context.Context, site string, start, end time.Time, limit int) ([]domain.SemanticRow, int, error) {
	return c.SearchAnalytics(ctx, Query{Site: site, Dimensions: []string{"query"}, Start: start, End: end, Limit: limit})
}

// TopPages returns the best-performing pages for a site.
func (c *Client) TopPages(ctx context.Context, site string, start, end time.Time, limit int) ([]domain.SemanticRow, int, error) {
	return c.SearchAnalytics(ctx, Query{Site: site, Dimensions: []string{"page"}, Start: start, End: end, Limit: limit})
}

// QueryPages returns query and page together, correlating which page ranks
// for which query.
func (c *Client) QueryPages(ctx context.Context, site string, start, end time.Time, limit int) ([]domain.SemanticRow, int, error) {
	return c.SearchAnalytics(ctx, Query{Site: site, Dimensions: []string{"query", "page"}, Start: start, End: end, Limit: limit})
}

// Timeseries returns daily rows for a site. The backend does not filter the
// series by the requested window reliably, so the full series is fetched and
// the window applied here, by calendar date.
func (c *Client) Timeseries(ctx context.Context, site string, start, end time.Time) ([]domain.SemanticRow, int, error) {
	rows, skipped, err := c.SearchAnalytics(ctx, Query{Site: site, Dimensions: []string{"date"}, Start: start, End: end})
	if err != nil {
		return nil, skipped, err
	}
	filtered := FilterDateRange(rows, start, end)
	if len(filtered) == 0 {
		return nil, skipped, domain.Errorf(domain.EmptyResult, "no rows for %s between %s and %s",
			site, start.Format(dateLayout), end.Format(dateLayout))
	}
	return filtered, skipped, nil
}

// ListSites returns the properties the session can see.
func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	payload, err := c.caller.Call(ctx, procListSites, []any{})
	if err != nil {
		return nil, err
	}
	raw, err := DecodeFlat(payload)
	if err != nil {
		return nil, err
	}
	sites := make([]Site, 0, len(raw))
	for _, row := range raw {
		s := Site{URL: scalarString(row, 0), Permission: scalarString(row, 1)}
		if s.URL == "" {
			continue
		}
		sites = append(sites, s)
	}
	if len(sites) == 0 {
		return nil, domain.Errorf(domain.EmptyResult, "the session sees no properties")
	}
	return sites, nil
}

// ListSitemaps returns the sitemaps submitted for a site.
func (c *Client) ListSitemaps(ctx context.Context, site string) ([]Sitemap, error) {
	if site == "" {
		return nil, fmt.Errorf("site is required")
	}
	payload, err := c.caller.Call(ctx, procListSitemaps, []any{site})
	if err != nil {
		return nil, err
	}
	raw, err := DecodeFlat(payload)
	if err != nil {
		return nil, err
	}
	maps := make([]Sitemap, 0, len(raw))
	for _, row := range raw {
		m := Sitemap{
			Path:      scalarString(row, 0),
			Status:    scalarString(row, 1),
			Submitted: scalarString(row, 2),
		}
		if m.Path == "" {
			continue
		}
		maps = append(maps, m)
	}
	if len(maps) == 0 {
		return nil, domain.Errorf(domain.EmptyResult, "no sitemaps submitted for %s", site)
	}
	return maps, nil
}

func scalarString(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	s, _ := row[i].(string)
	return s
}
