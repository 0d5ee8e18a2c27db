package tool

import (
	"context"
	"time"

	"searchlens/internal/domain"
	"searchlens/internal/gsc"
)

// SearchConsole is the slice of the Google client the tools need. Analytics
// operations report how many response rows were dropped during extraction;
// that count travels into the tool result so the agent sees partial data for
// what it is.
type SearchConsole interface {
	SearchAnalytics(ctx context.Context, q gsc.Query) ([]domain.SemanticRow, int, error)
	TopQueries(ctx context.Context, site string, start, end time.Time, limit int) ([]domain.SemanticRow, int, error)
	TopPages(ctx context.Context, site string, start, end time.Time, limit int) ([]domain.SemanticRow, int, error)
	QueryPages(ctx context.Context, site string, start, end time.Time, limit int) ([]domain.SemanticRow, int, error)
	Timeseries(ctx context.Context, site string, start, end time.Time) ([]domain.SemanticRow, int, error)
	ListSites(ctx context.Context) ([]gsc.Site, error)
	ListSitemaps(ctx context.Context, site string) ([]gsc.Sitemap, error)
}

// Limits bounds row counts returned to the agent.
type Limits struct {
	DefaultRows int
	MaxRows     int
}

func (l Limits) clamp(requested int) int {
	if requested <= 0 {
		requested = l.DefaultRows
	}
	if l.MaxRows > 0 && requested > l.MaxRows {
		requested = l.MaxRows
	}
	return requested
}

// gscBase carries what every Google tool shares.
type gscBase struct {
	api    SearchConsole
	limits Limits
	now    func() time.Time
}

// NewGSCTools builds the Google search-console tool set.
func NewGSCTools(api SearchConsole, limits Limits, now func() time.Time) []domain.Tool {
	if now == nil {
		now = time.Now
	}
	if limits.DefaultRows <= 0 {
		limits.DefaultRows = 20
	}
	if limits.MaxRows <= 0 {
		limits.MaxRows = 1000
	}
	base := gscBase{api: api, limits: limits, now: now}
	return []domain.Tool{
		&listSitesTool{base},
		&searchAnalyticsTool{base},
		&topQueriesTool{base},
		&topPagesTool{base},
		&queryPagesTool{base},
		&timeseriesTool{base},
		&listSitemapsTool{base},
	}
}

// Parameter schema fragments shared across tools.
func siteParam() map[string]any {
	return map[string]any{"type": "string", "description": "Property URL as registered, e.g. https://example.com/ or sc-domain:example.com"}
}

func dateParams() (map[string]any, map[string]any) {
	return map[string]any{"type": "string", "description": "Start date YYYY-MM-DD. Defaults to 28 days before end_date."},
		map[string]any{"type": "string", "description": "End date YYYY-MM-DD. Defaults to 3 days ago (fresher data is not final)."}
}

func limitParam() map[string]any {
	return map[string]any{"type": "integer", "description": "Maximum rows to return."}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

type listSitesTool struct{ gscBase }

func (t *listSitesTool) Name() string { return "gsc_list_sites" }
func (t *listSitesTool) Description() string {
	return "List the Google Search Console properties the browser session can access."
}
func (t *listSitesTool) Parameters() map[string]any {
	return objectSchema(map[string]any{})
}
func (t *listSitesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	sites, err := t.api.ListSites(ctx)
	if err != nil {
		return "", err
	}
	return toJSON(map[string]any{"sites": sites, "count": len(sites)})
}

type searchAnalyticsTool struct{ gscBase }

func (t *searchAnalyticsTool) Name() string { return "gsc_search_analytics" }
func (t *searchAnalyticsTool) Description() string {
	return "Run a search analytics query with chosen dimensions (date, query, page, country, device)."
}
func (t *searchAnalyticsTool) Parameters() map[string]any {
	start, end := dateParams()
	return objectSchema(map[string]any{
		"site": siteParam(),
		"dimensions": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string", "enum": []string{"date", "query", "page", "country", "device"}},
			"description": "Dimensions to group by.",
		},
		"start_date": start,
		"end_date":   end,
		"limit":      limitParam(),
	}, "site", "dimensions")
}
func (t *searchAnalyticsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	start, end, err := resolveDateRange(args, t.now())
	if err != nil {
		return "", err
	}
	var dims []string
	if raw, ok := args["dimensions"].([]any); ok {
		for _, d := range raw {
			if s, ok := d.(string); ok {
				dims = append(dims, s)
			}
		}
	}
	rows, skipped, err := t.api.SearchAnalytics(ctx, gsc.Query{
		Site:       argString(args, "site"),
		Dimensions: dims,
		Start:      start,
		End:        end,
		Limit:      t.limits.clamp(argInt(args, "limit", 0)),
	})
	if err != nil {
		return "", err
	}
	return toJSON(map[string]any{"rows": formatRows(rows), "count": len(rows), "skipped": skipped})
}

type topQueriesTool struct{ gscBase }

func (t *topQueriesTool) Name() string { return "gsc_top_queries" }
func (t *topQueriesTool) Description() string {
	return "Top search queries for a property over a date range."
}
func (t *topQueriesTool) Parameters() map[string]any {
	start, end := dateParams()
	return objectSchema(map[string]any{
		"site": siteParam(), "start_date": start, "end_date": end, "limit": limitParam(),
	}, "site")
}
func (t *topQueriesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	start, end, err := resolveDateRange(args, t.now())
	if err != nil {
		return "", err
	}
	rows, skipped, err := t.api.TopQueries(ctx, argString(args, "site"), start, end, t.limits.clamp(argInt(args, "limit", 0)))
	if err != nil {
		return "", err
	}
	return toJSON(map[string]any{"rows": formatRows(rows), "count": len(rows), "skipped": skipped})
}

type topPagesTool struct{ gscBase }

func (t *topPagesTool) Name() string { return "gsc_top_pages" }
func (t *topPagesTool) Description() string {
	return "Top pages for a property over a date range."
}
func (t *topPagesTool) Parameters() map[string]any {
	start, end := dateParams()
	return objectSchema(map[string]any{
		"site": siteParam(), "start_date": start, "end_date": end, "limit": limitParam(),
	}, "site")
}
func (t *topPagesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	start, end, err := resolveDateRange(args, t.now())
	if err != nil {
		return "", err
	}
	rows, skipped, err := t.api.TopPages(ctx, argString(args, "site"), start, end, t.limits.clamp(argInt(args, "limit", 0)))
	if err != nil {
		return "", err
	}
	return toJSON(map[string]any{"rows": formatRows(rows), "count": len(rows), "skipped": skipped})
}

type queryPagesTool struct{ gscBase }

func (t *queryPagesTool) Name() string { return "gsc_query_pages" }
func (t *queryPagesTool) Description() string {
	return "Query and page together, showing which page ranks for which query."
}
func (t *queryPagesTool) Parameters() map[string]any {
	start, end := dateParams()
	return objectSchema(map[string]any{
		"site": siteParam(), "start_date": start, "end_date": end, "limit": limitParam(),
	}, "site")
}
func (t *queryPagesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	start, end, err := resolveDateRange(args, t.now())
	if err != nil {
		return "", err
	}
	rows, skipped, err := t.api.QueryPages(ctx, argString(args, "site"), start, end, t.limits.clamp(argInt(args, "limit", 0)))
	if err != nil {
		return "", err
	}
	return toJSON(map[string]any{"rows": formatRows(rows), "count": len(rows), "skipped": skipped})
}

type timeseriesTool struct{ gscBase }

func (t *timeseriesTool) Name() string { return "gsc_timeseries" }
func (t *timeseriesTool) Description() string {
	return "Daily clicks, impressions, CTR and position for a property over a date range."
}
func (t *timeseriesTool) Parameters() map[string]any {
	start, end := dateParams()
	return objectSchema(map[string]any{
		"site": siteParam(), "start_date": start, "end_date": end,
	}, "site")
}
func (t *timeseriesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	start, end, err := resolveDateRange(args, t.now())
	if err != nil {
		return "", err
	}
	rows, skipped, err := t.api.Timeseries(ctx, argString(args, "site"), start, end)
	if err != nil {
		return "", err
	}
	return toJSON(map[string]any{"rows": formatRows(rows), "count": len(rows), "skipped": skipped})
}

type listSitemapsTool struct{ gscBase }

func (t *listSitemapsTool) Name() string { return "gsc_list_sitemaps" }
func (t *listSitemapsTool) Description() string {
	return "List the sitemaps submitted for a property."
}
func (t *listSitemapsTool) Parameters() map[string]any {
	return objectSchema(map[string]any{"site": siteParam()}, "site")
}
func (t *listSitemapsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	maps, err := t.api.ListSitemaps(ctx, argString(args, "site"))
	if err != nil {
		return "", err
	}
	return toJSON(map[string]any{"sitemaps": maps, "count": len(maps)})
}
