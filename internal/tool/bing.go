package tool

import (
	"context"

	"searchlens/internal/bing"
	"searchlens/internal/domain"
)

// Webmaster is the slice of the Bing client the tools need.
type Webmaster interface {
	ListSites(ctx context.Context) ([]bing.Site, error)
	TrafficStats(ctx context.Context, site string) ([]bing.TrafficStat, error)
	KeywordStats(ctx context.Context, site string) ([]bing.KeywordStat, error)
	CrawlStats(ctx context.Context, site string) ([]bing.CrawlStat, error)
}

// NewBingTools builds the Bing Webmaster tool set.
func NewBingTools(api Webmaster, limits Limits) []domain.Tool {
	if limits.DefaultRows <= 0 {
		limits.DefaultRows = 20
	}
	if limits.MaxRows <= 0 {
		limits.MaxRows = 1000
	}
	return []domain.Tool{
		&bingListSitesTool{api: api},
		&bingSearchAnalyticsTool{api: api, limits: limits},
		&bingCrawlStatsTool{api: api, limits: limits},
		&bingKeywordStatsTool{api: api, limits: limits},
	}
}

type bingListSitesTool struct {
	api Webmaster
}

func (t *bingListSitesTool) Name() string { return "bing_list_sites" }
func (t *bingListSitesTool) Description() string {
	return "List the Bing Webmaster properties registered under the configured API key."
}
func (t *bingListSitesTool) Parameters() map[string]any {
	return objectSchema(map[string]any{})
}
func (t *bingListSitesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	sites, err := t.api.ListSites(ctx)
	if err != nil {
		return "", err
	}
	return toJSON(map[string]any{"sites": sites, "count": len(sites)})
}

type bingSearchAnalyticsTool struct {
	api    Webmaster
	limits Limits
}

func (t *bingSearchAnalyticsTool) Name() string { return "bing_search_analytics" }
func (t *bingSearchAnalyticsTool) Description() string {
	return "Daily rank-and-traffic stats for a Bing Webmaster property."
}
func (t *bingSearchAnalyticsTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"site":  siteParam(),
		"limit": limitParam(),
	}, "site")
}
func (t *bingSearchAnalyticsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	stats, err := t.api.TrafficStats(ctx, argString(args, "site"))
	if err != nil {
		return "", err
	}
	if n := t.limits.clamp(argInt(args, "limit", 0)); len(stats) > n {
		stats = stats[:n]
	}
	return toJSON(map[string]any{"rows": stats, "count": len(stats)})
}

type bingCrawlStatsTool struct {
	api    Webmaster
	limits Limits
}

func (t *bingCrawlStatsTool) Name() string { return "bing_crawl_stats" }
func (t *bingCrawlStatsTool) Description() string {
	return "Daily crawler activity for a Bing Webmaster property: pages crawled, indexed, blocked, errors."
}
func (t *bingCrawlStatsTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"site":  siteParam(),
		"limit": limitParam(),
	}, "site")
}
func (t *bingCrawlStatsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	stats, err := t.api.CrawlStats(ctx, argString(args, "site"))
	if err != nil {
		return "", err
	}
	if n := t.limits.clamp(argInt(args, "limit", 0)); len(stats) > n {
		stats = stats[:n]
	}
	return toJSON(map[string]any{"rows": stats, "count": len(stats)})
}

type bingKeywordStatsTool struct {
	api    Webmaster
	limits Limits
}

func (t *bingKeywordStatsTool) Name() string { return "bing_keyword_stats" }
func (t *bingKeywordStatsTool) Description() string {
	return "Query-level performance for a Bing Webmaster property."
}
func (t *bingKeywordStatsTool) Parameters() map[string]any {
	return objectSchema(map[string]any{
		"site":  siteParam(),
		"limit": limitParam(),
	}, "site")
}
func (t *bingKeywordStatsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	stats, err := t.api.KeywordStats(ctx, argString(args, "site"))
	if err != nil {
		return "", err
	}
	if n := t.limits.clamp(argInt(args, "limit", 0)); len(stats) > n {
		stats = stats[:n]
	}
	return toJSON(map[string]any{"rows": stats, "count": len(stats)})
}
