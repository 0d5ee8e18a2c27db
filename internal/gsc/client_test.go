package gsc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"searchlens/internal/domain"
)

// fakeCaller serves canned payloads per procedure and records calls.
type fakeCaller struct {
	payloads map[string]string
	calls    []fakeCall
}

type fakeCall struct {
	procID string
	args   any
}

func (f *fakeCaller) Call(ctx context.Context, procID string, args any) (json.RawMessage, error) {
	f.calls = append(f.calls, fakeCall{procID: procID, args: args})
	payload, ok := f.payloads[procID]
	if !ok {
		return nil, domain.Errorf(domain.RpcDecodeError, "no canned payload for %s", procID)
	}
	return json.RawMessage(payload), nil
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newTestClient(payloads map[string]string) (*Client, *fakeCaller) {
	caller := &fakeCaller{payloads: payloads}
	return NewClient(ClientConfig{Caller: caller}), caller
}

func TestTopQueries(t *testing.T) {
	c, caller := newTestClient(map[string]string{
		procSearchAnalytics: `[[
			[[null,"best query"],[1,100],[2,2000]],
			[[null,"second query"],[1,40],[2,800]]
		]]`,
	})
	rows, skipped, err := c.TopQueries(context.Background(), "https://example.com/", mustDate(t, "2026-07-01"), mustDate(t, "2026-07-28"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || skipped != 0 {
		t.Fatalf("rows = %d, skipped = %d", len(rows), skipped)
	}
	if rows[0].Dimensions["query"] != "best query" {
		t.Fatalf("query = %q", rows[0].Dimensions["query"])
	}
	if len(caller.calls) != 1 || caller.calls[0].procID != procSearchAnalytics {
		t.Fatalf("calls = %+v", caller.calls)
	}
}

func TestSearchAnalyticsLimit(t *testing.T) {
	c, _ := newTestClient(map[string]string{
		procSearchAnalytics: `[[
			[[null,"a"],[1,3]],
			[[null,"b"],[1,2]],
			[[null,"c"],[1,1]]
		]]`,
	})
	rows, _, err := c.SearchAnalytics(context.Background(), Query{
		Site:       "https://example.com/",
		Dimensions: []string{"query"},
		Start:      mustDate(t, "2026-07-01"),
		End:        mustDate(t, "2026-07-28"),
		Limit:      2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want the limit applied", len(rows))
	}
}

func TestSearchAnalyticsValidation(t *testing.T) {
	c, _ := newTestClient(nil)
	start := mustDate(t, "2026-07-01")
	end := mustDate(t, "2026-07-28")

	if _, _, err := c.SearchAnalytics(context.Background(), Query{Dimensions: []string{"query"}, Start: start, End: end}); err == nil {
		t.Fatal("want error for missing site")
	}
	if _, _, err := c.SearchAnalytics(context.Background(), Query{Site: "s", Dimensions: []string{"banana"}, Start: start, End: end}); err == nil {
		t.Fatal("want error for unknown dimension")
	}
	if _, _, err := c.SearchAnalytics(context.Background(), Query{Site: "s", Dimensions: []string{"query"}, Start: end, End: start}); err == nil {
		t.Fatal("want error for inverted range")
	}
}

func TestSearchAnalyticsEmptyResult(t *testing.T) {
	// Decodable payload whose rows all miss the requested dimension.
	c, _ := newTestClient(map[string]string{
		procSearchAnalytics: `[[
			[[null],[1,3]]
		]]`,
	})
	_, _, err := c.SearchAnalytics(context.Background(), Query{
		Site:       "https://example.com/",
		Dimensions: []string{"query"},
		Start:      mustDate(t, "2026-07-01"),
		End:        mustDate(t, "2026-07-28"),
	})
	if domain.KindOf(err) != domain.EmptyResult {
		t.Fatalf("kind = %q, want %q", domain.KindOf(err), domain.EmptyResult)
	}
}

func TestSearchAnalyticsReportsSkippedRows(t *testing.T) {
	// The middle row carries no query value and is dropped; the drop must be
	// reported, not just logged.
	c, _ := newTestClient(map[string]string{
		procSearchAnalytics: `[[
			[[null,"kept one"],[1,3]],
			[[null],[1,2]],
			[[null,"kept two"],[1,1]]
		]]`,
	})
	rows, skipped, err := c.SearchAnalytics(context.Background(), Query{
		Site:       "https://example.com/",
		Dimensions: []string{"query"},
		Start:      mustDate(t, "2026-07-01"),
		End:        mustDate(t, "2026-07-28"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || skipped != 1 {
		t.Fatalf("rows = %d, skipped = %d, want 2 and 1", len(rows), skipped)
	}
}

func TestTimeseriesFiltersClientSide(t *testing.T) {
	c, _ := newTestClient(map[string]string{
		procSearchAnalytics: `[[
			[["2026-07-01"],[1,1]],
			[["2026-07-02"],[1,2]],
			[["2026-07-03"],[1,3]],
			[["2026-07-04"],[1,4]],
			[["2026-07-05"],[1,5]]
		]]`,
	})
	rows, _, err := c.Timeseries(context.Background(), "https://example.com/", mustDate(t, "2026-07-02"), mustDate(t, "2026-07-04"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3: the window must be applied locally", len(rows))
	}
	if rows[0].Dimensions["date"] != "2026-07-02" || rows[2].Dimensions["date"] != "2026-07-04" {
		t.Fatalf("window wrong: %v .. %v", rows[0].Dimensions["date"], rows[2].Dimensions["date"])
	}
}

func TestTimeseriesEmptyWindow(t *testing.T) {
	c, _ := newTestClient(map[string]string{
		procSearchAnalytics: `[[
			[["2026-07-01"],[1,1]]
		]]`,
	})
	_, _, err := c.Timeseries(context.Background(), "https://example.com/", mustDate(t, "2026-08-01"), mustDate(t, "2026-08-02"))
	if domain.KindOf(err) != domain.EmptyResult {
		t.Fatalf("kind = %q, want %q", domain.KindOf(err), domain.EmptyResult)
	}
}

func TestQueryPagesDimensions(t *testing.T) {
	c, caller := newTestClient(map[string]string{
		procSearchAnalytics: `[[
			[[null,"how to","https://example.com/how-to"],[1,5]]
		]]`,
	})
	rows, _, err := c.QueryPages(context.Background(), "https://example.com/", mustDate(t, "2026-07-01"), mustDate(t, "2026-07-28"), 10)
	if err != nil {
		t.Fatal(err)
	}
	d := rows[0].Dimensions
	if d["query"] != "how to" || d["page"] != "https://example.com/how-to" {
		t.Fatalf("dimensions = %v", d)
	}
	// The wire args must carry both dimension codes.
	args, ok := caller.calls[0].args.([]any)
	if !ok || len(args) < 2 {
		t.Fatalf("args = %+v", caller.calls[0].args)
	}
	codes, ok := args[1].([]int)
	if !ok || len(codes) != 2 {
		t.Fatalf("dimension codes = %+v", args[1])
	}
}

func TestListSites(t *testing.T) {
	c, _ := newTestClient(map[string]string{
		procListSites: `[[
			["https://a.example/","siteOwner"],
			["sc-domain:b.example","siteFullUser"]
		]]`,
	})
	sites, err := c.ListSites(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sites) != 2 {
		t.Fatalf("got %d sites", len(sites))
	}
	if sites[1].URL != "sc-domain:b.example" || sites[1].Permission != "siteFullUser" {
		t.Fatalf("site = %+v", sites[1])
	}
}

func TestListSitemaps(t *testing.T) {
	c, _ := newTestClient(map[string]string{
		procListSitemaps: `[[
			["https://a.example/sitemap.xml","processed","2026-07-20"]
		]]`,
	})
	maps, err := c.ListSitemaps(context.Background(), "https://a.example/")
	if err != nil {
		t.Fatal(err)
	}
	if len(maps) != 1 || maps[0].Path != "https://a.example/sitemap.xml" {
		t.Fatalf("sitemaps = %+v", maps)
	}
	if maps[0].Status != "processed" || maps[0].Submitted != "2026-07-20" {
		t.Fatalf("sitemap = %+v", maps[0])
	}
}
