package bing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"searchlens/internal/domain"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"}), srv
}

func TestListSites(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/GetUserSites" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("apikey") != "test-key" {
			t.Errorf("apikey = %q", r.URL.Query().Get("apikey"))
		}
		fmt.Fprint(w, `{"d":[{"Url":"https://a.example/","IsVerified":true},{"Url":"https://b.example/","IsVerified":false}]}`)
	})
	defer srv.Close()

	sites, err := c.ListSites(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sites) != 2 || sites[0].URL != "https://a.example/" || !sites[0].Verified {
		t.Fatalf("sites = %+v", sites)
	}
}

func TestTrafficStats(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/GetRankAndTrafficStats" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("siteUrl") != "https://a.example/" {
			t.Errorf("siteUrl = %q", r.URL.Query().Get("siteUrl"))
		}
		fmt.Fprint(w, `{"d":[{"Date":"2026-08-01","Clicks":12,"Impressions":340,"AvgImpressionPosition":6.4}]}`)
	})
	defer srv.Close()

	stats, err := c.TrafficStats(context.Background(), "https://a.example/")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 || stats[0].Clicks != 12 || stats[0].AvgPosition != 6.4 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestKeywordStats(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"d":[{"Query":"best widgets","Clicks":5,"Impressions":90,"AvgImpressionPosition":8.1}]}`)
	})
	defer srv.Close()

	stats, err := c.KeywordStats(context.Background(), "https://a.example/")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 || stats[0].Query != "best widgets" {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestCrawlStats(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"d":[{"Date":"2026-08-01","CrawledPages":120,"InIndex":100,"BlockedByRobotsTxt":3}]}`)
	})
	defer srv.Close()

	stats, err := c.CrawlStats(context.Background(), "https://a.example/")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 || stats[0].CrawledPages != 120 || stats[0].BlockedByRobots != 3 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestRejectedAPIKey(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer srv.Close()

	_, err := c.ListSites(context.Background())
	if domain.KindOf(err) != domain.RpcAuthError {
		t.Fatalf("kind = %q, want %q", domain.KindOf(err), domain.RpcAuthError)
	}
}

func TestMissingAPIKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused.invalid"})
	_, err := c.ListSites(context.Background())
	if domain.KindOf(err) != domain.RpcAuthError {
		t.Fatalf("kind = %q, want %q", domain.KindOf(err), domain.RpcAuthError)
	}
}

func TestServerError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := c.ListSites(context.Background())
	if domain.KindOf(err) != domain.RpcTransportError {
		t.Fatalf("kind = %q, want %q", domain.KindOf(err), domain.RpcTransportError)
	}
}

func TestMissingEnvelope(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":[]}`)
	})
	defer srv.Close()

	_, err := c.ListSites(context.Background())
	if domain.KindOf(err) != domain.RpcDecodeError {
		t.Fatalf("kind = %q, want %q", domain.KindOf(err), domain.RpcDecodeError)
	}
}

func TestEmptySiteList(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"d":[]}`)
	})
	defer srv.Close()

	_, err := c.ListSites(context.Background())
	if domain.KindOf(err) != domain.EmptyResult {
		t.Fatalf("kind = %q, want %q", domain.KindOf(err), domain.EmptyResult)
	}
}
