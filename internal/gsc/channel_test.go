package gsc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"searchlens/internal/domain"
	"searchlens/internal/session"
)

type fixedReader struct{}

func (fixedReader) Read(ctx context.Context) (map[string]domain.CookieRecord, error) {
	cookies := make(map[string]domain.CookieRecord)
	for _, name := range []string{"SID", "HSID", "SSID", "APISID", "SAPISID"} {
		cookies[name] = domain.CookieRecord{Name: name, Value: name + "-value"}
	}
	return cookies, nil
}

func testProvider() *session.Provider {
	return session.NewProvider(session.ProviderConfig{Reader: fixedReader{}, TTL: time.Hour})
}

// envelopeBody renders a framed response carrying one wrb.fr entry whose
// inner payload is the double-encoded innerJSON.
func envelopeBody(t *testing.T, procID, innerJSON string) string {
	t.Helper()
	frame, err := json.Marshal([]any{[]any{"wrb.fr", procID, innerJSON}})
	if err != nil {
		t.Fatal(err)
	}
	return framed(string(frame))
}

func newChannel(t *testing.T, serverURL string) *Channel {
	t.Helper()
	return NewChannel(ChannelConfig{
		BaseURL:  serverURL,
		Origin:   "https://search.google.com",
		Sessions: testProvider(),
	})
}

const tokenBody = `)]}'` + "\n" + `{"SNlM0e":"fresh-token"}`

func TestCallEndToEnd(t *testing.T) {
	const proc = "YqCdKf"
	inner := `[[[["q"],[1,5]],[["r"],[1,7]]]]`

	var sawAuth, sawCookie atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		if r.Form.Get("at") == "" {
			// Token probe: reject and hand out the token.
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, tokenBody)
			return
		}
		if r.Form.Get("at") != "fresh-token" {
			t.Errorf("at = %q, want fresh-token", r.Form.Get("at"))
		}
		if strings.HasPrefix(r.Header.Get("Authorization"), "SAPISIDHASH ") {
			sawAuth.Store(true)
		}
		if strings.Contains(r.Header.Get("Cookie"), "SAPISID=SAPISID-value") {
			sawCookie.Store(true)
		}
		if !strings.Contains(r.Form.Get("f.req"), proc) {
			t.Errorf("f.req %q does not reference the procedure", r.Form.Get("f.req"))
		}
		if r.URL.Query().Get("rpcids") != proc || r.URL.Query().Get("rt") != "c" {
			t.Errorf("query = %q, want rpcids and rt", r.URL.RawQuery)
		}
		if r.URL.Query().Get("_reqid") == "" {
			t.Error("query missing _reqid")
		}
		fmt.Fprint(w, envelopeBody(t, proc, inner))
	}))
	defer srv.Close()

	ch := newChannel(t, srv.URL)
	payload, err := ch.Call(context.Background(), proc, []any{"site"})
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != inner {
		t.Fatalf("payload = %s, want %s", payload, inner)
	}
	if !sawAuth.Load() {
		t.Fatal("request carried no SAPISIDHASH authorization")
	}
	if !sawCookie.Load() {
		t.Fatal("request carried no session cookies")
	}
}

func TestCallTwoFrameResponseEndToEnd(t *testing.T) {
	const proc = "YqCdKf"
	inner := `[[
		[[null,"query a"],[1,10],[2,200],[3,0.05],[4,1.1]],
		[[null,"query b"],[1,20],[2,400],[3,0.05],[4,2.2]],
		[[null,"query c"],[1,30],[2,600],[3,0.05],[4,3.3]],
		[[null,"query d"],[1,40],[2,800],[3,0.05],[4,4.4]],
		[[null,"query e"],[1,50],[2,999],[3,0.05],[4,5.5]]
	]]`
	dataFrame, err := json.Marshal([]any{[]any{"wrb.fr", proc, inner}})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("at") == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, tokenBody)
			return
		}
		// A bookkeeping frame precedes the data frame.
		fmt.Fprint(w, framed(`[["di",42]]`, string(dataFrame)))
	}))
	defer srv.Close()

	ch := newChannel(t, srv.URL)
	payload, err := ch.Call(context.Background(), proc, []any{"site"})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := Decode(payload)
	if err != nil {
		t.Fatal(err)
	}
	rows, skipped := NewExtractor(DefaultCodeTable()).Extract(raw, []string{"query"})
	if skipped != 0 || len(rows) != 5 {
		t.Fatalf("rows = %d, skipped = %d, want 5 and 0", len(rows), skipped)
	}
	last := rows[4]
	if last.Dimensions["query"] != "query e" {
		t.Fatalf("query = %q", last.Dimensions["query"])
	}
	if *last.Metrics.Clicks != 50 || *last.Metrics.Impressions != 999 || *last.Metrics.CTR != 0.05 || *last.Metrics.Position != 5.5 {
		t.Fatalf("metrics cross-contaminated: %+v", last.Metrics)
	}
}

func TestCallReusesNegotiatedToken(t *testing.T) {
	const proc = "YqCdKf"
	var probes atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("at") == "" {
			probes.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, tokenBody)
			return
		}
		fmt.Fprint(w, envelopeBody(t, proc, `[[[["q"],[1,5]]]]`))
	}))
	defer srv.Close()

	ch := newChannel(t, srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := ch.Call(context.Background(), proc, nil); err != nil {
			t.Fatal(err)
		}
	}
	if got := probes.Load(); got != 1 {
		t.Fatalf("3 calls caused %d token probes, want 1", got)
	}
}

func TestConcurrentCallersShareOneTokenNegotiation(t *testing.T) {
	const proc = "YqCdKf"
	var probes atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("at") == "" {
			probes.Add(1)
			time.Sleep(20 * time.Millisecond) // keep the probe in flight
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, tokenBody)
			return
		}
		fmt.Fprint(w, envelopeBody(t, proc, `[[[["q"],[1,5]]]]`))
	}))
	defer srv.Close()

	ch := newChannel(t, srv.URL)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ch.Call(context.Background(), proc, nil); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if got := probes.Load(); got != 1 {
		t.Fatalf("8 concurrent callers issued %d token probes, want 1", got)
	}
}

func TestCallRetriesOnceOnTokenRejection(t *testing.T) {
	const proc = "YqCdKf"
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("at") == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, tokenBody)
			return
		}
		// Bounce the first authenticated call as if the token went stale.
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, tokenBody)
			return
		}
		fmt.Fprint(w, envelopeBody(t, proc, `[[[["q"],[1,5]]]]`))
	}))
	defer srv.Close()

	ch := newChannel(t, srv.URL)
	if _, err := ch.Call(context.Background(), proc, nil); err != nil {
		t.Fatalf("the retried call should succeed: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("authenticated calls = %d, want 2 (one bounce, one retry)", got)
	}
}

func TestCallSurfacesSecondTokenRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, tokenBody)
	}))
	defer srv.Close()

	ch := newChannel(t, srv.URL)
	_, err := ch.Call(context.Background(), "YqCdKf", nil)
	if domain.KindOf(err) != domain.RpcAuthError {
		t.Fatalf("kind = %q, want %q", domain.KindOf(err), domain.RpcAuthError)
	}
}

func TestCallForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("at") == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, tokenBody)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ch := newChannel(t, srv.URL)
	_, err := ch.Call(context.Background(), "YqCdKf", nil)
	if domain.KindOf(err) != domain.RpcAuthError {
		t.Fatalf("kind = %q, want %q", domain.KindOf(err), domain.RpcAuthError)
	}
}

func TestCallProbeWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"nothing useful"}`)
	}))
	defer srv.Close()

	ch := newChannel(t, srv.URL)
	_, err := ch.Call(context.Background(), "YqCdKf", nil)
	if domain.KindOf(err) != domain.AntiForgeryFetchFailed {
		t.Fatalf("kind = %q, want %q", domain.KindOf(err), domain.AntiForgeryFetchFailed)
	}
}

func TestCallNoEntryForProcedure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("at") == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, tokenBody)
			return
		}
		fmt.Fprint(w, envelopeBody(t, "OtherProc", `[[]]`))
	}))
	defer srv.Close()

	ch := newChannel(t, srv.URL)
	_, err := ch.Call(context.Background(), "YqCdKf", nil)
	if domain.KindOf(err) != domain.RpcDecodeError {
		t.Fatalf("kind = %q, want %q", domain.KindOf(err), domain.RpcDecodeError)
	}
}

func TestCallServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("at") == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, tokenBody)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := newChannel(t, srv.URL)
	_, err := ch.Call(context.Background(), "YqCdKf", nil)
	if domain.KindOf(err) != domain.RpcTransportError {
		t.Fatalf("kind = %q, want %q", domain.KindOf(err), domain.RpcTransportError)
	}
}
