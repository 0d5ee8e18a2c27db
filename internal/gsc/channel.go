package gsc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"searchlens/internal/domain"
	"searchlens/internal/session"
)

// Recorder receives call-level observations. Implemented by the metrics
// collector; a nil Recorder disables recording.
type Recorder interface {
	ObserveRPC(procID string, d time.Duration, failed bool)
	AddFrames(n int)
}

// Channel speaks the framed batch-RPC dialect of the search console backend:
// form-encoded envelope out, anti-hijack prefixed frames back. It owns auth
// header construction and anti-forgery token negotiation; callers deal only
// in procedure ids and payloads.
type Channel struct {
	base     string // batchexecute endpoint URL
	origin   string
	http     *http.Client
	sessions *session.Provider
	tokens   *tokenCache
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	reqid    atomic.Int64
}

// ChannelConfig configures a Channel.
type ChannelConfig struct {
	BaseURL  string
	Origin   string
	Client   *http.Client
	Sessions *session.Provider
	TokenTTL time.Duration
	Logger   *slog.Logger
	Recorder Recorder
	Now      func() time.Time // test hook
}

func NewChannel(cfg ChannelConfig) *Channel {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Channel{
		base:     cfg.BaseURL,
		origin:   cfg.Origin,
		http:     cfg.Client,
		sessions: cfg.Sessions,
		tokens:   newTokenCache(cfg.TokenTTL, cfg.Now),
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
		now:      cfg.Now,
	}
}

// Call invokes one backend procedure and returns its inner payload, still
// encoded, for the decoder. A request bounced for a stale anti-forgery token
// is renegotiated and retried exactly once; a second bounce surfaces as an
// auth failure.
func (c *Channel) Call(ctx context.Context, procID string, args any) (json.RawMessage, error) {
	start := c.now()
	inner, err := c.call(ctx, procID, args)
	if c.recorder != nil {
		c.recorder.ObserveRPC(procID, c.now().Sub(start), err != nil)
	}
	return inner, err
}

func (c *Channel) call(ctx context.Context, procID string, args any) (json.RawMessage, error) {
	cookies, err := c.sessions.Cookies(ctx)
	if err != nil {
		return nil, err
	}
	token, err := c.tokens.getOrRefresh(func() (string, error) {
		return c.negotiate(ctx, cookies)
	})
	if err != nil {
		return nil, err
	}

	body, status, err := c.post(ctx, cookies, procID, args, token)
	if err != nil {
		return nil, err
	}
	if tokenRejected(status, body) {
		c.logger.Debug("anti-forgery token rejected, renegotiating", "proc", procID)
		c.tokens.invalidate()
		token, err = c.tokens.getOrRefresh(func() (string, error) {
			return c.negotiate(ctx, cookies)
		})
		if err != nil {
			return nil, err
		}
		body, status, err = c.post(ctx, cookies, procID, args, token)
		if err != nil {
			return nil, err
		}
		if tokenRejected(status, body) {
			return nil, domain.Errorf(domain.RpcAuthError, "request token rejected twice for %s", procID)
		}
	}
	if err := statusError(status, body); err != nil {
		return nil, err
	}

	frames, err := readFrames(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if c.recorder != nil {
		c.recorder.AddFrames(len(frames))
	}
	return innerPayload(frames, procID)
}

// negotiate obtains an anti-forgery token by issuing a deliberately tokenless
// request; the rejection body embeds the current token. Caching is the token
// cache's job: negotiate runs inside its refresh and must not touch it.
func (c *Channel) negotiate(ctx context.Context, cookies map[string]domain.CookieRecord) (string, error) {
	body, _, err := c.post(ctx, cookies, "jNkQmf", []any{}, "")
	if err != nil {
		return "", domain.Wrap(domain.AntiForgeryFetchFailed, "token probe failed", err)
	}
	token := extractToken(body)
	if token == "" {
		return "", domain.Errorf(domain.AntiForgeryFetchFailed, "token probe answered without a token (%d bytes)", len(body))
	}
	c.logger.Debug("anti-forgery token negotiated")
	return token, nil
}

// post sends one envelope and returns the raw body and status. Transport
// failures are typed; HTTP status interpretation is left to the caller
// because a 400 can carry a fresh token.
func (c *Channel) post(ctx context.Context, cookies map[string]domain.CookieRecord, procID string, args any, token string) ([]byte, int, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, 0, fmt.Errorf("encode args for %s: %w", procID, err)
	}
	envelope, err := json.Marshal([]any{[]any{[]any{procID, string(argsJSON), nil, "1"}}})
	if err != nil {
		return nil, 0, fmt.Errorf("encode envelope for %s: %w", procID, err)
	}

	form := url.Values{}
	form.Set("f.req", string(envelope))
	if token != "" {
		form.Set("at", token)
	}

	query := url.Values{}
	query.Set("rpcids", procID)
	query.Set("rt", "c")
	query.Set("_reqid", strconv.FormatInt(c.reqid.Add(1), 10))
	endpoint := c.base + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("build request for %s: %w", procID, err)
	}

	secret, err := session.SessionSecret(cookies)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("Authorization", session.AuthToken(secret, c.now().Unix(), c.origin))
	req.Header.Set("Cookie", session.CookieHeader(cookies))
	req.Header.Set("Origin", c.origin)
	req.Header.Set("X-Same-Domain", "1")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, domain.Wrap(domain.RpcTransportError, fmt.Sprintf("call %s", procID), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, domain.Wrap(domain.RpcTransportError, fmt.Sprintf("read response for %s", procID), err)
	}
	return body, resp.StatusCode, nil
}

// tokenRejected reports the stale-token signature: a 400 whose body embeds a
// fresh token for the retry.
func tokenRejected(status int, body []byte) bool {
	return status == http.StatusBadRequest && tokenPattern.Match(body)
}

func statusError(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.Errorf(domain.RpcAuthError, "service rejected the session (HTTP %d)", status)
	case status >= 500:
		return domain.Errorf(domain.RpcTransportError, "service error HTTP %d: %s", status, truncate(string(body), 120))
	default:
		return domain.Errorf(domain.RpcTransportError, "unexpected HTTP %d: %s", status, truncate(string(body), 120))
	}
}

// innerPayload locates the response entry for procID across frames and
// returns its payload decoded one level: the wire double-encodes it as a JSON
// string inside the envelope entry.
func innerPayload(frames []json.RawMessage, procID string) (json.RawMessage, error) {
	for _, frame := range frames {
		var entries []json.RawMessage
		if err := json.Unmarshal(frame, &entries); err != nil {
			continue
		}
		// A frame may itself be a list of entries, or a single entry.
		if looksLikeEntry(entries) {
			entries = []json.RawMessage{frame}
		}
		for _, raw := range entries {
			var entry []json.RawMessage
			if err := json.Unmarshal(raw, &entry); err != nil || len(entry) < 3 {
				continue
			}
			var tag, id string
			if json.Unmarshal(entry[0], &tag) != nil || tag != "wrb.fr" {
				continue
			}
			if json.Unmarshal(entry[1], &id) != nil || id != procID {
				continue
			}
			var inner string
			if err := json.Unmarshal(entry[2], &inner); err != nil {
				return nil, domain.Errorf(domain.RpcDecodeError, "%s answered with a non-string payload", procID)
			}
			if inner == "" || inner == "null" {
				return nil, domain.Errorf(domain.RpcDecodeError, "%s answered with an empty payload", procID)
			}
			return json.RawMessage(inner), nil
		}
	}
	return nil, domain.Errorf(domain.RpcDecodeError, "no response entry for %s in %d frame(s)", procID, len(frames))
}

// looksLikeEntry reports whether the elements start with the "wrb.fr" tag,
// meaning the frame is one entry rather than a list of them.
func looksLikeEntry(elems []json.RawMessage) bool {
	if len(elems) == 0 {
		return false
	}
	var tag string
	return json.Unmarshal(elems[0], &tag) == nil && tag == "wrb.fr"
}
