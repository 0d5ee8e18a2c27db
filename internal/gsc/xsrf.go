package gsc

import (
	"regexp"
	"sync"
	"time"
)

// tokenPattern locates the anti-forgery token the frontend embeds in pages
// and error bodies.
var tokenPattern = regexp.MustCompile(`"SNlM0e":"([^"]+)"`)

// extractToken pulls the anti-forgery token out of a response body, returning
// "" when absent.
func extractToken(body []byte) string {
	m := tokenPattern.FindSubmatch(body)
	if m == nil {
		return ""
	}
	return string(m[1])
}

// tokenCache holds the negotiated anti-forgery token with a TTL. Tokens stay
// valid server-side much longer than the TTL; expiring early just bounds how
// stale a token we will present.
type tokenCache struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	token     string
	fetchedAt time.Time
}

func newTokenCache(ttl time.Duration, now func() time.Time) *tokenCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &tokenCache{ttl: ttl, now: now}
}

// getOrRefresh returns the cached token while fresh; otherwise it invokes
// refresh and caches the result. The lock is held across refresh, so
// concurrent callers racing on an empty or expired cache wait for the one
// negotiation in flight instead of issuing their own. A failed refresh caches
// nothing; the next caller tries again.
func (c *tokenCache) getOrRefresh(refresh func() (string, error)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.token, nil
	}
	token, err := refresh()
	if err != nil {
		return "", err
	}
	c.token = token
	c.fetchedAt = c.now()
	return token, nil
}

// invalidate drops the token so the next call renegotiates.
func (c *tokenCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}
