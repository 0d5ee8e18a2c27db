package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"searchlens/internal/domain"
)

// CookieReader is the source a Provider refreshes from.
type CookieReader interface {
	Read(ctx context.Context) (map[string]domain.CookieRecord, error)
}

// RefreshRecorder observes refresh attempts. A nil recorder disables it.
type RefreshRecorder interface {
	CacheRefresh(ok bool)
}

type cacheState int

const (
	stateEmpty cacheState = iota
	stateCached
	stateInvalid
)

// Provider caches session cookies with a TTL and refreshes them on demand.
// Concurrent callers hitting an expired cache trigger exactly one underlying
// read. A failed refresh marks the cache invalid; the failure is then returned
// to every caller until Refresh is called explicitly, so a broken browser
// session does not cause a read storm.
type Provider struct {
	reader   CookieReader
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
	recorder RefreshRecorder

	mu        sync.Mutex
	state     cacheState
	cookies   map[string]domain.CookieRecord
	fetchedAt time.Time
	lastErr   error
}

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	Reader   CookieReader
	TTL      time.Duration // default 5 minutes
	Logger   *slog.Logger
	Recorder RefreshRecorder
	Now      func() time.Time // test hook
}

func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Provider{
		reader:   cfg.Reader,
		ttl:      cfg.TTL,
		now:      cfg.Now,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}
}

// Cookies returns the cached session, refreshing it first when empty or
// expired. The lock is held across the refresh so concurrent callers wait for
// one read instead of each issuing their own.
func (p *Provider) Cookies(ctx context.Context) (map[string]domain.CookieRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateInvalid:
		return nil, p.lastErr
	case stateCached:
		if p.now().Sub(p.fetchedAt) < p.ttl {
			return p.cookies, nil
		}
	}
	return p.refreshLocked(ctx)
}

// Refresh discards the cache, including a sticky failure, and reads again.
func (p *Provider) Refresh(ctx context.Context) (map[string]domain.CookieRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = stateEmpty
	p.lastErr = nil
	return p.refreshLocked(ctx)
}

func (p *Provider) refreshLocked(ctx context.Context) (map[string]domain.CookieRecord, error) {
	cookies, err := p.reader.Read(ctx)
	if p.recorder != nil {
		p.recorder.CacheRefresh(err == nil)
	}
	if err != nil {
		p.state = stateInvalid
		p.lastErr = err
		p.cookies = nil
		p.logger.Warn("session refresh failed", "err", err)
		return nil, err
	}
	p.state = stateCached
	p.cookies = cookies
	p.fetchedAt = p.now()
	p.lastErr = nil
	p.logger.Debug("session refreshed", "cookies", len(cookies))
	return cookies, nil
}

// Age reports how long ago the session was read, and false when nothing is
// cached.
func (p *Provider) Age() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != stateCached {
		return 0, false
	}
	return p.now().Sub(p.fetchedAt), true
}
