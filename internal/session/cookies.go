package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"searchlens/internal/domain"

	_ "modernc.org/sqlite"
)

// Cookie names required for the hashed-session auth scheme. The primary
// session id plus its derived duplicates must all be present.
var requiredCookies = []string{"SID", "HSID", "SSID", "APISID", "SAPISID"}

// Extra names forwarded when present (the service checks several of them).
var knownCookies = map[string]bool{
	"SID": true, "HSID": true, "SSID": true, "APISID": true, "SAPISID": true,
	"OSID": true, "NID": true,
	"__Secure-1PAPISID": true, "__Secure-3PAPISID": true,
	"__Secure-1PSID": true, "__Secure-3PSID": true,
}

// fallbackBrowsers is the probe order when no browser is configured.
var fallbackBrowsers = []string{"chrome", "chromium", "brave", "edge"}

// StoreReader reads Google session cookies from a Chromium-family cookie
// store on disk. It never writes, never locks, and never retries on its own.
type StoreReader struct {
	browser      string // explicit override; empty means fallback order
	profile      string // profile directory name, default "Default"
	path         string // explicit store path; overrides browser discovery
	domainSuffix string
	logger       *slog.Logger
}

// StoreConfig configures a StoreReader.
type StoreConfig struct {
	Browser      string // "chrome", "chromium", "brave", "edge"; empty = fallback order
	Profile      string // browser profile, default "Default"
	Path         string // direct path to a Cookies database (wins over Browser)
	DomainSuffix string // default "google.com"
	Logger       *slog.Logger
}

func NewStoreReader(cfg StoreConfig) *StoreReader {
	if cfg.Profile == "" {
		cfg.Profile = "Default"
	}
	if cfg.DomainSuffix == "" {
		cfg.DomainSuffix = "google.com"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &StoreReader{
		browser:      cfg.Browser,
		profile:      cfg.Profile,
		path:         cfg.Path,
		domainSuffix: cfg.DomainSuffix,
		logger:       cfg.Logger,
	}
}

// Read extracts the session cookies. It tries the configured browser, or the
// fallback order when none is configured, stopping at the first store that
// yields a complete session. An explicit path or browser override bypasses
// the fallback entirely.
func (r *StoreReader) Read(ctx context.Context) (map[string]domain.CookieRecord, error) {
	if r.path != "" {
		return r.readStore(ctx, r.path, r.browser)
	}
	browsers := fallbackBrowsers
	if r.browser != "" {
		browsers = []string{r.browser}
	}

	var lastErr error
	for _, b := range browsers {
		path, ok := cookieStorePath(b, r.profile)
		if !ok {
			continue
		}
		cookies, err := r.readStore(ctx, path, b)
		if err == nil {
			return cookies, nil
		}
		lastErr = err
		r.logger.Debug("cookie store unusable", "browser", b, "path", path, "err", err)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, domain.Errorf(domain.SessionNotFound, "no browser cookie store found (tried %s)", strings.Join(browsers, ", "))
}

func (r *StoreReader) readStore(ctx context.Context, path, browser string) (map[string]domain.CookieRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, domain.Wrap(domain.SessionNotFound, fmt.Sprintf("cookie store %s not readable", path), err)
	}

	// Read-only, immutable: we must never write, and must not take locks the
	// browser would contend on.
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, classifyStoreErr(path, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx,
		`SELECT name, value, encrypted_value, host_key, path, is_secure, is_httponly, samesite, expires_utc
		 FROM cookies WHERE host_key = ? OR host_key LIKE ?`,
		r.domainSuffix, "%."+r.domainSuffix,
	)
	if err != nil {
		return nil, classifyStoreErr(path, err)
	}
	defer rows.Close()

	key, keyErr := storeKey(browser)

	out := make(map[string]domain.CookieRecord)
	for rows.Next() {
		var (
			name, value, hostKey, cookiePath string
			encrypted                        []byte
			secure, httpOnly, sameSite       int
			expiresUTC                       int64
		)
		if err := rows.Scan(&name, &value, &encrypted, &hostKey, &cookiePath, &secure, &httpOnly, &sameSite, &expiresUTC); err != nil {
			return nil, classifyStoreErr(path, err)
		}
		if value == "" && len(encrypted) > 0 {
			if keyErr != nil {
				return nil, domain.Wrap(domain.SessionNotFound, "cookie values are encrypted and no store key is available", keyErr)
			}
			plain, err := decryptValue(encrypted, key, hostKey)
			if err != nil {
				r.logger.Debug("cookie decrypt failed, skipping", "name", name, "err", err)
				continue
			}
			value = plain
		}
		if name == "" || value == "" {
			continue
		}
		out[name] = domain.CookieRecord{
			Name:      name,
			Value:     value,
			Domain:    hostKey,
			Path:      cookiePath,
			Secure:    secure != 0,
			HTTPOnly:  httpOnly != 0,
			SameSite:  sameSiteName(sameSite),
			ExpiresAt: chromeTime(expiresUTC),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreErr(path, err)
	}

	if len(out) == 0 {
		return nil, domain.Errorf(domain.SessionNotFound, "no %s cookies in %s", r.domainSuffix, path)
	}
	var missing []string
	for _, name := range requiredCookies {
		if _, ok := out[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, domain.Errorf(domain.IncompleteSession, "session cookies missing: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// classifyStoreErr maps driver errors onto the typed taxonomy, surfacing the
// raw reason so the caller can act on it.
func classifyStoreErr(path string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "locked") || strings.Contains(msg, "busy") {
		return domain.Wrap(domain.SessionStoreLocked, fmt.Sprintf("cookie store %s is locked", path), err)
	}
	if strings.Contains(msg, "permission") || strings.Contains(msg, "access") {
		return domain.Wrap(domain.SessionNotFound, fmt.Sprintf("permission denied reading %s", path), err)
	}
	return domain.Wrap(domain.SessionNotFound, fmt.Sprintf("cannot read cookie store %s", path), err)
}

// cookieStorePath returns the on-disk Cookies database location for a browser
// and profile on the current OS, and whether the file exists.
func cookieStorePath(browser, profile string) (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	var roots []string
	switch runtime.GOOS {
	case "darwin":
		base := filepath.Join(home, "Library", "Application Support")
		roots = []string{
			filepath.Join(base, browserDirDarwin(browser), profile, "Cookies"),
		}
	default: // linux and friends
		base := filepath.Join(home, ".config")
		dir := browserDirLinux(browser)
		roots = []string{
			filepath.Join(base, dir, profile, "Cookies"),
			// Newer Chromium moved the DB under a Network subdirectory.
			filepath.Join(base, dir, profile, "Network", "Cookies"),
		}
	}
	for _, p := range roots {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func browserDirLinux(browser string) string {
	switch browser {
	case "chromium":
		return "chromium"
	case "brave":
		return filepath.Join("BraveSoftware", "Brave-Browser")
	case "edge":
		return "microsoft-edge"
	default:
		return "google-chrome"
	}
}

func browserDirDarwin(browser string) string {
	switch browser {
	case "chromium":
		return "Chromium"
	case "brave":
		return filepath.Join("BraveSoftware", "Brave-Browser")
	case "edge":
		return "Microsoft Edge"
	default:
		return filepath.Join("Google", "Chrome")
	}
}

func sameSiteName(v int) string {
	switch v {
	case 1:
		return "lax"
	case 2:
		return "strict"
	default:
		return "none"
	}
}

// chromeTime converts the store's microseconds-since-1601 epoch.
func chromeTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	const epochDelta = 11644473600 // seconds between 1601-01-01 and 1970-01-01
	return time.Unix(v/1e6-epochDelta, (v%1e6)*1000).UTC()
}
