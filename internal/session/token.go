package session

import (
	"crypto/sha1"
	"fmt"
	"sort"
	"strings"

	"searchlens/internal/domain"
)

// secretPreference is the order in which cookies are tried as the hash secret.
// The first-party value wins; the partitioned variants are fallbacks for
// profiles where third-party cookie phaseout renamed it.
var secretPreference = []string{"SAPISID", "__Secure-3PAPISID", "__Secure-1PAPISID"}

// SessionSecret picks the cookie value used to derive the auth token.
func SessionSecret(cookies map[string]domain.CookieRecord) (string, error) {
	for _, name := range secretPreference {
		if c, ok := cookies[name]; ok && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", domain.Errorf(domain.IncompleteSession, "no hash-secret cookie present (tried %s)", strings.Join(secretPreference, ", "))
}

// AuthToken computes the time-salted hash header value:
// SHA1("<unix-seconds> <secret> <origin>") rendered as
// "SAPISIDHASH <unix-seconds>_<hex-digest>". Tokens generated within the same
// second for the same inputs are identical.
func AuthToken(secret string, unixSeconds int64, origin string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d %s %s", unixSeconds, secret, origin)))
	return fmt.Sprintf("SAPISIDHASH %d_%x", unixSeconds, sum)
}

// CookieHeader renders the forwarded cookies as a Cookie header value. Only
// names the service is known to check are included, in a deterministic order
// so requests are reproducible.
func CookieHeader(cookies map[string]domain.CookieRecord) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		if knownCookies[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+cookies[name].Value)
	}
	return strings.Join(pairs, "; ")
}
