package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can branch without string matching.
type ErrorKind string

const (
	// SessionNotFound: the browser cookie store had no usable Google session.
	SessionNotFound ErrorKind = "session_not_found"
	// IncompleteSession: a session exists but required cookies are missing.
	IncompleteSession ErrorKind = "incomplete_session"
	// SessionStoreLocked: the cookie store could not be opened because the
	// browser holds it.
	SessionStoreLocked ErrorKind = "session_store_locked"
	// AntiForgeryFetchFailed: the anti-forgery token could not be obtained.
	AntiForgeryFetchFailed ErrorKind = "anti_forgery_fetch_failed"
	// RpcTransportError: network-level failure (timeout, refused, 5xx).
	RpcTransportError ErrorKind = "rpc_transport_error"
	// RpcAuthError: the remote rejected our credentials.
	RpcAuthError ErrorKind = "rpc_auth_error"
	// RpcDecodeError: the response bytes did not match the expected framing
	// or any known payload shape.
	RpcDecodeError ErrorKind = "rpc_decode_error"
	// EmptyResult: the call decoded fine but produced zero rows.
	EmptyResult ErrorKind = "empty_result"
)

// defaultHints carries the operator-facing remediation for each kind, distinct
// from the internal message.
var defaultHints = map[ErrorKind]string{
	SessionNotFound:        "Log in to Google in your browser, open it at least once, then retry.",
	IncompleteSession:      "The browser session is partial. Log out and back in to Google, then retry.",
	SessionStoreLocked:     "The cookie store appears locked. Close the browser completely and retry.",
	AntiForgeryFetchFailed: "The service did not hand out a request token. Retry; if it persists, log in to the browser again.",
	RpcTransportError:      "Network problem reaching the service. Check connectivity and retry.",
	RpcAuthError:           "The session was rejected. Log in to Google in your browser and retry.",
	RpcDecodeError:         "The service answered in an unrecognized format. Retry; if it persists the upstream format may have changed.",
	EmptyResult:            "No data for this site and date range. Note the service reports with a few days of lag.",
}

// Error is the typed error used across the session and RPC layers.
type Error struct {
	Kind  ErrorKind
	Hint  string
	msg   string
	cause error
}

// Errorf builds a typed error with the default hint for its kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Hint: defaultHints[kind], msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind (and its default hint) to an underlying error.
func Wrap(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Hint: defaultHints[kind], msg: msg, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports kind equality, so errors.Is(err, domain.Errorf(kind, "")) and
// sentinel comparisons both work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the ErrorKind from err, or "" when err is untyped.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HintOf extracts the remediation hint from err, or "" when err is untyped.
func HintOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Hint
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
