package tool

import (
	"context"
	"time"

	"searchlens/internal/domain"
)

// SessionControl is the slice of the session provider the refresh tool needs.
type SessionControl interface {
	Refresh(ctx context.Context) (map[string]domain.CookieRecord, error)
	Age() (time.Duration, bool)
}

// NewSessionTool builds the session refresh tool.
func NewSessionTool(sessions SessionControl) domain.Tool {
	return &refreshSessionTool{sessions: sessions}
}

type refreshSessionTool struct {
	sessions SessionControl
}

func (t *refreshSessionTool) Name() string { return "refresh_google_session" }
func (t *refreshSessionTool) Description() string {
	return "Discard the cached Google session and re-read cookies from the browser store. Use after logging in again."
}
func (t *refreshSessionTool) Parameters() map[string]any {
	return objectSchema(map[string]any{})
}
func (t *refreshSessionTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	cookies, err := t.sessions.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return toJSON(map[string]any{
		"status":  "refreshed",
		"cookies": len(cookies),
	})
}
