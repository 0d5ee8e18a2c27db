package domain

import "context"

// Tool is the interface for named operations exposed to the agent
// (search analytics queries, site listings, session refresh).
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}
