package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"searchlens/internal/domain"
)

// Metrics receives per-execution observations. A nil Metrics disables them.
type Metrics interface {
	ToolExecuted(name string, d time.Duration, failed bool)
}

// Registry holds the registered tools and dispatches executions. Safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]domain.Tool
	logger  *slog.Logger
	metrics Metrics
}

func NewRegistry(logger *slog.Logger, metrics Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:   make(map[string]domain.Tool),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds a tool. Registering a duplicate name is a programming error.
func (r *Registry) Register(t domain.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.logger.Debug("tool registered", "name", name)
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (domain.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools sorted by name.
func (r *Registry) List() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Execute runs a named tool, logging the execution under a correlation id.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	execID := uuid.NewString()
	logger := r.logger.With("tool", name, "exec_id", execID)
	logger.Info("tool execution started")

	start := time.Now()
	result, err := t.Execute(ctx, args)
	elapsed := time.Since(start)

	if r.metrics != nil {
		r.metrics.ToolExecuted(name, elapsed, err != nil)
	}
	if err != nil {
		logger.Warn("tool execution failed", "elapsed", elapsed, "err", err)
		return "", err
	}
	logger.Info("tool execution finished", "elapsed", elapsed, "result_bytes", len(result))
	return result, nil
}
