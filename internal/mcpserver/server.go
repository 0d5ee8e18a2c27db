// Package mcpserver exposes the registered tools over the Model Context
// Protocol on stdio. Logging must go to stderr only; stdout belongs to the
// protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"searchlens/internal/domain"
	"searchlens/internal/tool"
)

const serverName = "searchlens"

// Server bridges the tool registry to an MCP session.
type Server struct {
	registry *tool.Registry
	logger   *slog.Logger
	version  string
}

// Config configures a Server.
type Config struct {
	Registry *tool.Registry
	Logger   *slog.Logger
	Version  string
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Server{registry: cfg.Registry, logger: cfg.Logger, version: cfg.Version}
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: s.version}, nil)
	for _, t := range s.registry.List() {
		srv.AddTool(describe(t), s.handler(t.Name()))
	}
	s.logger.Info("mcp server starting", "name", serverName, "version", s.version, "tools", len(s.registry.List()))
	return srv.Run(ctx, &mcp.StdioTransport{})
}

// describe renders a registry tool for the protocol. The tool's own parameter
// schema is the single source of truth for its input.
func describe(t domain.Tool) *mcp.Tool {
	return &mcp.Tool{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.Parameters(),
	}
}

func (s *Server) handler(name string) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.execute(ctx, name, req.Params.Arguments)
	}
}

// execute dispatches one call to the registry. Tool failures become IsError
// results rather than protocol errors, so the agent sees the message.
func (s *Server) execute(ctx context.Context, name string, raw json.RawMessage) (*mcp.CallToolResult, error) {
	args := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return errorResult(fmt.Errorf("decode arguments: %w", err)), nil
		}
	}
	result, err := s.registry.Execute(ctx, name, args)
	if err != nil {
		return errorResult(err), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: result}},
	}, nil
}

// errorResult renders a failure as tool output, with the remediation hint
// when the error carries one, so the agent can relay it instead of retrying
// blindly.
func errorResult(err error) *mcp.CallToolResult {
	text := err.Error()
	if hint := domain.HintOf(err); hint != "" {
		text = fmt.Sprintf("%s\n\nHint: %s", text, hint)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
