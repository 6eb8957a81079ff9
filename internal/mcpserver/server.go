// Package mcpserver exposes the tool registry over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fractalmind-ai/codeteam/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

const (
	serverName = "codeteam"
	// callerName is attached to audited invocations coming from MCP clients.
	callerName = "mcp"
)

// Server wraps an MCP server whose tools delegate to a registry.
type Server struct {
	mcp      *server.MCPServer
	registry *tools.Registry
	log      logrus.FieldLogger
}

// New registers every allowed tool of registry with a new MCP server.
func New(registry *tools.Registry, version string, logger logrus.FieldLogger) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Server{
		mcp: server.NewMCPServer(
			serverName,
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
			server.WithInstructions("Tools operate on files inside a single project root. Paths are relative to that root."),
		),
		registry: registry,
		log:      logger.WithField("component", "mcp"),
	}
	for _, tool := range registry.Tools() {
		s.mcp.AddTool(definition(tool), s.handler(tool.Name()))
	}
	return s, nil
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve speaks MCP over the given streams until ctx is cancelled or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}

func definition(tool tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(tool.Description())}
	for _, p := range tool.Parameters() {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}
		switch p.Type {
		case "boolean":
			if def, ok := p.Default.(bool); ok {
				props = append(props, mcp.DefaultBool(def))
			}
			opts = append(opts, mcp.WithBoolean(p.Name, props...))
		default:
			if def, ok := p.Default.(string); ok {
				props = append(props, mcp.DefaultString(def))
			}
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}
	return mcp.NewTool(tool.Name(), opts...)
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		res, err := s.registry.Execute(ctx, name, tools.Request{Args: args, Agent: callerName})
		if err != nil {
			s.log.WithField("tool", name).WithError(err).Warn("mcp tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		if res.Failed {
			return mcp.NewToolResultError(res.Text), nil
		}
		return mcp.NewToolResultText(res.Text), nil
	}
}
