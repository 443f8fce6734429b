// Package mcp serves the dispatcher's commands as MCP tools over stdio.
package mcp

import (
	"context"
	"io"

	"browsernerd/internal/dispatch"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Dispatcher is the command surface the tools call into.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args dispatch.Args) dispatch.Envelope
}

// Server wraps an MCP server with one tool per command.
type Server struct {
	mcp *server.MCPServer
	log *zap.Logger
}

// NewServer registers every tool against d.
func NewServer(name, version string, d Dispatcher, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)
	for _, t := range Tools() {
		s.AddTool(t, Handler(t.Name, d))
	}
	log.Debug("registered tools", zap.Int("count", len(Tools())))
	return &Server{mcp: s, log: log}
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Handler adapts one dispatcher command to an MCP tool handler. Failures are
// tool results with IsError set, never protocol errors.
func Handler(name string, d Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env := d.Dispatch(ctx, name, dispatch.Args(req.GetArguments()))
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: env.Text,
				},
			},
			IsError: env.IsError,
		}, nil
	}
}

// ServeStdio speaks MCP on in/out until ctx is cancelled or in reaches EOF.
// It returns nil when the client closes the stream.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.log))
	s.log.Info("serving MCP over stdio")
	err := stdio.Listen(ctx, in, out)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
