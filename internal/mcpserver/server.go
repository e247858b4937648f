// Package mcpserver exposes the tool registry over the Model Context
// Protocol using mark3labs/mcp-go.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"billtool/internal/domain"
	"billtool/internal/tooling"
)

// Caller runs a tool by name. *dispatch.Dispatcher satisfies it.
type Caller interface {
	HandleToolCall(ctx context.Context, name string, client tooling.Client, args json.RawMessage) (domain.Response, error)
	Definitions() []domain.ToolDefinition
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Nil falls back to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithVersion sets the version reported in the initialize handshake.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// Server registers every tool the caller knows about on an MCP server.
type Server struct {
	caller  Caller
	client  tooling.Client
	logger  *slog.Logger
	version string
	mcp     *server.MCPServer
}

// New builds the MCP server. Tool schemas are passed through verbatim.
func New(caller Caller, client tooling.Client, opts ...Option) *Server {
	s := &Server{caller: caller, client: client, version: "dev"}
	for _, o := range opts {
		o(s)
	}
	s.mcp = server.NewMCPServer("billtool", s.version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, def := range caller.Definitions() {
		tool := mcp.NewToolWithRawSchema(def.Name, def.Description, def.InputSchema)
		s.mcp.AddTool(tool, s.handler(def.Name))
	}
	return s
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// MCP returns the underlying mcp-go server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// HandleMessage processes one JSON-RPC message and returns the reply.
func (s *Server) HandleMessage(ctx context.Context, raw json.RawMessage) mcp.JSONRPCMessage {
	return s.mcp.HandleMessage(ctx, raw)
}

// ServeStdio speaks MCP over in/out until ctx is done or in is closed.
// Nothing else may write to out.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.log().Handler(), slog.LevelError))
	s.log().Info("mcp server ready", "tools", len(s.caller.Definitions()), "version", s.version)
	return stdio.Listen(ctx, in, out)
}

// handler adapts one tool to mcp-go. A failed call returns the error, which
// mcp-go sends back as a JSON-RPC error.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := rawArguments(req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		resp, err := s.caller.HandleToolCall(ctx, name, s.client, args)
		if err != nil {
			return nil, err
		}
		return toResult(resp), nil
	}
}

func rawArguments(v any) (json.RawMessage, error) {
	switch a := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return a, nil
	}
	return json.Marshal(v)
}

func toResult(resp domain.Response) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(resp.Content))
	for _, b := range resp.Content {
		content = append(content, mcp.NewTextContent(b.Text))
	}
	return &mcp.CallToolResult{Content: content}
}
