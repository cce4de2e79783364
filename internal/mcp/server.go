package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/keygate/keygate/internal/service"
)

// Stats reports aggregate counts for the keygate://stats resource.
type Stats interface {
	CountAdmins(ctx context.Context) (int, error)
	CountUsers(ctx context.Context) (int, error)
}

// MCPServer exposes key issuance and the key dashboard as MCP tools for
// local operator tooling. It runs with the same trust as the CLI.
type MCPServer struct {
	keys   *service.KeyService
	stats  Stats
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer with all keygate tools and resources
// registered. The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(keys *service.KeyService, stats Stats, version string, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		keys:   keys,
		stats:  stats,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"keygate",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode on addr.
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(false),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
