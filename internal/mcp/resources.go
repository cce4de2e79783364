package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const statsURI = "keygate://stats"

// registerResources adds MCP resource definitions to the server.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			statsURI,
			"Credential Store Statistics",
			mcp.WithResourceDescription("Number of admins and of users holding an API key."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleStatsResource,
	)
}

func (s *MCPServer) handleStatsResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	admins, err := s.stats.CountAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count admins: %w", err)
	}
	users, err := s.stats.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	b, err := json.MarshalIndent(map[string]int{"admins": admins, "users": users}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stats: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      statsURI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
