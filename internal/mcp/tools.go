package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/keygate/keygate/internal/service"
)

// registerTools registers the keygate MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("keygate_list_user_keys",
			mcp.WithDescription(
				"List every user with their API key status and expiry, newest user first. "+
					"Key values are masked.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListUserKeys,
	)

	srv.AddTool(
		mcp.NewTool("keygate_issue_api_key",
			mcp.WithDescription(
				"Register a new user and issue them an API key valid for one year. "+
					"The key is returned once and cannot be retrieved later.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("first_name",
				mcp.Required(),
				mcp.Description("User's first name"),
			),
			mcp.WithString("last_name",
				mcp.Description("User's last name"),
			),
			mcp.WithString("email",
				mcp.Required(),
				mcp.Description("User's email address; must not already be registered"),
			),
		),
		s.handleIssueAPIKey,
	)
}

func (s *MCPServer) handleListUserKeys(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	rows, err := s.keys.FetchDashboard(ctx)
	if err != nil {
		return toolError("Failed to list user keys")
	}
	return successJSON(map[string]interface{}{
		"count": len(rows),
		"users": rows,
	})
}

func (s *MCPServer) handleIssueAPIKey(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	firstName, err := requireString(request, "first_name")
	if err != nil {
		return toolError("%v", err)
	}
	email, err := requireString(request, "email")
	if err != nil {
		return toolError("%v", err)
	}

	issued, err := s.keys.IssueForNewUser(ctx, service.IssueKeyRequest{
		FirstName: firstName,
		LastName:  optionalString(request, "last_name"),
		Email:     email,
	})
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidInput):
		return toolError("first_name and email are required")
	case errors.Is(err, service.ErrConflict):
		return toolError("Email %q is already registered", email)
	default:
		return toolError("Failed to issue API key")
	}

	return successJSON(map[string]interface{}{
		"user_id":     issued.UserID,
		"api_key":     issued.APIKey,
		"expiry_date": issued.ExpiresAt.Format(time.RFC3339),
	})
}
