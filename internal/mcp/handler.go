package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// requireString returns the named argument, rejecting absent and empty values
// alike so callers never see a blank first_name or email.
func requireString(request mcp.CallToolRequest, key string) (string, error) {
	if val, err := request.RequireString(key); err == nil && val != "" {
		return val, nil
	}
	return "", fmt.Errorf("missing required parameter %q", key)
}

func optionalString(request mcp.CallToolRequest, key string) string {
	return request.GetString(key, "")
}

// successJSON renders data as indented JSON text content.
func successJSON(data any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError reports a failed call in-band with IsError set. The error return
// stays nil; a non-nil one would surface as a JSON-RPC protocol error.
func toolError(format string, args ...any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}
