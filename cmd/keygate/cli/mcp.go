package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	kmcp "github.com/keygate/keygate/internal/mcp"
	"github.com/keygate/keygate/internal/service"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for operator tooling",
		Long: `Start a Model Context Protocol (MCP) server that exposes key issuance and
the key dashboard as tools. Supports stdio (default) and HTTP transports.

The MCP server talks to the credential store directly and has the same
trust as this CLI. Do not expose the HTTP transport beyond localhost.`,
		Example: `  keygate mcp                              # stdio mode
  keygate mcp --transport http --port 3001  # Streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd)
		},
	}

	cmd.Flags().String("transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().Int("port", 3001, "HTTP port (only used with --transport http)")

	v.BindPFlag("mcp.transport", cmd.Flags().Lookup("transport"))
	v.BindPFlag("mcp.port", cmd.Flags().Lookup("port"))

	return cmd
}

func runMCP(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the stdio transport; logs go to stderr.
	logger := newLogger(cfg.Log, os.Stderr)

	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("init credential store: %w", err)
	}
	defer st.Close()

	keySvc := service.NewKeyService(st, nil, serviceOptions(cfg, logger, nil)...)
	mcpSrv := kmcp.NewMCPServer(keySvc, st, versionString(), logger)

	switch cfg.MCP.Transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		return mcpSrv.ServeHTTP(fmt.Sprintf("127.0.0.1:%d", cfg.MCP.Port))
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", cfg.MCP.Transport)
	}
}
