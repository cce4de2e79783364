package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check whether a keygate server is up and its store reachable",
		Long:  "Probe the readiness endpoint of a running keygate server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Server base URL (default from server.host and server.port)")

	return cmd
}

func runStatus(cmd *cobra.Command, addr string) error {
	if addr == "" {
		host := v.GetString("server.host")
		if host == "" || host == "0.0.0.0" {
			host = "127.0.0.1"
		}
		addr = fmt.Sprintf("http://%s:%d", host, v.GetInt("server.port"))
	}

	readyURL := addr + "/readyz"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, readyURL, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("server at %s is not responding: %w", addr, err)
	}
	resp.Body.Close()

	out := cmd.OutOrStdout()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(out, "Server is running but not ready\n")
		fmt.Fprintf(out, "  Ready:   %s (%d)\n", readyURL, resp.StatusCode)
		return fmt.Errorf("credential store unreachable")
	}

	fmt.Fprintf(out, "Server is running\n")
	fmt.Fprintf(out, "  Ready:   %s (%d)\n", readyURL, resp.StatusCode)
	return nil
}
