package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/keygate/keygate/internal/service"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage user API keys",
		Long:  "Issue API keys to new users and list issued keys.",
	}

	cmd.AddCommand(newKeyGenerateCmd())
	cmd.AddCommand(newKeyListCmd())

	return cmd
}

// ---------- key generate ----------

func newKeyGenerateCmd() *cobra.Command {
	var req service.IssueKeyRequest

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Register a user and issue their API key",
		Long: `Register a new user and issue an API key valid for one year.

The key is printed exactly once. Only its SHA-256 digest is needed to
authenticate it later.`,
		Example: `  keygate key generate --first-name Ada --email ada@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyGenerate(cmd, req)
		},
	}

	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "User's first name (required)")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "User's last name")
	cmd.Flags().StringVar(&req.Email, "email", "", "User's email address (required)")
	cmd.MarkFlagRequired("first-name")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runKeyGenerate(cmd *cobra.Command, req service.IssueKeyRequest) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stderr)

	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("init credential store: %w", err)
	}
	defer st.Close()

	keySvc := service.NewKeyService(st, nil, serviceOptions(cfg, logger, nil)...)
	issued, err := keySvc.IssueForNewUser(cmd.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrConflict):
		return fmt.Errorf("email %q is already registered", req.Email)
	case errors.Is(err, service.ErrInvalidInput):
		return fmt.Errorf("first name and email are required")
	default:
		return fmt.Errorf("issue api key: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Issued API key for user %d\n\n", issued.UserID)
	fmt.Fprintf(out, "  API Key: %s\n", issued.APIKey)
	fmt.Fprintf(out, "  Expires: %s\n\n", issued.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintln(out, "Store this key securely. It will not be shown again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List users and their keys, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stderr)

	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("init credential store: %w", err)
	}
	defer st.Close()

	rows, err := service.NewKeyService(st, nil, serviceOptions(cfg, logger, nil)...).FetchDashboard(cmd.Context())
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No API keys issued. Use 'keygate key generate' to issue one.")
		return nil
	}

	fmt.Fprintf(out, "%-8s %-16s %-32s %-14s %-8s %-10s\n", "USER", "FIRST NAME", "EMAIL", "KEY", "STATUS", "EXPIRES")
	fmt.Fprintf(out, "%-8s %-16s %-32s %-14s %-8s %-10s\n", "----", "----------", "-----", "---", "------", "-------")
	for _, r := range rows {
		fmt.Fprintf(out, "%-8d %-16s %-32s %-14s %-8s %-10s\n",
			r.UserID, r.FirstName, r.Email, r.APIKeyValue, r.Status, r.ExpiryDate.UTC().Format("2006-01-02"))
	}
	return nil
}
