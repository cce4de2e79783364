package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/keygate/keygate/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin users",
		Long:  "Create and list the administrators who can sign in and view the key dashboard.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())

	return cmd
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin user",
		Example: `  keygate admin create --email admin@example.com --password secret
  keygate admin create --email admin@example.com  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(cmd, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runAdminCreate(cmd *cobra.Command, email, password string) error {
	out := cmd.OutOrStdout()

	if password == "" {
		var err error
		password, err = promptPassword(out)
		if err != nil {
			return err
		}
	}

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

	authSvc := service.NewAuthService(st, service.NewBcryptHasher(cfg.Auth.BcryptCost), nil,
		serviceOptions(cfg, logger, nil)...)

	id, err := authSvc.Register(cmd.Context(), email, password)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrConflict):
		return fmt.Errorf("admin %q already exists", email)
	case errors.Is(err, service.ErrInvalidInput):
		return fmt.Errorf("email and password are required")
	default:
		return fmt.Errorf("create admin: %w", err)
	}

	fmt.Fprintf(out, "Created admin %q (id %d)\n", strings.ToLower(strings.TrimSpace(email)), id)
	return nil
}

func promptPassword(out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--password is required when stdin is not a terminal")
	}

	fmt.Fprint(out, "Password: ")
	pwBytes, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(out)

	fmt.Fprint(out, "Confirm password: ")
	confirmBytes, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Fprintln(out)

	if string(pwBytes) != string(confirmBytes) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pwBytes), nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all admin users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminList(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminList(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("init credential store: %w", err)
	}
	defer st.Close()

	admins, err := st.ListAdmins(cmd.Context())
	if err != nil {
		return err
	}

	type adminRow struct {
		ID        int64  `json:"admin_id"`
		Email     string `json:"email"`
		CreatedAt string `json:"created_at"`
	}
	rows := make([]adminRow, 0, len(admins))
	for _, a := range admins {
		rows = append(rows, adminRow{ID: a.ID, Email: a.Email, CreatedAt: a.CreatedAt.UTC().Format("2006-01-02 15:04")})
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No admin users configured. Use 'keygate admin create' to create one.")
		return nil
	}

	fmt.Fprintf(out, "%-8s %-36s %-16s\n", "ID", "EMAIL", "CREATED")
	fmt.Fprintf(out, "%-8s %-36s %-16s\n", "--", "-----", "-------")
	for _, r := range rows {
		fmt.Fprintf(out, "%-8d %-36s %-16s\n", r.ID, r.Email, r.CreatedAt)
	}
	return nil
}
