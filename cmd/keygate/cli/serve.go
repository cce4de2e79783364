package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keygate/keygate/internal/metrics"
	"github.com/keygate/keygate/internal/server"
	"github.com/keygate/keygate/internal/service"
)

const banner = `
 _               ___      _
| |_____ _  _   / __|__ _| |_ ___
| / / -_) || | | (_ / _' |  _/ -_)
|_\_\___|\_, |  \___\__,_|\__\___|
         |__/
`

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the keygate API server",
		Long:  "Start the HTTP server that handles admin registration, login, the key dashboard and API key generation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().IntP("port", "p", 3000, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().String("static-dir", "", "Directory of static frontend files served at /")

	v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	v.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	v.BindPFlag("server.static_dir", cmd.Flags().Lookup("static-dir"))

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stderr)

	sessions, err := service.NewSessionIssuer(cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("auth.jwt_secret must be set (KEYGATE_AUTH_JWT_SECRET or JWT_SECRET): %w", err)
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init credential store: %w", err)
	}
	defer st.Close()
	logger.Info("credential store ready", "dialect", st.Dialect())

	m := metrics.New()
	opts := serviceOptions(cfg, logger, m)
	authSvc := service.NewAuthService(st, service.NewBcryptHasher(cfg.Auth.BcryptCost), sessions, opts...)
	keySvc := service.NewKeyService(st, nil, opts...)

	admins, err := st.CountAdmins(ctx)
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if admins == 0 {
		logger.Warn("no admin account found - POST /api/admin/register or run: keygate admin create")
	}
	if !cfg.Keys.PersistPlaintext {
		logger.Info("api key plaintext persistence disabled; dashboard values will be empty")
	}

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownDuration(),
		CORSOrigins:     cfg.Server.CORS.Origins,
		StaticDir:       cfg.Server.StaticDir,
	}, server.Deps{
		Store:   st,
		Auth:    authSvc,
		Keys:    keySvc,
		Metrics: m,
		Logger:  logger,
		Version: versionString(),
	})

	out := cmd.OutOrStdout()
	fmt.Fprint(out, banner)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "→ keygate %s\n", versionString())
	fmt.Fprintf(out, "→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(out, "→ OpenAPI:    http://%s:%d/openapi.json\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(out, "→ Health:     http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintln(out)

	return srv.ListenAndServe()
}
