package cli

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/keygate/keygate/internal/config"
	"github.com/keygate/keygate/internal/service"
	"github.com/keygate/keygate/internal/store"
)

// loadConfig returns the effective configuration after initConfig ran.
func loadConfig() (*config.YAMLConfig, error) {
	return config.FromViper(v)
}

// newLogger builds the process logger from the log section. Unknown levels
// fall back to info.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStore connects to the configured credential store and migrates it.
func openStore(ctx context.Context, cfg *config.YAMLConfig) (*store.Store, error) {
	return store.Open(ctx, store.Options{
		Dialect:         cfg.Store.Dialect,
		DSN:             cfg.Store.DSN,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetimeDuration(),
		ConnectRetries:  cfg.Store.ConnectRetries,
	})
}

// serviceOptions translates configuration into service options. rec may be
// nil outside the HTTP server.
func serviceOptions(cfg *config.YAMLConfig, logger *slog.Logger, rec service.Recorder) []service.Option {
	return []service.Option{
		service.WithStoreTimeout(cfg.Store.TimeoutDuration()),
		service.WithLogger(logger),
		service.WithRecorder(rec),
		service.WithPersistPlaintext(cfg.Keys.PersistPlaintext),
	}
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
