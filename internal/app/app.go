// Package app wires configuration into the launcher and evaluator handlers.
// The launcher and evaluator binaries and mlopsctl all build their handlers here.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/animus-labs/animus-mlops/internal/platform/auditlog"
	"github.com/animus-labs/animus-mlops/internal/platform/auth"
	"github.com/animus-labs/animus-mlops/internal/platform/env"
	"github.com/animus-labs/animus-mlops/internal/platform/httpserver"
	"github.com/animus-labs/animus-mlops/internal/platform/postgres"
)

const (
	ModeLambda = "lambda"
	ModeHTTP   = "http"
)

// ModeFromEnv reads the run mode from key. Without an explicit value the mode
// is lambda inside the Lambda runtime and http elsewhere.
func ModeFromEnv(key string) (string, error) {
	def := ModeHTTP
	if env.String("AWS_LAMBDA_RUNTIME_API", "") != "" {
		def = ModeLambda
	}
	mode := strings.ToLower(strings.TrimSpace(env.String(key, def)))
	switch mode {
	case ModeLambda, ModeHTTP:
		return mode, nil
	default:
		return "", fmt.Errorf("%s must be lambda or http (got %q)", key, mode)
	}
}

// HTTPConfig holds the settings used only in http mode.
type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	WriteTimeout    time.Duration
	Auth            auth.Config
}

func httpConfigFromEnv(prefix, defAddr string, defWrite time.Duration) (HTTPConfig, error) {
	shutdownTimeout, err := env.Duration(prefix+"_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return HTTPConfig{}, err
	}
	writeTimeout, err := env.Duration(prefix+"_WRITE_TIMEOUT", defWrite)
	if err != nil {
		return HTTPConfig{}, err
	}
	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		return HTTPConfig{}, err
	}
	return HTTPConfig{
		Addr:            env.String(prefix+"_HTTP_ADDR", defAddr),
		ShutdownTimeout: shutdownTimeout,
		WriteTimeout:    writeTimeout,
		Auth:            authCfg,
	}, nil
}

// Authenticator builds the bearer authenticator for http mode.
func (c HTTPConfig) Authenticator(ctx context.Context) (auth.Authenticator, error) {
	if c.Auth.Mode == auth.ModeDisabled {
		return auth.AllowAll{}, nil
	}
	return auth.NewOIDCAuthenticator(ctx, c.Auth)
}

// openLedger opens the audit ledger. A configured database wins; otherwise
// events go to the NDJSON export destination, or are discarded.
func openLedger(ctx context.Context, logger *slog.Logger, cfg postgres.Config, export auditlog.ExportConfig, service string) (*auditlog.Ledger, *sql.DB, error) {
	if !cfg.Enabled() {
		switch export.Destination {
		case auditlog.ExportStdout:
			return auditlog.NewExportLedger(os.Stdout, service), nil, nil
		case auditlog.ExportStderr:
			return auditlog.NewExportLedger(os.Stderr, service), nil, nil
		}
		logger.Info("audit ledger disabled", "reason", "DATABASE_URL not set")
		return nil, nil, nil
	}
	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("audit database: %w", err)
	}
	schemaCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := auditlog.EnsureSchema(schemaCtx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return auditlog.NewLedger(db, service), db, nil
}

func dbCheck(db *sql.DB) httpserver.ReadinessCheck {
	return httpserver.ReadinessCheck{
		Name: "postgres",
		Check: func(ctx context.Context) error {
			checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return db.PingContext(checkCtx)
		},
	}
}
