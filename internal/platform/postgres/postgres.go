// Package postgres opens the audit ledger database through the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/animus-labs/animus-mlops/internal/platform/env"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type Config struct {
	URL             string
	PingTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ConfigFromEnv reads DATABASE_URL and the DATABASE_* pool settings. Every
// malformed variable is reported, not just the first.
func ConfigFromEnv() (Config, error) {
	cfg := Config{URL: strings.TrimSpace(env.String("DATABASE_URL", ""))}

	var errs []error
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"DATABASE_PING_TIMEOUT", 2 * time.Second, &cfg.PingTimeout},
		{"DATABASE_CONN_MAX_LIFETIME", 30 * time.Minute, &cfg.ConnMaxLifetime},
		{"DATABASE_CONN_MAX_IDLE_TIME", 5 * time.Minute, &cfg.ConnMaxIdleTime},
	}
	for _, d := range durations {
		v, err := env.Duration(d.key, d.def)
		errs = append(errs, err)
		*d.dst = v
	}
	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"DATABASE_MAX_OPEN_CONNS", 10, &cfg.MaxOpenConns},
		{"DATABASE_MAX_IDLE_CONNS", 5, &cfg.MaxIdleConns},
	}
	for _, n := range ints {
		v, err := env.Int(n.key, n.def)
		errs = append(errs, err)
		*n.dst = v
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Enabled reports whether a database is configured. The audit ledger is
// optional; handlers run without it when DATABASE_URL is unset.
func (c Config) Enabled() bool {
	return c.URL != ""
}

func (c Config) Validate() error {
	var errs []error
	if c.PingTimeout <= 0 {
		errs = append(errs, errors.New("DATABASE_PING_TIMEOUT must be positive"))
	}
	if c.MaxOpenConns < 1 {
		errs = append(errs, errors.New("DATABASE_MAX_OPEN_CONNS must be >= 1"))
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		errs = append(errs, errors.New("DATABASE_MAX_IDLE_CONNS must be between 0 and DATABASE_MAX_OPEN_CONNS"))
	}
	if c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0 {
		errs = append(errs, errors.New("DATABASE_CONN_MAX_LIFETIME and DATABASE_CONN_MAX_IDLE_TIME must be >= 0"))
	}
	return errors.Join(errs...)
}

// Open connects, applies the pool settings and pings once within PingTimeout.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if !cfg.Enabled() {
		return nil, errors.New("DATABASE_URL is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	return db, nil
}
