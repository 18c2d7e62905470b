// Package postgres is the PostgreSQL adapter. A single *DB implements every
// storage port: bookings, payments, apartments, expenses, the analytics
// aggregate cache and the ledger snapshot used by refresh.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/boddenberg/hatacrm/internal/infra/observability"
	"github.com/boddenberg/hatacrm/internal/infra/resilience"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("infra/postgres")

// Config holds connection pool settings.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB wraps a *sql.DB connection pool.
type DB struct {
	db      *sql.DB
	metrics *observability.Metrics
	logger  *zap.Logger
}

// Open connects to PostgreSQL and pings it, retrying with backoff while the
// server comes up.
func Open(ctx context.Context, cfg Config, rc resilience.Config, metrics *observability.Metrics, logger *zap.Logger) (*DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	attempt := 0
	err = resilience.RetryWithBackoff(ctx, rc, func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			logger.Warn("database not reachable yet", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)
	return New(sqlDB, metrics, logger), nil
}

// New wraps an existing pool.
func New(sqlDB *sql.DB, metrics *observability.Metrics, logger *zap.Logger) *DB {
	return &DB{db: sqlDB, metrics: metrics, logger: logger}
}

// Ping implements port.Pinger.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
