package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/dialogbot/core/logger"
)

const (
	driverName     = "postgres"
	connectTimeout = 5 * time.Second
	pingEvery      = 2 * time.Second
)

// Connect opens a pool for cfg within a five second budget.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return ConnectContext(ctx, cfg)
}

// ConnectContext opens the pool, pings the server and applies
// cfg.MaxConnections to both open and idle limits.
func ConnectContext(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN())
	attrs := []slog.Attr{
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
		slog.Duration("duration", logger.Took(start)),
		slog.String("status", logger.Status(err)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.Sanitize(err.Error())))
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect", attrs...)
		return nil, fmt.Errorf("connect %s@%s: %w", cfg.Name, cfg.Host, err)
	}
	if n := cfg.MaxConnections; n > 0 {
		db.SetMaxOpenConns(n)
		db.SetMaxIdleConns(n)
		attrs = append(attrs, slog.Int("pool_open", n))
	}
	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect", attrs...)
	return db, nil
}

// WaitForPostgres pings dsn every two seconds until the server answers.
// It gives up when ctx ends or timeout passes, whichever is first.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", driverName, err)
	}
	defer db.Close()

	tick := time.NewTicker(pingEvery)
	defer tick.Stop()
	attempt := 0
	for {
		attempt++
		pingErr := db.PingContext(ctx)
		if pingErr == nil {
			return nil
		}
		logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "db.wait",
			slog.Int("attempt", attempt),
			slog.String("err", logger.Sanitize(pingErr.Error())),
		)
		select {
		case <-tick.C:
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %d attempts: %w", attempt, pingErr)
		}
	}
}
