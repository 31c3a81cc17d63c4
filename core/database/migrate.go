package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/dialogbot/core/logger"
)

const readyTimeout = 30 * time.Second

// RunMigrations applies the up migrations found in cfg.MigrationsDir
// ("migrations" when empty).
func RunMigrations(cfg Config) error {
	return Migrate(context.Background(), cfg, os.DirFS(cfg.migrationsDir()))
}

// Migrate waits for the server and applies every pending up migration in
// the root of src.
func Migrate(ctx context.Context, cfg Config, src fs.FS) error {
	if err := WaitForPostgres(ctx, cfg.DSN(), readyTimeout); err != nil {
		migrateFailed(ctx, "ready", err)
		return fmt.Errorf("database not ready: %w", err)
	}

	files := upFiles(src)
	preview, cut := logger.SummarizeStrings(files, 6)
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "resolve",
		slog.Int("files_total", len(files)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", cut),
	)

	driver, err := iofs.New(src, ".")
	if err != nil {
		migrateFailed(ctx, "source", err)
		return fmt.Errorf("open migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", driver, cfg.URL())
	if err != nil {
		migrateFailed(ctx, "init", err)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.Took(start)
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		migrateFailed(ctx, "apply", upErr, slog.Duration("duration", took))
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	to, _, _ := m.Version()
	applied := appliedBetween(files, uint64(from), uint64(to))
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.String("payload", strings.Join(applied, ",")),
		slog.Duration("duration", took),
	)
	return nil
}

func migrateFailed(ctx context.Context, step string, err error, extra ...slog.Attr) {
	attrs := append([]slog.Attr{
		slog.String("status", "fail"),
		slog.String("op", step),
		slog.String("err", err.Error()),
	}, extra...)
	logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate", attrs...)
}

// upFiles lists the "*.up.sql" names in the root of src, sorted.
func upFiles(src fs.FS) []string {
	names, err := fs.Glob(src, "*.up.sql")
	if err != nil {
		return nil
	}
	slices.Sort(names)
	return names
}

func fileVersion(name string) uint64 {
	head, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(head, 10, 64)
	return v
}

// appliedBetween returns the files with from < version <= to.
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := fileVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
