// Package logger is the structured logging layer: one flat line per event,
// JSON or key=value, with correlation ids taken from the context.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/m3rciful/dialogbot/core/buildinfo"
	coreconfig "github.com/m3rciful/dialogbot/core/config"
)

var (
	initOnce sync.Once

	closeMu sync.Mutex
	closed  bool
	sink    *lineWriter
	files   []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newDebugGate(1, 50)
	traceOverride bool

	// L is the base logger. It discards everything until InitLogger runs.
	L = slog.New(discardHandler{})

	// DB logs database connectivity.
	DB = L
	// MIG logs schema migrations.
	MIG = L
	// TG logs the Telegram transport.
	TG = L
	// TWire logs command, callback and route registration.
	TWire = L
)

// settings is the logging configuration with defaults applied.
type settings struct {
	level   slog.Level
	enc     encoding
	order   []string
	keep    int
	per     int
	flush   time.Duration
	profile string
}

func resolve(cfg *coreconfig.Config) settings {
	s := settings{
		level:   slog.LevelInfo,
		enc:     encJSON,
		order:   slices.Clone(defaultKeyOrder),
		keep:    1,
		per:     50,
		flush:   defaultFlushEvery,
		profile: "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.enc = encKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.enc = encKV
		}
	}
	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			s.order = order
		}
	}
	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		keep, per := parseRatio(spec)
		switch {
		case keep == 0 && per == 0:
			s.keep, s.per = 0, 0
		case keep > 0 && per > 0:
			s.keep, s.per = keep, per
		}
	}
	if lc.FlushMS > 0 {
		s.flush = time.Duration(lc.FlushMS) * time.Millisecond
	}
	return s
}

// InitLogger installs the global logger. Only the first call has effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		s := resolve(cfg)
		levelVar.Set(s.level)
		debugSampler.configure(s.keep, s.per)
		traceOverride = envFlag("TRACE") || envFlag("LOG_TRACE")

		outputs, closers, openErr := openOutputs(cfg)
		if openErr != nil {
			err = openErr
			return
		}
		files = closers
		sink = newLineWriter(outputs, defaultBatchBytes, s.flush)

		L = slog.New(newEventHandler(handlerOptions{level: &levelVar, sink: sink, enc: s.enc, order: s.order}))
		slog.SetDefault(L)
		DB = L.With("component", "db")
		MIG = L.With("component", "db.migrate")
		TG = L.With("component", "tg")
		TWire = L.With("component", "tg.wire")

		LogEvent(context.Background(), L.With("component", "app"), slog.LevelInfo, "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", s.profile),
		)
	})
	return err
}

// openOutputs always includes stdout; logging.dir plus logging.bot_file add
// a size-rotated file.
func openOutputs(cfg *coreconfig.Config) ([]io.Writer, []io.Closer, error) {
	outputs := []io.Writer{os.Stdout}
	if cfg == nil {
		return outputs, nil, nil
	}
	lc := cfg.Logging
	dir, name := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile)
	if dir == "" || name == "" {
		return outputs, nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
		Compress:   lc.Compress,
	}
	return append(outputs, rotated), []io.Closer{rotated}, nil
}

// Shutdown flushes pending lines and closes the file sink. Later calls are
// no-ops.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if sink != nil {
		errs = append(errs, sink.Flush(), sink.Close())
	}
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// LogEvent writes attrs under event. A nil logg means the logger carried by
// ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns the base logger tagged with component=name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name != "" {
		return L.With("component", name)
	}
	return L
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug line should be
// written. TRACE=1 lets all of them through.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.allow()
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
