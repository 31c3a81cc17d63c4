package router

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/dialogbot/core/logger"
	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
	"github.com/m3rciful/dialogbot/core/telegram/middleware"
	"github.com/m3rciful/dialogbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// summary is the "handler.handled" line written once per routed update.
type summary struct {
	name    string
	start   time.Time
	status  string
	outcome string
	extras  []slog.Attr
}

func summarize(name string, extras ...slog.Attr) summary {
	return summary{name: name, start: time.Now(), extras: extras}
}

// run calls h and logs the result under the summary's handler name.
func (s summary) run(c tele.Context, h tele.HandlerFunc) error {
	tghelpers.WithHandler(c, s.name)
	var err error
	if h != nil {
		err = h(c)
	}
	s.log(c, err)
	return err
}

// skip logs an update nothing was registered for.
func (s summary) skip(c tele.Context) {
	s.status, s.outcome = "skip", "ok"
	s.log(c, nil)
}

func (s summary) log(c tele.Context, err error) {
	ctx := tghelpers.WithHandler(c, s.name)
	msgs, kb := middleware.GetCounters(c)
	attrs := []slog.Attr{
		slog.String("status", cmpOr(s.status, logger.Status(err))),
		slog.String("handler", s.name),
		slog.String("outcome", cmpOr(s.outcome, logger.Status(err))),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(s.start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(netutil.Redact(err), 256)),
			slog.String("err_code", errorCode(err)),
			slog.String("cause", s.name),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", append(attrs, s.extras...)...)
}

// handlerName turns "/Quiz Me" into "quiz_me".
func handlerName(raw string) string {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(raw, " ", "_"))
}

// errorCode prefers an error's own Code() and falls back to the transport
// classification.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	return strings.ToUpper(netutil.Classify(err))
}

func cmpOr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
