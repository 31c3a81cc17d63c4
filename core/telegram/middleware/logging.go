package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/m3rciful/dialogbot/core/logger"
	"github.com/m3rciful/dialogbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// receipts remembers update ids whose receipt line was already written; the
// logger runs both globally and on every route.
var receipts = cache.New(10*time.Second, time.Minute)

func firstReceipt(updateID int) bool {
	return receipts.Add(strconv.Itoa(updateID), struct{}{}, cache.DefaultExpiration) == nil
}

// LoggerMiddleware attaches the correlation context for the update and
// writes one sampled "update.received" line.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		if user := c.Sender(); user != nil {
			userID = user.ID
		}
		rid := logger.BuildRID(upd.ID, chatID, userID)
		if prev, ok := tghelpers.ContextFrom(c); ok && logger.RIDFrom(prev) == rid {
			return next(c)
		}
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := logger.WithUpdateMeta(logger.WithRID(context.Background(), rid), upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && firstReceipt(upd.ID) {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c, upd)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context, upd tele.Update) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	switch msg := upd.Message; {
	case upd.Callback != nil:
		if key := callbacks.Data(upd.Callback); key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
	case msg != nil && msg.Voice != nil:
		attrs = append(attrs, slog.Int("voice_seconds", msg.Voice.Duration))
	case msg != nil && msg.Text != "":
		attrs = append(attrs, slog.Int("text_chars", logger.Chars(msg.Text)))
	}
	return attrs
}
