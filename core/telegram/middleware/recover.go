package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/dialogbot/core/logger"
	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
)

// PanicReply is what the chat sees after a handler panics. Set it to "" to
// stay silent.
var PanicReply = "Oops! It seems something went wrong. Please try again a little later or use /start."

// RecoverMiddleware turns a handler panic into an error log line and an
// apology to the chat. The update is then treated as handled.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				apologize(c, r)
				err = nil
			}
		}()
		return next(c)
	}
}

func apologize(c tele.Context, cause any) {
	ctx := tghelpers.BuildContext(c)
	logger.LogEvent(ctx, logger.TG, slog.LevelError, "tg.panic",
		slog.String("status", "fail"),
		slog.String("err", fmt.Sprint(cause)),
		slog.String("stack", string(debug.Stack())),
	)
	if PanicReply == "" || c.Chat() == nil {
		return
	}
	if err := tghelpers.SendText(c, PanicReply); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "tg.panic.reply_failed", slog.String("err", err.Error()))
	}
}
