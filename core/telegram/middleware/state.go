package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/dialogbot/core/logger"
	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
)

// SessionGetter looks up the flow and state a chat is in. ok is false for a
// chat without a session.
type SessionGetter interface {
	SessionOf(chatID int64) (flow, state string, ok bool)
}

// Session copies the chat's flow and state into the request context so they
// appear on every log line of the update.
func Session(getter SessionGetter) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if getter != nil && c.Chat() != nil {
				stamp(c, getter)
			}
			return next(c)
		}
	}
}

func stamp(c tele.Context, getter SessionGetter) {
	flow, state, ok := getter.SessionOf(c.Chat().ID)
	if !ok {
		return
	}
	ctx := logger.WithSession(tghelpers.BuildContext(c), flow, state)
	tghelpers.StoreContext(c, ctx)
	if logger.ShouldSampleDebug() {
		logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "session.resolved")
	}
}
