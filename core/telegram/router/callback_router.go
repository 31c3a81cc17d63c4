package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/dialogbot/core/telegram"
	"github.com/m3rciful/dialogbot/core/telegram/callbacks"
	"github.com/m3rciful/dialogbot/core/telegram/middleware"
)

// CallbackOptions overrides the handler for payloads no namespace claims.
// Nil falls back to the registry's own.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute answers every button press and dispatches it by the longest
// registered namespace.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	dispatch := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		data := callbacks.Data(cb)
		_ = c.Respond()

		if h, ns, ok := reg.GetCallback(data); ok && h != nil {
			return summarize("callback."+handlerName(ns), slog.String("cb_key", data)).run(c, h)
		}
		missing := opts.NotFound
		if missing == nil {
			missing = reg.CallbackNotFound()
		}
		return summarize("callback.unknown",
			slog.String("cb_key", data),
			slog.String("cause", "not_found"),
		).run(c, missing)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(dispatch)),
	}
}
