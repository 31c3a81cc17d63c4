package router

import (
	"strings"

	tg "github.com/m3rciful/dialogbot/core/telegram"
	"github.com/m3rciful/dialogbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls fallback behaviour for text and media updates.
type TextOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

// mediaEndpoints lists the non-text message kinds routed to the media handler.
var mediaEndpoints = []string{
	tele.OnVoice,
	tele.OnAudio,
	tele.OnPhoto,
	tele.OnDocument,
	tele.OnSticker,
	tele.OnVideo,
	tele.OnVideoNote,
	tele.OnAnimation,
	tele.OnLocation,
	tele.OnContact,
}

// TextRoutes builds handlers for text and media routing. Text is matched
// against slash commands and their aliases, then reply-keyboard labels, then
// the registry's text fallback.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		text := strings.TrimSpace(c.Text())
		if reg != nil {
			if strings.HasPrefix(text, "/") {
				if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
					return summarize(handlerName(key)).run(c, cmd.Handler)
				}
			}
			if key, cmd, ok := reg.LookupLabel(text); ok && cmd.Handler != nil {
				return summarize(handlerName(key)).run(c, cmd.Handler)
			}
			if fb := reg.TextFallback(); fb != nil {
				return summarize("text").run(c, fb)
			}
		}
		if opts.UnknownText != nil {
			return summarize("unknown_text").run(c, opts.UnknownText)
		}
		summarize("unknown_text").skip(c)
		return nil
	}

	mediaHandler := func(c tele.Context) error {
		name := "media"
		if msg := c.Message(); msg != nil && msg.Voice != nil {
			name = "voice"
		}
		if reg != nil {
			if fb := reg.MediaFallback(); fb != nil {
				return summarize(name).run(c, fb)
			}
		}
		if opts.UnknownMedia != nil {
			return summarize("unexpected_media").run(c, opts.UnknownMedia)
		}
		summarize("unexpected_media").skip(c)
		return nil
	}

	text := middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler))
	media := middleware.RecoverMiddleware(middleware.LoggerMiddleware(mediaHandler))

	routes := []tg.Route{{Endpoint: tele.OnText, Handler: text}}
	for _, ep := range mediaEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: media})
	}
	return routes
}
