package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/dialogbot/core/logger"
	"github.com/m3rciful/dialogbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher installs the dispatcher outbound calls are queued on; nil
// makes every call run inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// call is one outbound Bot API request.
type call struct {
	chatID   int64
	action   string
	endpoint string
	run      func() error
}

// wait queues c on its chat lane and blocks for the result so a chat's
// messages keep their order.
func (c call) wait(ctx context.Context) error {
	d := dispatcher.Load()
	if d == nil {
		return c.run()
	}
	return c.orInline(ctx, d.Do(ctx, c.chatID, c.action, c.endpoint, c.run))
}

// fire queues c without waiting; used for chat actions.
func (c call) fire(ctx context.Context) error {
	d := dispatcher.Load()
	if d == nil {
		return c.run()
	}
	return c.orInline(ctx, d.Enqueue(ctx, c.chatID, c.action, c.endpoint, c.run))
}

// orInline runs c directly when the dispatcher could not take it.
func (c call) orInline(ctx context.Context, err error) error {
	if !errors.Is(err, sender.ErrQueueFull) && !errors.Is(err, sender.ErrQueueClosed) {
		return err
	}
	logger.Warn(ctx, "tg.sender", "queue.fallback",
		slog.String("action", c.action),
		slog.String("endpoint", c.endpoint),
		slog.String("err", err.Error()),
	)
	return c.run()
}

// SendText replies with plain text in the chat of the current update. The
// recover middleware uses it, so it must not depend on a Channel.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var chatID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	send := call{chatID: chatID, action: "send.text", endpoint: "sendMessage", run: func() error {
		if len(opts) > 0 && opts[0] != nil {
			return c.Send(text, opts[0])
		}
		return c.Send(text)
	}}
	return send.wait(BuildContext(c))
}
