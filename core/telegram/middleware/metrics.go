package middleware

import (
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
)

const countersKey = "counters"

// countingContext counts every successful Send, Reply and Edit made through
// the handler's own context. Messages sent through helpers.Channel are counted
// there, via the context counters.
type countingContext struct {
	tele.Context
	tally *tghelpers.Counters
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.track(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.track(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.track(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) track(err error, opts []any) error {
	if err == nil {
		c.tally.Add(carriesMarkup(opts))
	}
	return err
}

func carriesMarkup(opts []any) bool {
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok && so != nil && so.ReplyMarkup != nil {
			return true
		}
		if rm, ok := o.(*tele.ReplyMarkup); ok && rm != nil {
			return true
		}
	}
	return false
}

// MessageMetricsMiddleware gives each update a fresh reply tally that the
// handler summary reads back through GetCounters.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, tally := tghelpers.WithCounters(tghelpers.BuildContext(c))
		tghelpers.StoreContext(c, ctx)
		c.Set(countersKey, tally)
		return next(countingContext{Context: c, tally: tally})
	}
}

// GetCounters returns how many messages the update produced and whether any
// of them carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	tally, ok := c.Get(countersKey).(*tghelpers.Counters)
	if !ok {
		if ctx, found := tghelpers.ContextFrom(c); found {
			tally = tghelpers.CountersFrom(ctx)
		}
	}
	return tally.Snapshot()
}
