package dialog

import (
	"context"

	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
	"github.com/m3rciful/dialogbot/core/telegram/state"
	"github.com/m3rciful/dialogbot/internal/llm"
)

func (r *Router) factFlow() *flow {
	return &flow{
		name:    FlowFact,
		command: "fact",
		aliases: []string{"random"},
		enter:   r.enterFact,
		text:    r.factAbout,
		other:   func(ctx context.Context, t *turn) error { return r.say(ctx, t, textUseButtons, FactMenu()) },
		callbacks: []callbackRoute{
			{namespace: CbFactMore, states: []state.State{StateChatting}, handle: r.factMore},
		},
	}
}

func (r *Router) factSlots(t *turn) *FactSlots {
	if t.sess.Data.Fact == nil {
		t.sess.Data.Fact = &FactSlots{}
	}
	return t.sess.Data.Fact
}

func (r *Router) enterFact(ctx context.Context, t *turn) error {
	t.sess.Enter(FlowFact, StateChatting)
	r.factSlots(t).History = nil
	if !r.sendImage(ctx, t, AssetFact) {
		if err := r.say(ctx, t, textFactNoImage, nil); err != nil {
			return err
		}
	}
	r.action(ctx, t, tghelpers.ActionTyping)
	reply := r.askFact(ctx, t, promptFirstFact)
	if !reply.OK() {
		return r.say(ctx, t, textFactFailed, FactMenu())
	}
	return r.say(ctx, t, reply.Text, FactMenu())
}

// factMore replaces the pressed message with a new fact.
func (r *Router) factMore(ctx context.Context, t *turn, _ string) error {
	r.action(ctx, t, tghelpers.ActionTyping)
	reply := r.askFact(ctx, t, promptMoreFact)
	if !reply.OK() {
		return r.edit(ctx, t, textFactMoreError, FactMenu())
	}
	return r.edit(ctx, t, reply.Text, FactMenu())
}

// factAbout asks for a fact about whatever the user typed.
func (r *Router) factAbout(ctx context.Context, t *turn) error {
	r.action(ctx, t, tghelpers.ActionTyping)
	reply := r.askFact(ctx, t, factAboutPrompt(t.upd.Text))
	if !reply.OK() {
		return r.say(ctx, t, textFactMoreError, FactMenu())
	}
	return r.say(ctx, t, reply.Text, FactMenu())
}

// askFact sends prompt with the facts told so far and records the exchange
// when the model answered.
func (r *Router) askFact(ctx context.Context, t *turn, prompt string) llm.Reply {
	slots := r.factSlots(t)
	reply := r.model.Ask(ctx, prompt, llm.AskOptions{History: slots.History})
	if !reply.OK() {
		logModelFailure(ctx, "fact", reply.Err)
		return reply
	}
	slots.History = appendCapped(slots.History, r.historyCap, exchange(prompt, reply.Text)...)
	return reply
}
