package dialog

import (
	"context"

	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
	"github.com/m3rciful/dialogbot/internal/llm"
)

func (r *Router) assistantFlow() *flow {
	return &flow{
		name:    FlowAssistant,
		command: "gpt",
		enter:   r.enterAssistant,
		text:    r.assistantAsk,
		other: func(ctx context.Context, t *turn) error {
			return r.say(ctx, t, textTextExpected, FinishMenu(CbFinishAssistant))
		},
	}
}

func (r *Router) enterAssistant(ctx context.Context, t *turn) error {
	t.sess.Enter(FlowAssistant, StateChatting)
	t.sess.Data.Assistant = &AssistantSlots{SystemPrompt: promptAssistant}
	if !r.sendImage(ctx, t, AssetAssistant) {
		return r.say(ctx, t, textAssistantNoImage, FinishMenu(CbFinishAssistant))
	}
	return r.say(ctx, t, textAssistantReady, FinishMenu(CbFinishAssistant))
}

func (r *Router) assistantAsk(ctx context.Context, t *turn) error {
	slots := t.sess.Data.Assistant
	if slots == nil {
		slots = &AssistantSlots{SystemPrompt: promptAssistant}
		t.sess.Data.Assistant = slots
	}
	r.action(ctx, t, tghelpers.ActionTyping)
	reply := r.model.Ask(ctx, t.upd.Text, llm.AskOptions{
		History: slots.History,
		System:  slots.SystemPrompt,
	})
	if !reply.OK() {
		logModelFailure(ctx, "assistant", reply.Err)
		return r.say(ctx, t, textAssistantFailed, FinishMenu(CbFinishAssistant))
	}
	slots.History = appendCapped(slots.History, r.historyCap, exchange(t.upd.Text, reply.Text)...)
	return r.say(ctx, t, reply.Text, FinishMenu(CbFinishAssistant))
}
