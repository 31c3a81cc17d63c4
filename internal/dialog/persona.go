package dialog

import (
	"context"
	"log/slog"

	"github.com/m3rciful/dialogbot/core/logger"
	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
	"github.com/m3rciful/dialogbot/core/telegram/state"
	"github.com/m3rciful/dialogbot/internal/llm"
)

func (r *Router) personaFlow() *flow {
	return &flow{
		name:    FlowPersona,
		command: "talk",
		enter:   r.enterPersona,
		text:    r.personaText,
		other:   r.personaOther,
		callbacks: []callbackRoute{
			{namespace: CbPersonaPrefix, states: []state.State{StateSelecting}, handle: r.choosePersona},
			{namespace: CbChangePersonality, handle: func(ctx context.Context, t *turn, _ string) error {
				return r.enterPersona(ctx, t)
			}},
		},
	}
}

// enterPersona shows the persona menu. A previous selection is discarded.
func (r *Router) enterPersona(ctx context.Context, t *turn) error {
	t.sess.Enter(FlowPersona, StateSelecting)
	t.sess.Data.Persona = nil
	if !r.sendImage(ctx, t, AssetPersona) {
		return r.say(ctx, t, textPersonaNoImage, PersonaMenu())
	}
	return r.say(ctx, t, textPersonaChoose, PersonaMenu())
}

func (r *Router) choosePersona(ctx context.Context, t *turn, key string) error {
	p, ok := ParsePersona(key)
	if !ok {
		return r.edit(ctx, t, textPersonaInvalid, PersonaMenu())
	}
	t.sess.Data.Persona = &PersonaSlots{Name: p.Value, Prompt: p.Prompt()}
	logger.Info(ctx, "dialog", "persona.selected", slog.String("persona", p.Value))
	t.sess.State = StateChatting
	return r.edit(ctx, t, personaChosenText(p.Value), FinishMenu(CbFinishPersona))
}

func (r *Router) personaText(ctx context.Context, t *turn) error {
	if t.sess.State != StateChatting {
		return r.say(ctx, t, textUseButtons, nil)
	}
	slots := t.sess.Data.Persona
	if slots == nil || slots.Prompt == "" {
		t.sess.End()
		return r.say(ctx, t, textPersonaMissing, nil)
	}
	r.action(ctx, t, tghelpers.ActionTyping)
	reply := r.model.Ask(ctx, t.upd.Text, llm.AskOptions{System: slots.Prompt})
	if !reply.OK() {
		logModelFailure(ctx, "persona", reply.Err)
		return r.say(ctx, t, textPersonaFailed, PersonaChatMenu())
	}
	return r.say(ctx, t, reply.Text, PersonaChatMenu())
}

func (r *Router) personaOther(ctx context.Context, t *turn) error {
	if t.sess.State == StateSelecting {
		return r.say(ctx, t, textUseButtons, nil)
	}
	return r.say(ctx, t, textTextExpected, PersonaChatMenu())
}
