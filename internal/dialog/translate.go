package dialog

import (
	"context"
	"log/slog"

	"github.com/m3rciful/dialogbot/core/logger"
	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
	"github.com/m3rciful/dialogbot/core/telegram/state"
	"github.com/m3rciful/dialogbot/internal/llm"
)

func (r *Router) translateFlow() *flow {
	return &flow{
		name:    FlowTranslate,
		command: "translate",
		enter:   r.enterTranslate,
		text:    r.translateText,
		other: func(ctx context.Context, t *turn) error {
			if t.sess.State == StateSelecting {
				return r.say(ctx, t, textUseButtons, nil)
			}
			return r.say(ctx, t, textTextExpected, TranslateMenu())
		},
		callbacks: []callbackRoute{
			{namespace: CbLangPrefix, states: []state.State{StateSelecting}, handle: r.chooseLanguage},
			{namespace: CbChangeLang, handle: func(ctx context.Context, t *turn, _ string) error {
				r.removeControls(ctx, t)
				return r.enterTranslate(ctx, t)
			}},
		},
	}
}

func (r *Router) enterTranslate(ctx context.Context, t *turn) error {
	t.sess.Enter(FlowTranslate, StateSelecting)
	t.sess.Data.Translate = nil
	return r.say(ctx, t, textTranslateChoose, LanguageMenu())
}

func (r *Router) chooseLanguage(ctx context.Context, t *turn, key string) error {
	lang, ok := ParseLanguage(key)
	if !ok {
		return r.edit(ctx, t, textTranslateInvalid, LanguageMenu())
	}
	t.sess.Data.Translate = &TranslateSlots{Language: lang.Value}
	logger.Info(ctx, "dialog", "translate.selected", slog.String("lang", lang.Value))
	t.sess.State = StateTranslating
	return r.edit(ctx, t, translateChosenText(lang.Value), FinishMenu(CbFinishTranslate))
}

func (r *Router) translateText(ctx context.Context, t *turn) error {
	if t.sess.State != StateTranslating {
		return r.say(ctx, t, textUseButtons, nil)
	}
	slots := t.sess.Data.Translate
	if slots == nil || slots.Language == "" {
		t.sess.End()
		return r.say(ctx, t, textTranslateMissing, nil)
	}
	r.action(ctx, t, tghelpers.ActionTyping)
	reply := r.model.Ask(ctx, translatePrompt(slots.Language, t.upd.Text), llm.AskOptions{})
	if !reply.OK() {
		logModelFailure(ctx, "translate", reply.Err)
		return r.say(ctx, t, textTranslateFailed, TranslateMenu())
	}
	return r.say(ctx, t, translationText(reply.Text), TranslateMenu())
}
