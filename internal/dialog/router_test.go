package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dialogbot/core/telegram/format"
	"github.com/m3rciful/dialogbot/core/telegram/state"
	"github.com/m3rciful/dialogbot/internal/llm"
)

func TestStartShowsWelcome(t *testing.T) {
	h := newHarness(t)
	h.command(t, 1, "gpt")
	h.command(t, 1, "start")

	last := h.ch.last(t, 1)
	assert.Equal(t, format.HTML, last.mode)
	assert.Contains(t, last.text, `<a href="tg://user?id=1">Ann</a>`)
	assert.Equal(t, MainMenu(), last.markup)
	assert.False(t, h.session(1).Active())
	assert.NotNil(t, h.session(1).Data.Assistant, "start keeps slots")
}

func TestUnknownCommandAndIdleText(t *testing.T) {
	h := newHarness(t)
	h.command(t, 1, "weather")
	assert.Equal(t, TextUnknownCmd, h.ch.last(t, 1).text)

	h.text(t, 1, "hello")
	assert.Equal(t, TextUnknownInput, h.ch.last(t, 1).text)
	assert.False(t, h.session(1).Active())
}

func TestHandleRejectsMissingChat(t *testing.T) {
	h := newHarness(t)
	err := h.r.Handle(context.Background(), Update{Kind: KindText, Text: "x"})
	assert.ErrorIs(t, err, ErrNoChat)
}

func TestHandleApologizesOnTransportFailure(t *testing.T) {
	h := newHarness(t)
	h.ch.failText = errors.New("telegram down")
	err := h.r.Handle(context.Background(), Update{ChatID: 5, Kind: KindCommand, Command: "voice"})
	require.Error(t, err)
	assert.Equal(t, FlowVoice, h.session(5).Flow)
}

func TestStaleCallbackKeepsState(t *testing.T) {
	h := newHarness(t)
	h.press(t, 1, CbFactMore)
	assert.Equal(t, staleActionText("fact"), h.ch.last(t, 1).text)
	assert.False(t, h.session(1).Active())

	h.command(t, 1, "translate")
	h.press(t, 1, CbQuizTopicPrefix+"Science")
	assert.Equal(t, staleActionText("quiz"), h.ch.last(t, 1).text)
	assert.Equal(t, FlowTranslate, h.session(1).Flow)
	assert.Equal(t, StateSelecting, h.session(1).State)

	h.press(t, 1, "something_else")
	assert.Equal(t, TextUnknownInput, h.ch.last(t, 1).text)
}

func TestCallbackInWrongStateOfFlow(t *testing.T) {
	h := newHarness(t)
	quizModel(h)
	h.command(t, 1, "quiz")
	h.press(t, 1, CbQuizMore)
	assert.Equal(t, textButtonExpired, h.ch.last(t, 1).text)
	assert.Equal(t, StateChoosingTopic, h.session(1).State)
}

func TestFinishClearsEverySlot(t *testing.T) {
	h := newHarness(t)
	quizModel(h)
	h.command(t, 1, "quiz")
	h.press(t, 1, CbQuizTopicPrefix+"History")
	h.text(t, 1, "b")
	h.command(t, 1, "gpt")
	h.text(t, 1, "hi")
	require.NotNil(t, h.session(1).Data.Quiz)
	require.NotNil(t, h.session(1).Data.Assistant)

	h.press(t, 1, CbFinishAssistant)
	sess := h.session(1)
	assert.False(t, sess.Active())
	assert.True(t, sess.Data.Empty())
	assert.Equal(t, MainMenu(), h.ch.last(t, 1).markup)
	require.Len(t, h.ch.removed, 1, "controls are stripped even when removal fails")

	// A finish button is honored from any flow.
	h.command(t, 1, "translate")
	h.press(t, 1, CbFinishVoice)
	assert.False(t, h.session(1).Active())
}

func TestIdleChatsLeaveTheStore(t *testing.T) {
	h := newHarness(t)
	h.command(t, 5, "start")
	_, _, ok := h.r.SessionOf(5)
	assert.False(t, ok, "welcome alone stores nothing")

	h.command(t, 5, "gpt")
	h.text(t, 5, "hello")
	_, _, ok = h.r.SessionOf(5)
	require.True(t, ok)

	h.command(t, 5, "start")
	_, _, ok = h.r.SessionOf(5)
	assert.True(t, ok, "reset keeps slots, so the entry stays")

	h.press(t, 5, CbFinishAssistant)
	_, _, ok = h.r.SessionOf(5)
	assert.False(t, ok)
	assert.Zero(t, h.r.Store().Len())
}

func TestFactFlow(t *testing.T) {
	h := newHarness(t)
	h.command(t, 1, "random")

	msgs := h.ch.messages(1)
	require.Len(t, msgs, 2)
	assert.Equal(t, "photo", msgs[0].kind)
	assert.Equal(t, "answer: "+promptFirstFact, msgs[1].text)
	assert.Equal(t, FactMenu(), msgs[1].markup)
	assert.Equal(t, FlowFact, h.session(1).Flow)

	h.press(t, 1, CbFactMore)
	last := h.ch.last(t, 1)
	assert.Equal(t, "edit", last.kind)
	assert.Equal(t, 777, last.ref.MessageID)
	assert.Len(t, h.model.lastCall(t).opts.History, 2)

	h.text(t, 1, "octopus")
	assert.Equal(t, factAboutPrompt("octopus"), h.model.lastCall(t).prompt)
}

func TestFactFailureStaysInFlow(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Assets = nil })
	h.model.ask = func(string, llm.AskOptions) llm.Reply { return failed("timeout") }
	h.command(t, 1, "fact")

	msgs := h.ch.messages(1)
	require.Len(t, msgs, 2)
	assert.Equal(t, textFactNoImage, msgs[0].text)
	assert.Equal(t, textFactFailed, msgs[1].text)
	assert.Equal(t, FlowFact, h.session(1).Flow)
	assert.Empty(t, h.session(1).Data.Fact.History)

	h.press(t, 1, CbFactMore)
	assert.Equal(t, textFactMoreError, h.ch.last(t, 1).text)
}

func TestHistoryIsCapped(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.HistoryCap = 4 })
	h.command(t, 1, "gpt")
	for i := 0; i < 6; i++ {
		h.text(t, 1, fmt.Sprintf("question %d", i))
		assert.LessOrEqual(t, len(h.model.lastCall(t).opts.History), 4)
	}
	hist := h.session(1).Data.Assistant.History
	require.Len(t, hist, 4)
	assert.Equal(t, "question 4", hist[0].Content)
	assert.Equal(t, llm.RoleUser, hist[0].Role)
	assert.Equal(t, "answer: question 5", hist[3].Content)

	h.command(t, 1, "fact")
	for i := 0; i < 5; i++ {
		h.press(t, 1, CbFactMore)
	}
	assert.Len(t, h.session(1).Data.Fact.History, 4)
}

func TestAssistantFlow(t *testing.T) {
	h := newHarness(t)
	h.command(t, 1, "gpt")
	assert.Equal(t, textAssistantReady, h.ch.last(t, 1).text)
	assert.Equal(t, []string{CbFinishAssistant}, markupData(h.ch.last(t, 1).markup))

	h.text(t, 1, "what is go?")
	call := h.model.lastCall(t)
	assert.Equal(t, promptAssistant, call.opts.System)
	assert.Empty(t, call.opts.History)

	h.model.ask = func(string, llm.AskOptions) llm.Reply { return failed("boom") }
	h.text(t, 1, "again")
	assert.Equal(t, textAssistantFailed, h.ch.last(t, 1).text)
	assert.Len(t, h.session(1).Data.Assistant.History, 2, "failed turns are not recorded")

	h.r.Handle(context.Background(), Update{ChatID: 1, Kind: KindVoice, Voice: &Voice{FileID: "f"}})
	assert.Equal(t, textTextExpected, h.ch.last(t, 1).text)
}

func TestAssistantWithoutImage(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Assets = fstestEmpty() })
	h.command(t, 1, "gpt")
	msgs := h.ch.messages(1)
	require.Len(t, msgs, 1)
	assert.Equal(t, textAssistantNoImage, msgs[0].text)
	assert.Equal(t, StateChatting, h.session(1).State)
}

func TestPersonaFlow(t *testing.T) {
	h := newHarness(t)
	h.text(t, 1, "hi")
	h.command(t, 1, "talk")
	assert.Equal(t, PersonaMenu(), h.ch.last(t, 1).markup)
	assert.Equal(t, StateSelecting, h.session(1).State)

	h.text(t, 1, "hello?")
	assert.Equal(t, textUseButtons, h.ch.last(t, 1).text)

	h.press(t, 1, CbPersonaPrefix+"Nobody")
	assert.Equal(t, textPersonaInvalid, h.ch.last(t, 1).text)
	assert.Equal(t, StateSelecting, h.session(1).State)

	h.press(t, 1, CbPersonaPrefix+Gates.Value)
	last := h.ch.last(t, 1)
	assert.Equal(t, "edit", last.kind)
	assert.Equal(t, "Bill Gates - great choice! Ask your question.", last.text)
	assert.Equal(t, StateChatting, h.session(1).State)

	h.text(t, 1, "Windows?")
	call := h.model.lastCall(t)
	assert.Equal(t, Gates.Prompt(), call.opts.System)
	assert.Equal(t, PersonaChatMenu(), h.ch.last(t, 1).markup)

	h.press(t, 1, CbChangePersonality)
	assert.Nil(t, h.session(1).Data.Persona)
	assert.Equal(t, StateSelecting, h.session(1).State)
}

func TestPersonaMissingPromptEnds(t *testing.T) {
	h := newHarness(t)
	sess := h.session(1)
	sess.Enter(FlowPersona, StateChatting)
	h.text(t, 1, "hello")
	assert.Equal(t, textPersonaMissing, h.ch.last(t, 1).text)
	assert.False(t, h.session(1).Active())
}

func TestTranslateFlow(t *testing.T) {
	h := newHarness(t)
	h.command(t, 1, "translate")
	assert.Equal(t, LanguageMenu(), h.ch.last(t, 1).markup)

	h.press(t, 1, CbLangPrefix+"Klingon")
	assert.Equal(t, textTranslateInvalid, h.ch.last(t, 1).text)

	h.press(t, 1, CbLangPrefix+German.Value)
	assert.Equal(t, "You have selected German. Send the text.", h.ch.last(t, 1).text)
	assert.Equal(t, StateTranslating, h.session(1).State)

	h.model.ask = func(string, llm.AskOptions) llm.Reply { return llm.Reply{Text: "Guten Morgen"} }
	h.text(t, 1, "Good morning")
	assert.Equal(t, translatePrompt("German", "Good morning"), h.model.lastCall(t).prompt)
	assert.Equal(t, "Translation:\n\nGuten Morgen", h.ch.last(t, 1).text)
	assert.Equal(t, TranslateMenu(), h.ch.last(t, 1).markup)

	h.press(t, 1, CbChangeLang)
	assert.Equal(t, StateSelecting, h.session(1).State)
	assert.Nil(t, h.session(1).Data.Translate)
}

func TestTranslateMissingLanguageEnds(t *testing.T) {
	h := newHarness(t)
	h.session(1).Enter(FlowTranslate, StateTranslating)
	h.text(t, 1, "text")
	assert.Equal(t, textTranslateMissing, h.ch.last(t, 1).text)
	assert.False(t, h.session(1).Active())
}

func TestConcurrentChatsAreIsolated(t *testing.T) {
	h := newHarness(t)
	const chats = 16
	words := make([]string, chats)
	for i := range words {
		words[i] = gofakeit.Word() + fmt.Sprint(i)
	}

	var wg sync.WaitGroup
	for i := 0; i < chats; i++ {
		wg.Add(1)
		go func(chatID int64, word string) {
			defer wg.Done()
			ctx := context.Background()
			_ = h.r.Handle(ctx, Update{ChatID: chatID, Kind: KindCommand, Command: "gpt"})
			for j := 0; j < 3; j++ {
				_ = h.r.Handle(ctx, Update{ChatID: chatID, Kind: KindText, Text: word})
			}
		}(int64(i+1), words[i])
	}
	wg.Wait()

	for i := 0; i < chats; i++ {
		sess := h.session(int64(i + 1))
		assert.Equal(t, FlowAssistant, sess.Flow)
		hist := sess.Data.Assistant.History
		require.Len(t, hist, 6)
		for _, m := range hist {
			if m.Role == llm.RoleUser {
				assert.Equal(t, words[i], m.Content)
			}
		}
	}
}

func TestSessionOf(t *testing.T) {
	h := newHarness(t)
	_, _, ok := h.r.SessionOf(42)
	assert.False(t, ok)

	h.command(t, 42, "voice")
	flow, st, ok := h.r.SessionOf(42)
	require.True(t, ok)
	assert.Equal(t, string(FlowVoice), flow)
	assert.Equal(t, string(StateListening), st)
}

func TestEntryCommands(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, map[string]state.Flow{
		"fact":      FlowFact,
		"random":    FlowFact,
		"gpt":       FlowAssistant,
		"talk":      FlowPersona,
		"quiz":      FlowQuiz,
		"translate": FlowTranslate,
		"voice":     FlowVoice,
	}, h.r.EntryCommands())
}
