package dialog

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dialogbot/core/telegram/format"
	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
	"github.com/m3rciful/dialogbot/core/telegram/keyboard"
	"github.com/m3rciful/dialogbot/core/telegram/state"
	"github.com/m3rciful/dialogbot/internal/llm"
	"github.com/m3rciful/dialogbot/internal/quiz"
)

type outMsg struct {
	kind   string
	chatID int64
	text   string
	mode   format.ParseMode
	markup *keyboard.Markup
	ref    tghelpers.MessageRef
}

type fakeChannel struct {
	mu        sync.Mutex
	nextID    int
	out       []outMsg
	removed   []tghelpers.MessageRef
	downloads []string

	failText     error
	failDownload error
}

func (f *fakeChannel) SendText(_ context.Context, chatID int64, msg tghelpers.Outgoing) (tghelpers.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failText != nil {
		return tghelpers.MessageRef{}, f.failText
	}
	f.nextID++
	ref := tghelpers.MessageRef{ChatID: chatID, MessageID: f.nextID}
	f.out = append(f.out, outMsg{kind: "text", chatID: chatID, text: msg.Text, mode: msg.Mode, markup: msg.Markup, ref: ref})
	return ref, nil
}

func (f *fakeChannel) SendPhoto(_ context.Context, chatID int64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, outMsg{kind: "photo", chatID: chatID, text: string(data)})
	return nil
}

func (f *fakeChannel) SendVoice(_ context.Context, chatID int64, audio []byte, markup *keyboard.Markup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, outMsg{kind: "voice", chatID: chatID, text: string(audio), markup: markup})
	return nil
}

func (f *fakeChannel) SendAction(context.Context, int64, tghelpers.ChatAction) error { return nil }

func (f *fakeChannel) EditText(_ context.Context, ref tghelpers.MessageRef, msg tghelpers.Outgoing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, outMsg{kind: "edit", chatID: ref.ChatID, text: msg.Text, mode: msg.Mode, markup: msg.Markup, ref: ref})
	return nil
}

func (f *fakeChannel) RemoveControls(_ context.Context, ref tghelpers.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, ref)
	return errors.New("message is not modified")
}

func (f *fakeChannel) Download(_ context.Context, fileID, path string) error {
	f.mu.Lock()
	f.downloads = append(f.downloads, path)
	fail := f.failDownload
	f.mu.Unlock()
	if fail != nil {
		return fail
	}
	return os.WriteFile(path, []byte("OggS"+fileID), 0o600)
}

func (f *fakeChannel) messages(chatID int64) []outMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []outMsg
	for _, m := range f.out {
		if m.chatID == chatID {
			res = append(res, m)
		}
	}
	return res
}

func (f *fakeChannel) last(t *testing.T, chatID int64) outMsg {
	t.Helper()
	msgs := f.messages(chatID)
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func (f *fakeChannel) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = nil
	f.removed = nil
}

type askCall struct {
	prompt string
	opts   llm.AskOptions
}

type fakeModel struct {
	mu    sync.Mutex
	ask   func(prompt string, opts llm.AskOptions) llm.Reply
	calls []askCall

	transcript   string
	audio        []byte
	transcribed  []string
	fileExisted  bool
	spokenInputs []string
}

func (m *fakeModel) Ask(_ context.Context, prompt string, opts llm.AskOptions) llm.Reply {
	m.mu.Lock()
	history := append([]llm.Message(nil), opts.History...)
	opts.History = history
	m.calls = append(m.calls, askCall{prompt: prompt, opts: opts})
	ask := m.ask
	m.mu.Unlock()
	if ask == nil {
		return llm.Reply{Text: "answer: " + prompt}
	}
	return ask(prompt, opts)
}

func (m *fakeModel) Transcribe(_ context.Context, audioPath string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcribed = append(m.transcribed, audioPath)
	_, err := os.Stat(audioPath)
	m.fileExisted = err == nil
	return m.transcript, m.transcript != ""
}

func (m *fakeModel) TextToSpeech(_ context.Context, text string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spokenInputs = append(m.spokenInputs, text)
	return m.audio, len(m.audio) > 0
}

func (m *fakeModel) lastCall(t *testing.T) askCall {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.calls)
	return m.calls[len(m.calls)-1]
}

func failed(msg string) llm.Reply {
	err := errors.New(msg)
	return llm.Reply{Text: "An error occurred while contacting ChatGPT: " + msg, Err: err}
}

type memArchive struct {
	mu      sync.Mutex
	results []QuizResult
}

func (a *memArchive) SaveQuizResult(_ context.Context, res QuizResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, res)
	return nil
}

type harness struct {
	r       *Router
	ch      *fakeChannel
	model   *fakeModel
	archive *memArchive
}

func allAssets() fstest.MapFS {
	return fstest.MapFS{
		AssetFact:      {Data: []byte("fact-jpg")},
		AssetAssistant: {Data: []byte("gpt-jpg")},
		AssetPersona:   {Data: []byte("people-jpg")},
		AssetQuiz:      {Data: []byte("quiz-jpg")},
	}
}

func newHarness(t *testing.T, mutate ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{ch: &fakeChannel{}, model: &fakeModel{}, archive: &memArchive{}}
	d := Deps{
		Store:      state.NewStore[Slots](0, nil),
		Channel:    h.ch,
		Model:      h.model,
		Quiz:       &quiz.Generator{Model: h.model, Attempts: 3, Sleep: func(context.Context, time.Duration) error { return nil }},
		Assets:     allAssets(),
		Archive:    h.archive,
		HistoryCap: 10,
		TempDir:    t.TempDir(),
		Now:        func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	for _, fn := range mutate {
		fn(&d)
	}
	h.r = NewRouter(d)
	return h
}

func (h *harness) command(t *testing.T, chatID int64, name string) {
	t.Helper()
	require.NoError(t, h.r.Handle(context.Background(), Update{
		ChatID: chatID, User: User{ID: chatID, FirstName: "Ann"}, Kind: KindCommand, Command: name, Text: "/" + name,
	}))
}

func (h *harness) text(t *testing.T, chatID int64, text string) {
	t.Helper()
	require.NoError(t, h.r.Handle(context.Background(), Update{
		ChatID: chatID, User: User{ID: chatID}, Kind: KindText, Text: text,
		Message: tghelpers.MessageRef{ChatID: chatID, MessageID: 9000},
	}))
}

func (h *harness) press(t *testing.T, chatID int64, data string) {
	t.Helper()
	require.NoError(t, h.r.Handle(context.Background(), Update{
		ChatID: chatID, User: User{ID: chatID}, Kind: KindCallback, Data: data,
		Message: tghelpers.MessageRef{ChatID: chatID, MessageID: 777},
	}))
}

func (h *harness) session(chatID int64) *Session {
	return h.r.Store().Get(chatID)
}

// quizModel answers question prompts with numbered questions whose correct
// letter is B and judges answers by comparing letters.
func quizModel(h *harness) {
	n := 0
	h.model.ask = func(prompt string, _ llm.AskOptions) llm.Reply {
		if strings.HasPrefix(prompt, "The correct answer option") {
			for _, l := range quiz.Letters {
				if strings.Contains(prompt, "letter: "+l+".") && strings.Contains(prompt, "answered: "+l+".") {
					return llm.Reply{Text: "Yes"}
				}
			}
			return llm.Reply{Text: "No"}
		}
		n++
		return llm.Reply{Text: "Question " + strings.Repeat("?", n) + "\nA) 1\nB) 2\nC) 3\nD) 4\nCORRECT ANSWER: B"}
	}
}

func markupData(m *keyboard.Markup) []string {
	if m == nil {
		return nil
	}
	var out []string
	for _, row := range m.Inline {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

func fstestEmpty() fstest.MapFS { return fstest.MapFS{} }
