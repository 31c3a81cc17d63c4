// Package dialog implements the conversation flows of the bot and the router
// that multiplexes them over chats. Each chat has at most one active flow;
// the router resolves it from the session store, dispatches the update and
// persists the resulting flow and state.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/m3rciful/dialogbot/core/logger"
	"github.com/m3rciful/dialogbot/core/telegram/callbacks"
	"github.com/m3rciful/dialogbot/core/telegram/format"
	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
	"github.com/m3rciful/dialogbot/core/telegram/keyboard"
	"github.com/m3rciful/dialogbot/core/telegram/state"
	"github.com/m3rciful/dialogbot/internal/llm"
	"github.com/m3rciful/dialogbot/internal/quiz"
)

// ErrNoChat is returned for updates that carry no chat.
var ErrNoChat = errors.New("dialog: update without chat")

// Channel is the outbound side of the messaging transport.
type Channel interface {
	SendText(ctx context.Context, chatID int64, msg tghelpers.Outgoing) (tghelpers.MessageRef, error)
	SendPhoto(ctx context.Context, chatID int64, data []byte) error
	SendVoice(ctx context.Context, chatID int64, audio []byte, markup *keyboard.Markup) error
	SendAction(ctx context.Context, chatID int64, action tghelpers.ChatAction) error
	EditText(ctx context.Context, ref tghelpers.MessageRef, msg tghelpers.Outgoing) error
	RemoveControls(ctx context.Context, ref tghelpers.MessageRef) error
	Download(ctx context.Context, fileID, path string) error
}

// QuizResult is a finished quiz with at least one question.
type QuizResult struct {
	ChatID     int64
	UserID     int64
	Topic      string
	Correct    int
	Total      int
	Percent    int
	FinishedAt time.Time
}

// ResultArchive stores finished quizzes.
type ResultArchive interface {
	SaveQuizResult(ctx context.Context, res QuizResult) error
}

// Asset file names looked up in Deps.Assets.
const (
	AssetFact      = "Fact.jpg"
	AssetAssistant = "ChatGPT.jpg"
	AssetPersona   = "Famous_people.jpg"
	AssetQuiz      = "Quiz.jpg"
)

const defaultHistoryCap = 10

// Deps are the collaborators of the router. Assets and Archive are optional.
type Deps struct {
	Store      *Store
	Channel    Channel
	Model      llm.Gateway
	Quiz       *quiz.Generator
	Assets     fs.FS
	Archive    ResultArchive
	HistoryCap int
	TempDir    string
	Now        func() time.Time
}

// Router dispatches updates to flows.
type Router struct {
	store      *Store
	ch         Channel
	model      llm.Gateway
	gen        *quiz.Generator
	assets     fs.FS
	archive    ResultArchive
	historyCap int
	tempDir    string
	now        func() time.Time

	flows    []*flow
	byName   map[state.Flow]*flow
	commands map[string]*flow
}

// turn is one update being handled for a chat.
type turn struct {
	upd  Update
	sess *Session
}

func (t *turn) chatID() int64 { return t.upd.ChatID }

type handlerFunc func(ctx context.Context, t *turn) error

type callbackRoute struct {
	namespace string
	// states the callback is accepted in; empty means any state of the flow.
	states []state.State
	handle func(ctx context.Context, t *turn, key string) error
}

// flow is the static description of one conversation feature.
type flow struct {
	name    state.Flow
	command string
	aliases []string
	enter   handlerFunc
	text    handlerFunc
	voice   handlerFunc
	// other answers input the flow does not accept in its current state.
	other     handlerFunc
	callbacks []callbackRoute
}

// NewRouter wires the flows.
func NewRouter(d Deps) *Router {
	r := &Router{
		store:      d.Store,
		ch:         d.Channel,
		model:      d.Model,
		gen:        d.Quiz,
		assets:     d.Assets,
		archive:    d.Archive,
		historyCap: d.HistoryCap,
		tempDir:    d.TempDir,
		now:        d.Now,
	}
	if r.store == nil {
		r.store = state.NewStore[Slots](0, nil)
	}
	if r.historyCap <= 0 {
		r.historyCap = defaultHistoryCap
	}
	if r.tempDir == "" {
		r.tempDir = os.TempDir()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.gen == nil {
		r.gen = quiz.NewGenerator(d.Model, 0, 0)
	}

	r.flows = []*flow{
		r.factFlow(),
		r.assistantFlow(),
		r.personaFlow(),
		r.quizFlow(),
		r.translateFlow(),
		r.voiceFlow(),
	}
	r.byName = make(map[state.Flow]*flow, len(r.flows))
	r.commands = make(map[string]*flow)
	for _, f := range r.flows {
		r.byName[f.name] = f
		r.commands[f.command] = f
		for _, a := range f.aliases {
			r.commands[a] = f
		}
	}
	return r
}

// Store exposes the session store.
func (r *Router) Store() *Store { return r.store }

// SessionOf reports the flow and state of a chat without creating a session.
func (r *Router) SessionOf(chatID int64) (string, string, bool) {
	sess, ok := r.store.Peek(chatID)
	if !ok {
		return "", "", false
	}
	return string(sess.Flow), string(sess.State), true
}

// Handle processes one update. Updates of the same chat are serialized;
// different chats proceed concurrently.
func (r *Router) Handle(ctx context.Context, upd Update) error {
	if upd.ChatID == 0 {
		return ErrNoChat
	}
	unlock, err := r.store.Lock(ctx, upd.ChatID)
	if err != nil {
		return fmt.Errorf("dialog: lock chat: %w", err)
	}
	defer unlock()

	sess := r.store.Get(upd.ChatID)
	fromFlow, fromState := sess.Flow, sess.State
	ctx = logger.WithSession(ctx, string(fromFlow), string(fromState))

	start := time.Now()
	t := &turn{upd: upd, sess: sess}
	err = r.dispatch(ctx, t)
	if !sess.Active() && sess.Data.Empty() {
		r.store.Clear(upd.ChatID)
	} else {
		r.store.Save(upd.ChatID, sess)
	}

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("op", upd.Kind.String()),
		slog.String("next_flow", string(sess.Flow)),
		slog.String("next_state", string(sess.State)),
		slog.Duration("duration", logger.RoundMS(logger.Took(start))),
	}
	if err != nil {
		logger.LogEvent(ctx, logger.Component("dialog"), slog.LevelError, "dialog.handled", append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)...)
		if _, sendErr := r.ch.SendText(ctx, upd.ChatID, tghelpers.Outgoing{Text: TextGenericError}); sendErr != nil {
			logger.LogEvent(ctx, logger.Component("dialog"), slog.LevelWarn, "dialog.apology_failed",
				slog.String("err", logger.SanitizeLimit(sendErr.Error(), 256)),
			)
		}
		return err
	}
	logger.LogEvent(ctx, logger.Component("dialog"), slog.LevelInfo, "dialog.handled", attrs...)
	return nil
}

func (r *Router) dispatch(ctx context.Context, t *turn) error {
	switch t.upd.Kind {
	case KindCommand:
		return r.onCommand(ctx, t)
	case KindCallback:
		return r.onCallback(ctx, t)
	}

	f, active := r.byName[t.sess.Flow]
	if !t.sess.Active() || !active {
		return r.say(ctx, t, TextUnknownInput, nil)
	}
	var h handlerFunc
	switch t.upd.Kind {
	case KindText:
		h = f.text
	case KindVoice:
		h = f.voice
	}
	if h == nil {
		h = f.other
	}
	if h == nil {
		return r.say(ctx, t, textTextExpected, nil)
	}
	return h(ctx, t)
}

func (r *Router) onCommand(ctx context.Context, t *turn) error {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t.upd.Command), "/"))
	if name == "start" {
		return r.reset(ctx, t)
	}
	if f, ok := r.commands[name]; ok {
		return f.enter(ctx, t)
	}
	return r.say(ctx, t, TextUnknownCmd, nil)
}

// EntryCommands maps every command name, aliases included, to its flow.
func (r *Router) EntryCommands() map[string]state.Flow {
	out := make(map[string]state.Flow, len(r.commands))
	for name, f := range r.commands {
		out[name] = f.name
	}
	return out
}

func (r *Router) onCallback(ctx context.Context, t *turn) error {
	data := t.upd.Data
	if _, ok := genericFinish[data]; ok {
		return r.finish(ctx, t)
	}
	if data == CbFinishQuiz {
		return r.finishQuiz(ctx, t)
	}
	for _, f := range r.flows {
		for _, cb := range f.callbacks {
			key, ok := callbacks.Key(data, cb.namespace)
			if !ok {
				continue
			}
			if t.sess.Flow != f.name {
				return r.stale(ctx, t, f.command)
			}
			if !stateIn(t.sess.State, cb.states) {
				return r.say(ctx, t, textButtonExpired, nil)
			}
			return cb.handle(ctx, t, key)
		}
	}
	logger.LogEvent(ctx, logger.Component("dialog"), slog.LevelWarn, "dialog.callback_unknown",
		slog.String("cb_key", logger.SanitizeLimit(data, 64)),
	)
	return r.say(ctx, t, TextUnknownInput, nil)
}

func stateIn(st state.State, allowed []state.State) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == st {
			return true
		}
	}
	return false
}

// stale answers a button that belongs to a flow the chat is not in.
func (r *Router) stale(ctx context.Context, t *turn, command string) error {
	logger.LogEvent(ctx, logger.Component("dialog"), slog.LevelInfo, "dialog.stale",
		slog.String("cb_key", logger.SanitizeLimit(t.upd.Data, 64)),
	)
	return r.say(ctx, t, staleActionText(command), nil)
}

// reset leaves any flow and shows the welcome menu. Slots are untouched.
func (r *Router) reset(ctx context.Context, t *turn) error {
	t.sess.End()
	return r.send(ctx, t, tghelpers.Outgoing{
		Text:   welcomeText(t.upd.User),
		Mode:   format.HTML,
		Markup: MainMenu(),
	})
}

// finish strips the pressed button's controls, clears every slot and resets.
func (r *Router) finish(ctx context.Context, t *turn) error {
	r.removeControls(ctx, t)
	t.sess.Data = Slots{}
	logger.LogEvent(ctx, logger.Component("dialog"), slog.LevelInfo, "dialog.finish",
		slog.String("cb_key", t.upd.Data),
	)
	return r.reset(ctx, t)
}

func (r *Router) removeControls(ctx context.Context, t *turn) {
	ref := t.upd.Message
	if !ref.Valid() {
		return
	}
	if err := r.ch.RemoveControls(ctx, ref); err != nil {
		logger.LogEvent(ctx, logger.Component("dialog"), slog.LevelWarn, "dialog.controls_remove_failed",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

func (r *Router) say(ctx context.Context, t *turn, text string, markup *keyboard.Markup) error {
	return r.send(ctx, t, tghelpers.Outgoing{Text: text, Markup: markup})
}

func (r *Router) send(ctx context.Context, t *turn, msg tghelpers.Outgoing) error {
	_, err := r.ch.SendText(ctx, t.chatID(), msg)
	return err
}

// edit replaces the text of the pressed button's message, or sends a new
// message when the callback carried no message.
func (r *Router) edit(ctx context.Context, t *turn, text string, markup *keyboard.Markup) error {
	if !t.upd.Message.Valid() {
		return r.say(ctx, t, text, markup)
	}
	return r.ch.EditText(ctx, t.upd.Message, tghelpers.Outgoing{Text: text, Markup: markup})
}

func (r *Router) action(ctx context.Context, t *turn, a tghelpers.ChatAction) {
	if err := r.ch.SendAction(ctx, t.chatID(), a); err != nil {
		logger.LogEvent(ctx, logger.Component("dialog"), slog.LevelDebug, "dialog.action_failed",
			slog.String("err", logger.SanitizeLimit(err.Error(), 128)),
		)
	}
}

// sendImage sends an asset picture. It reports false when the asset could
// not be loaded so the caller can degrade to text. Transport failures are
// logged only.
func (r *Router) sendImage(ctx context.Context, t *turn, name string) bool {
	if r.assets == nil {
		return false
	}
	data, err := fs.ReadFile(r.assets, name)
	if err != nil {
		logger.LogEvent(ctx, logger.Component("dialog"), slog.LevelWarn, "dialog.asset_missing",
			slog.String("payload", name),
			slog.String("err", logger.SanitizeLimit(err.Error(), 128)),
		)
		return false
	}
	if err := r.ch.SendPhoto(ctx, t.chatID(), data); err != nil {
		logger.LogEvent(ctx, logger.Component("dialog"), slog.LevelWarn, "dialog.photo_failed",
			slog.String("payload", name),
			slog.String("err", logger.SanitizeLimit(err.Error(), 128)),
		)
	}
	return true
}

// logModelFailure records a gateway failure that the flow recovered from.
func logModelFailure(ctx context.Context, op string, err error) {
	logger.LogEvent(ctx, logger.Component("dialog"), slog.LevelWarn, "dialog.model_failed",
		slog.String("operation", op),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}
