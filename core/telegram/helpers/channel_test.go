package helpers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/dialogbot/core/telegram/format"
	"github.com/m3rciful/dialogbot/core/telegram/keyboard"
)

type fakeBot struct {
	sent     []interface{}
	opts     []*tele.SendOptions
	edited   []tele.Editable
	cleared  int
	actions  []tele.ChatAction
	download string
	sendErr  error
}

func (f *fakeBot) Send(_ tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, what)
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			f.opts = append(f.opts, so)
		}
	}
	return &tele.Message{ID: len(f.sent)}, nil
}

func (f *fakeBot) Edit(msg tele.Editable, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.edited = append(f.edited, msg)
	return &tele.Message{}, nil
}

func (f *fakeBot) EditReplyMarkup(tele.Editable, *tele.ReplyMarkup) (*tele.Message, error) {
	f.cleared++
	return &tele.Message{}, nil
}

func (f *fakeBot) Notify(_ tele.Recipient, action tele.ChatAction, _ ...int) error {
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeBot) Download(file *tele.File, path string) error {
	f.download = file.FileID + "->" + path
	return nil
}

func TestChannelRequiresAttach(t *testing.T) {
	ch := NewChannel()
	_, err := ch.SendText(context.Background(), 1, Outgoing{Text: "hi"})
	assert.ErrorIs(t, err, ErrNotAttached)
}

func TestChannelSendsAndCounts(t *testing.T) {
	bot := &fakeBot{}
	ch := NewChannel()
	ch.Attach(bot)
	ctx, counters := WithCounters(context.Background())

	ref, err := ch.SendText(ctx, 5, Outgoing{
		Text:   "*score*",
		Mode:   format.Markdown,
		Markup: keyboard.InlineButtons(keyboard.Button{Text: "Finish", Data: "finish"}),
	})
	require.NoError(t, err)
	assert.Equal(t, MessageRef{ChatID: 5, MessageID: 1}, ref)
	require.Len(t, bot.opts, 1)
	assert.Equal(t, tele.ModeMarkdown, bot.opts[0].ParseMode)
	assert.Equal(t, "finish", bot.opts[0].ReplyMarkup.InlineKeyboard[0][0].Data)

	require.NoError(t, ch.SendPhoto(ctx, 5, []byte{0xff, 0xd8}))
	require.NoError(t, ch.SendVoice(ctx, 5, []byte("OggS"), nil))
	require.NoError(t, ch.EditText(ctx, ref, Outgoing{Text: "edited"}))
	require.NoError(t, ch.RemoveControls(ctx, ref))
	require.NoError(t, ch.SendAction(ctx, 5, ActionTyping))
	require.NoError(t, ch.Download(ctx, "file-1", "/tmp/x.ogg"))

	msgs, kb := counters.Snapshot()
	assert.Equal(t, 4, msgs)
	assert.True(t, kb)
	assert.Equal(t, 1, bot.cleared)
	assert.Equal(t, []tele.ChatAction{"typing"}, bot.actions)
	assert.Equal(t, "file-1->/tmp/x.ogg", bot.download)

	msgID, chatID := bot.edited[0].MessageSig()
	assert.Equal(t, "1", msgID)
	assert.Equal(t, int64(5), chatID)
}

func TestChannelPropagatesSendErrors(t *testing.T) {
	boom := errors.New("forbidden: bot was blocked by the user")
	ch := NewChannel()
	ch.Attach(&fakeBot{sendErr: boom})
	ctx, counters := WithCounters(context.Background())

	_, err := ch.SendText(ctx, 9, Outgoing{Text: "hello"})
	assert.ErrorIs(t, err, boom)
	msgs, _ := counters.Snapshot()
	assert.Zero(t, msgs)
}
