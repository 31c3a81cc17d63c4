package helpers

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/m3rciful/dialogbot/core/telegram/format"
	"github.com/m3rciful/dialogbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// ErrNotAttached is returned by Channel calls made before the bot is running.
var ErrNotAttached = errors.New("telegram channel: bot not attached")

// ChatAction is a chat status shown while the bot works.
type ChatAction string

const (
	// ActionTyping shows "typing...".
	ActionTyping ChatAction = "typing"
	// ActionRecordVoice shows "recording voice message...".
	ActionRecordVoice ChatAction = "record_voice"
)

// Outgoing is a text message with optional formatting and keyboard.
type Outgoing struct {
	Text   string
	Mode   format.ParseMode
	Markup *keyboard.Markup
}

// MessageRef points at a message already delivered to a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Valid reports whether the reference names a real message.
func (r MessageRef) Valid() bool {
	return r.ChatID != 0 && r.MessageID != 0
}

func (r MessageRef) editable() tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(r.MessageID), ChatID: r.ChatID}
}

// BotAPI is the subset of *tele.Bot used by Channel.
type BotAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	EditReplyMarkup(msg tele.Editable, markup *tele.ReplyMarkup) (*tele.Message, error)
	Notify(to tele.Recipient, action tele.ChatAction, threadID ...int) error
	Download(file *tele.File, localFilename string) error
}

type botHolder struct{ api BotAPI }

// Channel sends dialog output to Telegram chats through the shared dispatcher.
// It is usable once Attach has been called with the running bot.
type Channel struct {
	bot atomic.Pointer[botHolder]
}

// NewChannel returns a detached channel.
func NewChannel() *Channel {
	return &Channel{}
}

// Attach binds the channel to a bot; it may be called again to swap bots.
func (ch *Channel) Attach(api BotAPI) {
	if api == nil {
		ch.bot.Store(nil)
		return
	}
	ch.bot.Store(&botHolder{api: api})
}

func (ch *Channel) api() (BotAPI, error) {
	h := ch.bot.Load()
	if h == nil {
		return nil, ErrNotAttached
	}
	return h.api, nil
}

func sendOptions(mode format.ParseMode, markup *keyboard.Markup) *tele.SendOptions {
	return &tele.SendOptions{ParseMode: tele.ParseMode(mode), ReplyMarkup: keyboard.ToTele(markup)}
}

// SendText delivers msg to the chat and returns a reference to it.
func (ch *Channel) SendText(ctx context.Context, chatID int64, msg Outgoing) (MessageRef, error) {
	api, err := ch.api()
	if err != nil {
		return MessageRef{}, err
	}
	var sent *tele.Message
	err = call{chatID: chatID, action: "send.text", endpoint: "sendMessage", run: func() error {
		var sendErr error
		sent, sendErr = api.Send(tele.ChatID(chatID), msg.Text, sendOptions(msg.Mode, msg.Markup))
		return sendErr
	}}.wait(ctx)
	if err != nil {
		return MessageRef{}, err
	}
	CountersFrom(ctx).Add(!msg.Markup.Empty())
	ref := MessageRef{ChatID: chatID}
	if sent != nil {
		ref.MessageID = sent.ID
	}
	return ref, nil
}

// SendPhoto uploads an image to the chat.
func (ch *Channel) SendPhoto(ctx context.Context, chatID int64, data []byte) error {
	api, err := ch.api()
	if err != nil {
		return err
	}
	err = call{chatID: chatID, action: "send.photo", endpoint: "sendPhoto", run: func() error {
		_, sendErr := api.Send(tele.ChatID(chatID), &tele.Photo{File: tele.FromReader(bytes.NewReader(data))})
		return sendErr
	}}.wait(ctx)
	if err == nil {
		CountersFrom(ctx).Add(false)
	}
	return err
}

// SendVoice uploads an OGG/Opus clip as a voice message.
func (ch *Channel) SendVoice(ctx context.Context, chatID int64, audio []byte, markup *keyboard.Markup) error {
	api, err := ch.api()
	if err != nil {
		return err
	}
	err = call{chatID: chatID, action: "send.voice", endpoint: "sendVoice", run: func() error {
		voice := &tele.Voice{File: tele.FromReader(bytes.NewReader(audio)), MIME: "audio/ogg"}
		_, sendErr := api.Send(tele.ChatID(chatID), voice, sendOptions(format.Plain, markup))
		return sendErr
	}}.wait(ctx)
	if err == nil {
		CountersFrom(ctx).Add(!markup.Empty())
	}
	return err
}

// SendAction shows a chat action; delivery is not awaited.
func (ch *Channel) SendAction(ctx context.Context, chatID int64, action ChatAction) error {
	api, err := ch.api()
	if err != nil {
		return err
	}
	return call{chatID: chatID, action: "send.action", endpoint: "sendChatAction", run: func() error {
		return api.Notify(tele.ChatID(chatID), tele.ChatAction(action))
	}}.fire(ctx)
}

// EditText replaces the text and keyboard of a delivered message.
func (ch *Channel) EditText(ctx context.Context, ref MessageRef, msg Outgoing) error {
	api, err := ch.api()
	if err != nil {
		return err
	}
	err = call{chatID: ref.ChatID, action: "edit.text", endpoint: "editMessageText", run: func() error {
		_, editErr := api.Edit(ref.editable(), msg.Text, sendOptions(msg.Mode, msg.Markup))
		return editErr
	}}.wait(ctx)
	if err == nil {
		CountersFrom(ctx).Add(!msg.Markup.Empty())
	}
	return err
}

// RemoveControls strips the inline keyboard from a delivered message.
func (ch *Channel) RemoveControls(ctx context.Context, ref MessageRef) error {
	api, err := ch.api()
	if err != nil {
		return err
	}
	return call{chatID: ref.ChatID, action: "edit.markup", endpoint: "editMessageReplyMarkup", run: func() error {
		_, editErr := api.EditReplyMarkup(ref.editable(), nil)
		return editErr
	}}.wait(ctx)
}

// Download stores the Telegram file fileID at path.
func (ch *Channel) Download(ctx context.Context, fileID, path string) error {
	api, err := ch.api()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return api.Download(&tele.File{FileID: fileID}, path)
}
