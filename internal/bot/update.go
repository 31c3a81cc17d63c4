package bot

import (
	"strings"

	"github.com/m3rciful/dialogbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
	"github.com/m3rciful/dialogbot/internal/dialog"

	tele "gopkg.in/telebot.v4"
)

// commandName extracts "fact" from "/fact@dialog_bot extra".
func commandName(text string) string {
	text = strings.TrimPrefix(strings.TrimSpace(text), "/")
	if i := strings.IndexAny(text, " @"); i >= 0 {
		text = text[:i]
	}
	return strings.ToLower(text)
}

func baseUpdate(c tele.Context) dialog.Update {
	var upd dialog.Update
	if chat := c.Chat(); chat != nil {
		upd.ChatID = chat.ID
	}
	if u := c.Sender(); u != nil {
		upd.User = dialog.User{ID: u.ID, FirstName: u.FirstName, Username: u.Username}
	}
	if msg := c.Message(); msg != nil && msg.Chat != nil {
		upd.Message = tghelpers.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.ID}
	}
	return upd
}

// commandUpdate builds a command update for name regardless of how it was
// triggered (slash command or menu label).
func commandUpdate(c tele.Context, name string) dialog.Update {
	upd := baseUpdate(c)
	upd.Kind = dialog.KindCommand
	upd.Command = strings.TrimPrefix(name, "/")
	upd.Text = c.Text()
	return upd
}

// textUpdate classifies free text; unregistered slash commands still count as commands.
func textUpdate(c tele.Context) dialog.Update {
	text := strings.TrimSpace(c.Text())
	if strings.HasPrefix(text, "/") {
		return commandUpdate(c, commandName(text))
	}
	upd := baseUpdate(c)
	upd.Kind = dialog.KindText
	upd.Text = text
	return upd
}

func mediaUpdate(c tele.Context) dialog.Update {
	upd := baseUpdate(c)
	upd.Kind = dialog.KindOther
	if msg := c.Message(); msg != nil && msg.Voice != nil {
		upd.Kind = dialog.KindVoice
		upd.Voice = &dialog.Voice{FileID: msg.Voice.FileID, Duration: msg.Voice.Duration}
	}
	return upd
}

func callbackUpdate(c tele.Context) dialog.Update {
	upd := baseUpdate(c)
	upd.Kind = dialog.KindCallback
	upd.Data = callbacks.Data(c.Callback())
	return upd
}
