package dialog

import tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"

// Kind classifies an inbound update.
type Kind int

const (
	KindOther Kind = iota
	KindCommand
	KindText
	KindCallback
	KindVoice
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindText:
		return "text"
	case KindCallback:
		return "callback"
	case KindVoice:
		return "voice"
	default:
		return "other"
	}
}

// User is the sender of an update.
type User struct {
	ID        int64
	FirstName string
	Username  string
}

// Voice references a voice clip stored by the platform.
type Voice struct {
	FileID   string
	Duration int
}

// Update is a transport-independent inbound event for one chat.
type Update struct {
	ChatID int64
	User   User
	Kind   Kind
	// Command is the command name without the leading slash.
	Command string
	Text    string
	// Data is the raw callback payload.
	Data string
	// Message is the message a callback button was attached to, or the
	// message that carried text or voice.
	Message tghelpers.MessageRef
	Voice   *Voice
}
