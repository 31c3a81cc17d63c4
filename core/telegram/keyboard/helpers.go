package keyboard

import tele "gopkg.in/telebot.v4"

// Button is an inline button carrying raw callback data.
type Button struct {
	Text string
	Data string
}

// Markup describes a keyboard independently of the transport. At most one of
// Inline, Reply or Remove is expected to be set.
type Markup struct {
	Inline [][]Button
	Reply  [][]string
	// OneTime hides the reply keyboard after a button press.
	OneTime bool
	Remove  bool
}

// Empty reports whether the markup carries no keyboard change at all.
func (m *Markup) Empty() bool {
	return m == nil || (len(m.Inline) == 0 && len(m.Reply) == 0 && !m.Remove)
}

// RemoveKeyboard returns a markup that hides the reply keyboard.
func RemoveKeyboard() *Markup {
	return &Markup{Remove: true}
}

// ReplyButtons builds a resizable reply keyboard from rows of labels.
func ReplyButtons(oneTime bool, rows ...[]string) *Markup {
	return &Markup{Reply: rows, OneTime: oneTime}
}

// InlineButtons builds an inline keyboard where each button is placed on its own row.
func InlineButtons(buttons ...Button) *Markup {
	return InlineButtonsNPerRow(buttons, 1)
}

// InlineButtonsNPerRow splits a flat list of buttons into rows with up to n buttons per row.
// If n <= 1, it behaves like InlineButtons (one per row).
func InlineButtonsNPerRow(buttons []Button, n int) *Markup {
	if n < 1 {
		n = 1
	}
	var rows [][]Button
	for i := 0; i < len(buttons); i += n {
		end := min(i+n, len(buttons))
		rows = append(rows, buttons[i:end])
	}
	return &Markup{Inline: rows}
}

// ToTele converts markup into telebot's representation. Inline buttons use
// raw callback data (no telebot "\f" unique prefix) so that callbacks arrive
// on tele.OnCallback with the data untouched.
func ToTele(m *Markup) *tele.ReplyMarkup {
	if m.Empty() {
		return nil
	}
	switch {
	case len(m.Inline) > 0:
		inline := make([][]tele.InlineButton, 0, len(m.Inline))
		for _, row := range m.Inline {
			r := make([]tele.InlineButton, 0, len(row))
			for _, b := range row {
				r = append(r, tele.InlineButton{Text: b.Text, Data: b.Data})
			}
			inline = append(inline, r)
		}
		return &tele.ReplyMarkup{InlineKeyboard: inline}
	case len(m.Reply) > 0:
		rows := make([][]tele.ReplyButton, 0, len(m.Reply))
		for _, row := range m.Reply {
			r := make([]tele.ReplyButton, 0, len(row))
			for _, label := range row {
				r = append(r, tele.ReplyButton{Text: label})
			}
			rows = append(rows, r)
		}
		return &tele.ReplyMarkup{ReplyKeyboard: rows, ResizeKeyboard: true, OneTimeKeyboard: m.OneTime}
	default:
		return &tele.ReplyMarkup{RemoveKeyboard: true}
	}
}
