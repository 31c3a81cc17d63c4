// Package commands describes slash commands for the registry.
package commands

import tele "gopkg.in/telebot.v4"

// Command is one registry entry. Aliases are additional slash commands.
// Labels are reply-keyboard captions that reach the same Handler as plain text.
// Hidden commands work but are left out of the Telegram command menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	Aliases     []string
	Labels      []string
	Hidden      bool
}
