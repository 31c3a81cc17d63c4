package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/dialogbot/core/logger"
	"github.com/m3rciful/dialogbot/core/telegram/callbacks"
	"github.com/m3rciful/dialogbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry is the routing table: slash commands with their aliases and
// reply-keyboard labels, callback namespaces and the text/media fallbacks.
// Commands are registered before the bot starts; callbacks may be added
// concurrently.
type Registry struct {
	commands map[string]commands.Command
	aliases  map[string]string
	labels   map[string]string

	cbMu      sync.RWMutex
	callbacks map[string]tele.HandlerFunc

	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
	mediaFallback    tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown-callback handler
// answers "Unsupported action".
func NewRegistry() *Registry {
	return &Registry{
		commands:  map[string]commands.Command{},
		aliases:   map[string]string{},
		labels:    map[string]string{},
		callbacks: map[string]tele.HandlerFunc{},
		callbackNotFound: func(c tele.Context) error {
			_ = c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
			return nil
		},
	}
}

func wireWarn(event string, attrs ...slog.Attr) {
	logger.LogEvent(context.Background(), logger.TWire, slog.LevelWarn, event, attrs...)
}

func slashed(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}

// RegisterCommand adds a "/name" command. Commands without a handler or a
// description are skipped, as are duplicate names, aliases and labels.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	switch {
	case r == nil || name == "" || cmd.Handler == nil || cmd.Description == "":
		wireWarn("register.command.skip", slog.String("name", name), slog.String("reason", "invalid"))
		return
	case !strings.HasPrefix(name, "/"):
		wireWarn("register.command.skip", slog.String("name", name), slog.String("reason", "no_slash_prefix"))
		return
	}
	if _, dup := r.commands[name]; dup {
		wireWarn("register.command.duplicate", slog.String("name", name))
		return
	}
	r.commands[name] = cmd

	for _, alias := range cmd.Aliases {
		alias = slashed(strings.TrimSpace(alias))
		if _, taken := r.commands[alias]; taken {
			continue
		}
		if owner, taken := r.aliases[alias]; taken {
			wireWarn("register.alias.duplicate", slog.String("name", name), slog.String("owner", owner))
			continue
		}
		r.aliases[alias] = name
	}
	for _, label := range cmd.Labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if owner, taken := r.labels[label]; taken {
			wireWarn("register.label.duplicate", slog.String("name", name), slog.String("owner", owner))
			continue
		}
		r.labels[label] = name
	}
}

// ListCommands returns the command menu sorted by name, without slashes.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		meta := r.commands[name]
		if visibleOnly && meta.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
	}
	return list
}

// LookupCommand resolves command text such as "/quiz", "quiz" or
// "/quiz@bot args" through names and aliases to the canonical name.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", commands.Command{}, false
	}
	name := slashed(text)
	if i := strings.IndexAny(name, " @"); i > 0 {
		name = name[:i]
	}
	if owner, ok := r.aliases[name]; ok {
		name = owner
	}
	cmd, ok := r.commands[name]
	if !ok {
		return "", commands.Command{}, false
	}
	return name, cmd, true
}

// LookupLabel resolves a reply-keyboard label to its command.
func (r *Registry) LookupLabel(text string) (string, commands.Command, bool) {
	name, ok := r.labels[strings.TrimSpace(text)]
	if !ok {
		return "", commands.Command{}, false
	}
	cmd, ok := r.commands[name]
	return name, cmd, ok
}

// Commands returns the registered commands by canonical name.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// RegisterCallback binds a callback namespace. A namespace ending in "_"
// takes every payload that starts with it.
func (r *Registry) RegisterCallback(namespace string, handler tele.HandlerFunc) error {
	if r == nil || namespace == "" || handler == nil {
		wireWarn("register.callback.skip", slog.String("cb_key", namespace), slog.Bool("handler_nil", handler == nil))
		return errors.New("invalid callback registration")
	}
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	if _, dup := r.callbacks[namespace]; dup {
		wireWarn("register.callback.duplicate", slog.String("cb_key", namespace))
		return fmt.Errorf("callback already registered: %s", namespace)
	}
	r.callbacks[namespace] = handler
	return nil
}

// GetCallback finds the handler for a payload: an exact namespace first,
// then the longest prefix namespace.
func (r *Registry) GetCallback(data string) (tele.HandlerFunc, string, bool) {
	r.cbMu.RLock()
	defer r.cbMu.RUnlock()
	if h, ok := r.callbacks[data]; ok {
		return h, data, true
	}
	best := ""
	for ns := range r.callbacks {
		if len(ns) > len(best) && callbacks.HasPrefix(data, ns) {
			best = ns
		}
	}
	if best == "" {
		return nil, "", false
	}
	return r.callbacks[best], best, true
}

// ListCallbacks returns the namespaces in lexical order.
func (r *Registry) ListCallbacks() []string {
	r.cbMu.RLock()
	defer r.cbMu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound replaces the unknown-callback handler; nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.callbackNotFound = h
	}
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc { return r.callbackNotFound }

// SetTextFallback handles text that is neither a command nor a label.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) { r.textFallback = h }

func (r *Registry) TextFallback() tele.HandlerFunc { return r.textFallback }

// SetMediaFallback handles voice and every other non-text message.
func (r *Registry) SetMediaFallback(h tele.HandlerFunc) { r.mediaFallback = h }

func (r *Registry) MediaFallback() tele.HandlerFunc { return r.mediaFallback }

// CommandSetter publishes the command menu; *tele.Bot implements it.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// SetupCommands publishes the visible commands, if there are any. Failure is
// logged and otherwise ignored.
func SetupCommands(bot CommandSetter, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	list := reg.ListCommands(true)
	if len(list) == 0 {
		return
	}
	ctx := context.Background()
	if err := bot.SetCommands(list); err != nil {
		logger.LogEvent(ctx, logger.TWire, slog.LevelError, "register.commands.set_failed", slog.String("err", err.Error()))
		return
	}
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = c.Text
	}
	summary, truncated := logger.SummarizeStrings(names, 10)
	logger.LogEvent(ctx, logger.TWire, slog.LevelInfo, "register.commands.set",
		slog.Int("total", len(list)),
		slog.String("payload", summary),
		slog.Bool("truncated", truncated),
	)
}
