// Package bot wires the dialog router into the Telegram runtime.
package bot

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/m3rciful/dialogbot/core/bootstrap"
	"github.com/m3rciful/dialogbot/core/cmd"
	coredatabase "github.com/m3rciful/dialogbot/core/database"
	"github.com/m3rciful/dialogbot/core/logger"
	tg "github.com/m3rciful/dialogbot/core/telegram"
	"github.com/m3rciful/dialogbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
	"github.com/m3rciful/dialogbot/core/telegram/router"
	"github.com/m3rciful/dialogbot/core/telegram/state"
	"github.com/m3rciful/dialogbot/internal/archive"
	"github.com/m3rciful/dialogbot/internal/config"
	"github.com/m3rciful/dialogbot/internal/dialog"
	"github.com/m3rciful/dialogbot/internal/llm"
	"github.com/m3rciful/dialogbot/internal/quiz"
	"github.com/m3rciful/dialogbot/migrations"

	tele "gopkg.in/telebot.v4"
)

const textRateLimited = "Too many requests. Please wait a moment."

// App owns the dialog router and the infrastructure it runs on.
type App struct {
	cfg      *config.Config
	infra    *bootstrap.Result
	channel  *tghelpers.Channel
	dialogs  *dialog.Router
	registry *tg.Registry
}

// Bootstrap initializes logging and the optional database, then builds the app.
func Bootstrap(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("bot: unexpected config type %T", carrier)
	}
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Migrate: func(db coredatabase.Config) error {
			return coredatabase.Migrate(context.Background(), db, migrations.Source(db.MigrationsDir))
		},
	})
	if err != nil {
		return nil, err
	}

	deps := dialog.Deps{
		Model:      llm.NewOpenAIGateway(cfg.OpenAI),
		Assets:     assetsFS(cfg.Dialog.AssetsDir),
		HistoryCap: cfg.Dialog.HistoryCap,
		TempDir:    cfg.Dialog.TempDir,
	}
	if infra.DB != nil {
		deps.Archive = archive.New(infra.DB)
	}
	return New(cfg, infra, deps), nil
}

// assetsFS returns nil for a missing directory; flows then fall back to text.
func assetsFS(dir string) fs.FS {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logger.Warn(context.Background(), "app", "assets.missing", slog.String("path", dir))
		return nil
	}
	return os.DirFS(dir)
}

// New builds the app around deps. The store, channel and quiz generator are
// created from cfg unless deps already carries them.
func New(cfg *config.Config, infra *bootstrap.Result, deps dialog.Deps) *App {
	channel := tghelpers.NewChannel()
	if deps.Channel == nil {
		deps.Channel = channel
	}
	if deps.Store == nil {
		deps.Store = state.NewStore[dialog.Slots](cfg.Dialog.SessionTTL(), nil)
	}
	if deps.Quiz == nil {
		deps.Quiz = quiz.NewGenerator(deps.Model, cfg.Dialog.QuizAttempts, cfg.Dialog.QuizRetryDelay())
	}
	a := &App{
		cfg:     cfg,
		infra:   infra,
		channel: channel,
		dialogs: dialog.NewRouter(deps),
	}
	a.registry = a.buildRegistry()
	return a
}

// Router exposes the dialog router.
func (a *App) Router() *dialog.Router { return a.dialogs }

// Registry exposes the command and callback registry.
func (a *App) Registry() *tg.Registry { return a.registry }

var entryCommands = []struct {
	name        string
	description string
	label       string
	aliases     []string
}{
	{"fact", "Get an interesting fact", dialog.LabelFact, []string{"random"}},
	{"gpt", "Ask ChatGPT a question", dialog.LabelAssistant, nil},
	{"talk", "Chat with a famous personality", dialog.LabelPersona, nil},
	{"quiz", "Take a quiz", dialog.LabelQuiz, nil},
	{"translate", "Translate text", dialog.LabelTranslate, nil},
	{"voice", "Voice conversation with ChatGPT", dialog.LabelVoice, nil},
}

// callbackNamespaces are the button payloads the dialog router understands.
var callbackNamespaces = []string{
	dialog.CbFinish,
	dialog.CbFinishFact,
	dialog.CbFinishAssistant,
	dialog.CbFinishPersona,
	dialog.CbFinishTranslate,
	dialog.CbFinishVoice,
	dialog.CbFinishQuiz,
	dialog.CbFactMore,
	dialog.CbPersonaPrefix,
	dialog.CbChangePersonality,
	dialog.CbQuizTopicPrefix,
	dialog.CbQuizMore,
	dialog.CbQuizChange,
	dialog.CbLangPrefix,
	dialog.CbChangeLang,
}

func (a *App) buildRegistry() *tg.Registry {
	reg := tg.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.command("start"),
		Description: "Main menu",
	})
	for _, ec := range entryCommands {
		reg.RegisterCommand("/"+ec.name, commands.Command{
			Handler:     a.command(ec.name),
			Description: ec.description,
			Aliases:     ec.aliases,
			Labels:      []string{ec.label},
		})
	}
	onCallback := a.handle(callbackUpdate)
	for _, ns := range callbackNamespaces {
		if err := reg.RegisterCallback(ns, onCallback); err != nil {
			logger.Warn(context.Background(), "tg.wire", "register.callback.failed",
				slog.String("cb_key", ns),
				slog.String("err", err.Error()),
			)
		}
	}
	reg.SetCallbackNotFound(onCallback)
	reg.SetTextFallback(a.handle(textUpdate))
	reg.SetMediaFallback(a.handle(mediaUpdate))
	return reg
}

func (a *App) command(name string) tele.HandlerFunc {
	return a.handle(func(c tele.Context) dialog.Update { return commandUpdate(c, name) })
}

// handle converts the telebot context and runs the dialog router with the
// request-scoped context built by the middleware chain.
func (a *App) handle(convert func(tele.Context) dialog.Update) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := convert(c)
		if upd.ChatID == 0 {
			return nil
		}
		return a.dialogs.Handle(tghelpers.BuildContext(c), upd)
	}
}

func (a *App) onLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: textRateLimited})
	}
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	_, err := a.channel.SendText(tghelpers.BuildContext(c), chat.ID, tghelpers.Outgoing{Text: textRateLimited})
	return err
}

// TelegramRunOptions describes middlewares, routes and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(a.registry)
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.registry, router.TextOptions{})...)

	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(core, a.dialogs, a.onLimited),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.channel.Attach(rt.Bot)
			logger.Info(ctx, "app", "dialog.ready",
				slog.Int("commands", len(a.registry.Commands())),
				slog.Int("callbacks", len(a.registry.ListCallbacks())),
			)
			return nil
		},
		OnStop: func(context.Context, tg.Runtime) error {
			a.channel.Attach(nil)
			return nil
		},
	}, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.infra.Close()
}
