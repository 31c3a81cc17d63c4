// Package llm is the language model gateway: chat completion, speech
// recognition and speech synthesis behind one small interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/m3rciful/dialogbot/core/logger"
	"github.com/m3rciful/dialogbot/internal/config"
)

// Role marks who authored a chat turn.
type Role string

const (
	RoleSystem    Role = openai.ChatMessageRoleSystem
	RoleUser      Role = openai.ChatMessageRoleUser
	RoleAssistant Role = openai.ChatMessageRoleAssistant
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// AskOptions carries the optional parts of a chat request.
type AskOptions struct {
	History   []Message
	System    string
	MaxTokens int
}

// Reply is the result of Ask. Text is always displayable: on failure it holds
// a human-readable fallback and Err the cause.
type Reply struct {
	Text string
	Err  error
}

// OK reports whether the model produced an answer.
func (r Reply) OK() bool { return r.Err == nil }

// Gateway is the language model capability used by dialog sessions.
type Gateway interface {
	Ask(ctx context.Context, prompt string, opts AskOptions) Reply
	Transcribe(ctx context.Context, audioPath string) (string, bool)
	TextToSpeech(ctx context.Context, text string) ([]byte, bool)
}

// ErrEmptyResponse is reported when the model returns no choices.
var ErrEmptyResponse = errors.New("llm: empty response")

const (
	fallbackPrefix = "An error occurred while contacting ChatGPT: "
	strangeReply   = "Sorry, I received a strange response."
)

// Options configures OpenAIGateway.
type Options struct {
	ChatModel          string
	TranscriptionModel string
	SpeechModel        string
	Voice              string
	Timeout            time.Duration
	MaxTokens          int
	Temperature        float32
}

// OptionsFromConfig maps the openai config section onto gateway options.
func OptionsFromConfig(cfg config.OpenAIConfig) Options {
	return Options{
		ChatModel:          cfg.ChatModel,
		TranscriptionModel: cfg.TranscriptionModel,
		SpeechModel:        cfg.SpeechModel,
		Voice:              cfg.Voice,
		Timeout:            cfg.Timeout(),
		MaxTokens:          cfg.MaxTokens,
		Temperature:        cfg.Temperature,
	}
}

// OpenAIGateway implements Gateway on top of the OpenAI HTTP API or any
// compatible endpoint.
type OpenAIGateway struct {
	client *openai.Client
	opts   Options
}

// NewOpenAIGateway builds a gateway from the openai config section.
func NewOpenAIGateway(cfg config.OpenAIConfig) *OpenAIGateway {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = base
	}
	return NewWithClient(openai.NewClientWithConfig(clientCfg), OptionsFromConfig(cfg))
}

// NewWithClient wraps an existing client.
func NewWithClient(client *openai.Client, opts Options) *OpenAIGateway {
	if opts.ChatModel == "" {
		opts.ChatModel = openai.GPT3Dot5Turbo
	}
	if opts.TranscriptionModel == "" {
		opts.TranscriptionModel = openai.Whisper1
	}
	if opts.SpeechModel == "" {
		opts.SpeechModel = string(openai.TTSModel1HD)
	}
	if opts.Voice == "" {
		opts.Voice = string(openai.VoiceNova)
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1500
	}
	return &OpenAIGateway{client: client, opts: opts}
}

func (g *OpenAIGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.opts.Timeout)
}

// BuildMessages assembles the request conversation: system prompt, history, then the prompt.
func BuildMessages(prompt string, opts AskOptions) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(opts.History)+2)
	if opts.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: opts.System})
	}
	for _, m := range opts.History {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
}

// Ask sends prompt with optional history and system instruction. It never
// fails outright; see Reply.
func (g *OpenAIGateway) Ask(ctx context.Context, prompt string, opts AskOptions) Reply {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.opts.MaxTokens
	}
	req := openai.ChatCompletionRequest{
		Model:       g.opts.ChatModel,
		Messages:    BuildMessages(prompt, opts),
		MaxTokens:   maxTokens,
		Temperature: g.opts.Temperature,
	}

	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	resp, err := g.client.CreateChatCompletion(callCtx, req)
	took := logger.Took(start)

	attrs := []slog.Attr{
		slog.String("model", g.opts.ChatModel),
		slog.Int("prompt_chars", logger.Chars(prompt)),
		slog.Int("history", len(opts.History)),
		slog.Int64("llm_duration_ms", took.Milliseconds()),
	}
	if err != nil {
		logger.LogEvent(ctx, logger.Component("llm"), slog.LevelWarn, "llm.ask", append(attrs,
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)...)
		return Reply{Text: fallbackPrefix + err.Error(), Err: fmt.Errorf("llm: chat completion: %w", err)}
	}
	if len(resp.Choices) == 0 {
		logger.LogEvent(ctx, logger.Component("llm"), slog.LevelWarn, "llm.ask", append(attrs,
			slog.String("status", "fail"),
			slog.String("err_code", "EMPTY_RESPONSE"),
		)...)
		return Reply{Text: strangeReply, Err: ErrEmptyResponse}
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	logger.LogEvent(ctx, logger.Component("llm"), slog.LevelInfo, "llm.ask", append(attrs,
		slog.String("status", "ok"),
		slog.Int("reply_chars", logger.Chars(text)),
	)...)
	return Reply{Text: text}
}

// Transcribe converts the audio file at audioPath to text. ok is false when
// the call fails or nothing was recognized.
func (g *OpenAIGateway) Transcribe(ctx context.Context, audioPath string) (string, bool) {
	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	resp, err := g.client.CreateTranscription(callCtx, openai.AudioRequest{
		Model:    g.opts.TranscriptionModel,
		FilePath: audioPath,
	})
	attrs := []slog.Attr{
		slog.String("model", g.opts.TranscriptionModel),
		slog.Int64("llm_duration_ms", logger.Took(start).Milliseconds()),
	}
	if err != nil {
		logger.LogEvent(ctx, logger.Component("llm"), slog.LevelWarn, "llm.transcribe", append(attrs,
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)...)
		return "", false
	}
	text := strings.TrimSpace(resp.Text)
	logger.LogEvent(ctx, logger.Component("llm"), slog.LevelInfo, "llm.transcribe", append(attrs,
		slog.String("status", logger.Status(nil)),
		slog.Int("reply_chars", logger.Chars(text)),
	)...)
	return text, text != ""
}

// TextToSpeech synthesizes text as Opus audio suitable for a voice message.
func (g *OpenAIGateway) TextToSpeech(ctx context.Context, text string) ([]byte, bool) {
	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	attrs := []slog.Attr{
		slog.String("model", g.opts.SpeechModel),
		slog.Int("prompt_chars", logger.Chars(text)),
	}
	audio, err := g.speech(callCtx, text)
	attrs = append(attrs, slog.Int64("llm_duration_ms", logger.Took(start).Milliseconds()))
	if err != nil {
		logger.LogEvent(ctx, logger.Component("llm"), slog.LevelWarn, "llm.speech", append(attrs,
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)...)
		return nil, false
	}
	logger.LogEvent(ctx, logger.Component("llm"), slog.LevelInfo, "llm.speech", append(attrs, slog.String("status", "ok"))...)
	return audio, len(audio) > 0
}

func (g *OpenAIGateway) speech(ctx context.Context, text string) ([]byte, error) {
	resp, err := g.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(g.opts.SpeechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(g.opts.Voice),
		ResponseFormat: openai.SpeechResponseFormatOpus,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	return io.ReadAll(resp)
}

func errorCode(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("API_%d", apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("HTTP_%d", reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT"
	}
	return "REQUEST_FAILED"
}
