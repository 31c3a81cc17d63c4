package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/dedent"

	"github.com/m3rciful/dialogbot/core/logger"
	"github.com/m3rciful/dialogbot/internal/llm"
)

// ErrExhausted is returned when no attempt produced a valid question.
var ErrExhausted = errors.New("quiz: question generation attempts exhausted")

// Asker is the part of the language model gateway the quiz needs.
type Asker interface {
	Ask(ctx context.Context, prompt string, opts llm.AskOptions) llm.Reply
}

const (
	defaultAttempts = 3
	defaultDelay    = time.Second
)

// FirstPrompt requests the first question on topic and spells out the format.
func FirstPrompt(topic string) string {
	return strings.TrimSpace(dedent.Dedent(fmt.Sprintf(`
		Generate a quiz question on the topic '%s'.
		In the response, first write the question itself.
		Then, on new lines, write four answer options, labeled A), B), C), D).
		The answer options must not be repeated.
		After that, on a COMPLETELY NEW LINE, after the marker 'CORRECT ANSWER:',
		provide only the LETTER of the correct answer (A, B, C, or D).

		Example:
		What city is the capital of France?
		A) Berlin
		B) Madrid
		C) Paris
		D) Rome
		CORRECT ANSWER: C
	`, topic)))
}

// NextPrompt requests another question relying on the generation history for the format.
func NextPrompt(topic string) string {
	return fmt.Sprintf("Great, now generate another, completely different question on the same topic ('%s'), in the same format.", topic)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the production Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Generator runs the bounded generate-and-validate loop.
type Generator struct {
	Model    Asker
	Attempts int
	Delay    time.Duration
	Sleep    Sleeper
}

// NewGenerator returns a generator with 3 attempts spaced one second apart
// unless overridden by positive values.
func NewGenerator(model Asker, attempts int, delay time.Duration) *Generator {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	if delay <= 0 {
		delay = defaultDelay
	}
	return &Generator{Model: model, Attempts: attempts, Delay: delay, Sleep: Sleep}
}

// Generated is a validated question together with the exchange that produced
// it, ready to be appended to the generation history.
type Generated struct {
	Question Question
	Prompt   string
	Raw      string
	Attempt  int
}

// Turns returns the prompt/response pair as history entries.
func (g Generated) Turns() []llm.Message {
	return []llm.Message{
		{Role: llm.RoleUser, Content: g.Prompt},
		{Role: llm.RoleAssistant, Content: g.Raw},
	}
}

// Generate asks for a question on topic. An empty history asks for the first
// question; otherwise a different one in the same format. Model failures and
// malformed output both consume an attempt.
func (g *Generator) Generate(ctx context.Context, topic string, history []llm.Message) (Generated, error) {
	attempts := g.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	sleep := g.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	delay := max(g.Delay, 0)

	prompt := FirstPrompt(topic)
	if len(history) > 0 {
		prompt = NextPrompt(topic)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		reply := g.Model.Ask(ctx, prompt, llm.AskOptions{History: history})
		attrs := []slog.Attr{
			slog.String("topic", topic),
			slog.Int("attempt", attempt),
			slog.Int("attempts", attempts),
			slog.Duration("duration", logger.RoundMS(logger.Took(start))),
		}
		if reply.Err != nil {
			lastErr = reply.Err
		} else {
			q, err := Parse(reply.Text)
			if err == nil {
				logger.LogEvent(ctx, logger.Component("quiz"), slog.LevelInfo, "quiz.generate.attempt",
					append(attrs, slog.String("status", "ok"))...)
				return Generated{Question: q, Prompt: prompt, Raw: reply.Text, Attempt: attempt}, nil
			}
			lastErr = err
		}
		logger.LogEvent(ctx, logger.Component("quiz"), slog.LevelWarn, "quiz.generate.attempt",
			append(attrs,
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(lastErr.Error(), 200)),
			)...)

		if attempt < attempts {
			if err := sleep(ctx, delay); err != nil {
				return Generated{}, fmt.Errorf("%w: %w", ErrExhausted, err)
			}
		}
	}
	return Generated{}, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}
