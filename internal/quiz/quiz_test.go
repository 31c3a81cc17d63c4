package quiz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dialogbot/internal/llm"
)

type scriptedAsker struct {
	mu      sync.Mutex
	replies []llm.Reply
	prompts []string
	opts    []llm.AskOptions
}

func (s *scriptedAsker) Ask(_ context.Context, prompt string, opts llm.AskOptions) llm.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	s.opts = append(s.opts, opts)
	if len(s.replies) == 0 {
		return llm.Reply{Text: "no script", Err: errors.New("no script")}
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r
}

const wellFormed = "Q?\nA) x\nB) y\nC) z\nD) w\nCORRECT ANSWER: B"

func TestParse(t *testing.T) {
	q, err := Parse(wellFormed)
	require.NoError(t, err)
	assert.Equal(t, "Q?\nA) x\nB) y\nC) z\nD) w", q.Text)
	assert.Equal(t, "B", q.Letter)
	assert.True(t, q.Valid())

	q, err = Parse("Which?\nA) 1\nB) 2\nC) 3\nD) 4\nCORRECT ANSWER:  c \nbecause")
	require.NoError(t, err)
	assert.Equal(t, "C", q.Letter)

	rejected := map[string]string{
		"no marker":    "Q?\nA) x\nB) y",
		"letter E":     "Q?\nA) x\nCORRECT ANSWER: E",
		"twice":        "Q?\nCORRECT ANSWER: A\nCORRECT ANSWER: B",
		"no letter":    "Q?\nCORRECT ANSWER:   ",
		"no question":  "CORRECT ANSWER: A",
		"word answer":  "Q?\nCORRECT ANSWER: Paris",
		"lowercase mk": "Q?\ncorrect answer: A",
		"paren":        "Which?\nA) 1\nB) 2\nC) 3\nD) 4\nCORRECT ANSWER:  c) ",
		"period":       "Q?\nCORRECT ANSWER: C.",
		"punctuation":  "Q?\nCORRECT ANSWER: C).)",
	}
	for name, raw := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(raw)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestNormalizeAnswer(t *testing.T) {
	for _, in := range []string{"a", " B ", "c\n", "D"} {
		l, ok := NormalizeAnswer(in)
		assert.True(t, ok, in)
		assert.Equal(t, strings.ToUpper(strings.TrimSpace(in)), l)
	}
	for _, in := range []string{"Z", "", "AB", "A)", "answer A"} {
		_, ok := NormalizeAnswer(in)
		assert.False(t, ok, in)
	}
}

func TestParseVerdict(t *testing.T) {
	cases := map[string]Verdict{
		"Yes, correct":  Correct,
		"YES":           Correct,
		"No, incorrect": Incorrect,
		"no.":           Incorrect,
		"Maybe":         Unknown,
		"Yes and no":    Unknown,
		"":              Unknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseVerdict(in), in)
	}
	assert.Equal(t, "correct", Correct.String())
	assert.Equal(t, "unknown", Unknown.String())
}

func TestJudge(t *testing.T) {
	model := &scriptedAsker{replies: []llm.Reply{{Text: "Yes"}, {Text: "x", Err: errors.New("down")}}}

	v, err := Judge(context.Background(), model, "B", "B")
	require.NoError(t, err)
	assert.Equal(t, Correct, v)
	assert.Equal(t, 10, model.opts[0].MaxTokens)
	assert.Contains(t, model.prompts[0], "marked with the letter: B.")
	assert.Contains(t, model.prompts[0], "The user answered: B.")
	assert.False(t, strings.HasPrefix(model.prompts[0], " "))

	v, err = Judge(context.Background(), model, "B", "A")
	assert.Error(t, err)
	assert.Equal(t, Unknown, v)
}

func noSleep(calls *int) Sleeper {
	return func(_ context.Context, d time.Duration) error {
		*calls++
		return nil
	}
}

func TestGenerateFirstAttempt(t *testing.T) {
	model := &scriptedAsker{replies: []llm.Reply{{Text: wellFormed}}}
	var sleeps int
	g := &Generator{Model: model, Attempts: 3, Delay: time.Second, Sleep: noSleep(&sleeps)}

	got, err := g.Generate(context.Background(), "History", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempt)
	assert.Equal(t, "B", got.Question.Letter)
	assert.Zero(t, sleeps)
	assert.Equal(t, FirstPrompt("History"), model.prompts[0])
	assert.Contains(t, model.prompts[0], "Generate a quiz question on the topic 'History'.")

	want := []llm.Message{
		{Role: llm.RoleUser, Content: FirstPrompt("History")},
		{Role: llm.RoleAssistant, Content: wellFormed},
	}
	if diff := cmp.Diff(want, got.Turns()); diff != "" {
		t.Fatalf("turns mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateUsesHistoryForNextQuestion(t *testing.T) {
	history := []llm.Message{{Role: llm.RoleUser, Content: "p"}, {Role: llm.RoleAssistant, Content: wellFormed}}
	model := &scriptedAsker{replies: []llm.Reply{{Text: wellFormed}}}
	g := &Generator{Model: model, Sleep: noSleep(new(int))}

	_, err := g.Generate(context.Background(), "Art", history)
	require.NoError(t, err)
	assert.Equal(t, NextPrompt("Art"), model.prompts[0])
	assert.Len(t, model.opts[0].History, 2)
}

func TestGenerateRetriesMalformedAndFailures(t *testing.T) {
	model := &scriptedAsker{replies: []llm.Reply{
		{Text: "just a question"},
		{Text: "An error occurred", Err: errors.New("timeout")},
		{Text: wellFormed},
	}}
	var sleeps int
	g := &Generator{Model: model, Attempts: 3, Delay: time.Second, Sleep: noSleep(&sleeps)}

	got, err := g.Generate(context.Background(), "Science", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Attempt)
	assert.Equal(t, 2, sleeps)
	assert.Len(t, model.prompts, 3)
}

func TestGenerateExhausted(t *testing.T) {
	model := &scriptedAsker{replies: []llm.Reply{{Text: "a"}, {Text: "b"}, {Text: "c"}, {Text: wellFormed}}}
	var sleeps int
	g := &Generator{Model: model, Attempts: 3, Sleep: noSleep(&sleeps)}

	_, err := g.Generate(context.Background(), "Sports", nil)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Len(t, model.prompts, 3)
	assert.Equal(t, 2, sleeps)
}

func TestGenerateStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &scriptedAsker{replies: []llm.Reply{{Text: "bad"}, {Text: wellFormed}}}
	g := &Generator{Model: model, Attempts: 3, Delay: time.Hour, Sleep: func(ctx context.Context, d time.Duration) error {
		cancel()
		return Sleep(ctx, d)
	}}
	_, err := g.Generate(ctx, "Art", nil)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, model.prompts, 1)
}

func TestSleepHonoursDuration(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, 5, Topics.Len())
	topic, ok := ParseTopic("Geography")
	require.True(t, ok)
	assert.Equal(t, Geography, topic)
	_, ok = ParseTopic("Cooking")
	assert.False(t, ok)
}

func TestNewGeneratorDefaults(t *testing.T) {
	g := NewGenerator(&scriptedAsker{}, 0, 0)
	assert.Equal(t, 3, g.Attempts)
	assert.Equal(t, time.Second, g.Delay)
}
