package quiz

import (
	"context"
	"fmt"
	"strings"

	"github.com/lithammer/dedent"

	"github.com/m3rciful/dialogbot/internal/llm"
)

// Verdict is the model's judgement of an answer.
type Verdict int

const (
	// Unknown means the model gave no clear yes or no; the answer is not scored.
	Unknown Verdict = iota
	Correct
	Incorrect
)

func (v Verdict) String() string {
	switch v {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return "unknown"
	}
}

// verdictMaxTokens keeps the judging call to a word or two.
const verdictMaxTokens = 10

// ParseVerdict reads a yes/no answer case-insensitively. Text mentioning both
// or neither word is Unknown.
func ParseVerdict(text string) Verdict {
	lower := strings.ToLower(strings.TrimSpace(text))
	yes := strings.Contains(lower, "yes")
	no := strings.Contains(lower, "no")
	switch {
	case yes && !no:
		return Correct
	case no && !yes:
		return Incorrect
	default:
		return Unknown
	}
}

// VerdictPrompt asks the model whether answer matches the correct letter.
func VerdictPrompt(correct, answer string) string {
	return strings.TrimSpace(dedent.Dedent(fmt.Sprintf(`
		The correct answer option was marked with the letter: %s.
		The user answered: %s.
		Did the user answer correctly? Answer with a single word: 'Yes' or 'No'.
	`, correct, answer)))
}

// Judge asks the model to compare answer with the correct letter. An error is
// returned only when the model could not be reached.
func Judge(ctx context.Context, model Asker, correct, answer string) (Verdict, error) {
	reply := model.Ask(ctx, VerdictPrompt(correct, answer), llm.AskOptions{MaxTokens: verdictMaxTokens})
	if reply.Err != nil {
		return Unknown, fmt.Errorf("quiz: judge answer: %w", reply.Err)
	}
	return ParseVerdict(reply.Text), nil
}
