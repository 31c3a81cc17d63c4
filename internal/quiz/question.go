// Package quiz implements the quiz question protocol: prompting the model for
// a multiple choice question, validating its free-text answer and judging the
// user's reply.
package quiz

import (
	"errors"
	"fmt"
	"strings"
)

// Marker separates the question from the correct letter in model output.
const Marker = "CORRECT ANSWER:"

// ErrMalformed reports model output that does not follow the question format.
var ErrMalformed = errors.New("quiz: malformed question")

// Letters are the accepted answer options.
var Letters = []string{"A", "B", "C", "D"}

// Question is a parsed multiple choice question.
type Question struct {
	// Text holds the question and its A) to D) options.
	Text string
	// Letter is the correct option.
	Letter string
}

// Valid reports whether both parts of the question are present.
func (q Question) Valid() bool {
	return q.Text != "" && IsLetter(q.Letter)
}

// IsLetter reports whether s is one of A, B, C or D.
func IsLetter(s string) bool {
	for _, l := range Letters {
		if s == l {
			return true
		}
	}
	return false
}

// NormalizeAnswer turns user input into an option letter. Only a single
// letter, in either case and surrounded by optional spaces, is accepted.
func NormalizeAnswer(input string) (string, bool) {
	letter := strings.ToUpper(strings.TrimSpace(input))
	return letter, IsLetter(letter)
}

// Parse splits raw model output on Marker. The output is valid only when the
// marker occurs exactly once and the first word after it is exactly an option letter.
func Parse(raw string) (Question, error) {
	parts := strings.Split(raw, Marker)
	if len(parts) != 2 {
		return Question{}, fmt.Errorf("%w: marker found %d times", ErrMalformed, len(parts)-1)
	}
	text := strings.TrimSpace(parts[0])
	if text == "" {
		return Question{}, fmt.Errorf("%w: empty question", ErrMalformed)
	}
	fields := strings.Fields(strings.ToUpper(parts[1]))
	if len(fields) == 0 {
		return Question{}, fmt.Errorf("%w: missing letter", ErrMalformed)
	}
	letter := fields[0]
	if !IsLetter(letter) {
		return Question{}, fmt.Errorf("%w: unexpected letter %q", ErrMalformed, fields[0])
	}
	return Question{Text: text, Letter: letter}, nil
}
