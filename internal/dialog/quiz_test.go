package dialog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dialogbot/core/telegram/format"
	"github.com/m3rciful/dialogbot/core/telegram/keyboard"
	"github.com/m3rciful/dialogbot/internal/llm"
	"github.com/m3rciful/dialogbot/internal/quiz"
)

func TestQuizEndToEnd(t *testing.T) {
	h := newHarness(t)
	quizModel(h)

	h.command(t, 1, "quiz")
	msgs := h.ch.messages(1)
	require.Len(t, msgs, 2)
	assert.Equal(t, "photo", msgs[0].kind)
	assert.Equal(t, quizScoreText(0, 0), msgs[1].text)
	assert.Equal(t, TopicMenu(), msgs[1].markup)

	h.press(t, 1, CbQuizTopicPrefix+quiz.Science.Value)
	q := h.session(1).Data.Quiz
	assert.Equal(t, StateAwaitAnswer, h.session(1).State)
	assert.Equal(t, "Science", q.Topic)
	assert.Equal(t, 1, q.Total)
	assert.Equal(t, "B", q.Letter)
	assert.Equal(t, quiz.FirstPrompt("Science"), h.model.lastCall(t).prompt)
	last := h.ch.last(t, 1)
	assert.Equal(t, textQuizAnswerPrompt, last.text)
	assert.Equal(t, keyboard.RemoveKeyboard(), last.markup)

	h.text(t, 1, " b ")
	q = h.session(1).Data.Quiz
	assert.Equal(t, 1, q.Correct)
	assert.False(t, q.HasQuestion())
	assert.Equal(t, StateReporting, h.session(1).State)
	assert.Equal(t, textQuizCorrect+quizTotalText(1, 1), h.ch.last(t, 1).text)
	assert.Equal(t, QuizNextMenu(), h.ch.last(t, 1).markup)

	h.press(t, 1, CbQuizMore)
	call := h.model.lastCall(t)
	assert.Equal(t, quiz.NextPrompt("Science"), call.prompt)
	assert.Len(t, call.opts.History, 2)

	h.text(t, 1, "a")
	q = h.session(1).Data.Quiz
	assert.Equal(t, 1, q.Correct)
	assert.Equal(t, 2, q.Total)
	assert.Equal(t, quizIncorrectText("B")+quizTotalText(1, 2), h.ch.last(t, 1).text)

	h.ch.reset()
	h.press(t, 1, CbFinishQuiz)
	msgs = h.ch.messages(1)
	require.Len(t, msgs, 2)
	assert.Equal(t, format.Markdown, msgs[0].mode)
	assert.Contains(t, msgs[0].text, "Correct answers: 1 out of 2")
	assert.Contains(t, msgs[0].text, "Percentage: 50%")
	assert.Equal(t, MainMenu(), msgs[1].markup)
	assert.False(t, h.session(1).Active())
	assert.True(t, h.session(1).Data.Empty())

	require.Len(t, h.archive.results, 1)
	assert.Equal(t, QuizResult{
		ChatID: 1, UserID: 1, Topic: "Science", Correct: 1, Total: 2, Percent: 50,
		FinishedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}, h.archive.results[0])
}

func TestQuizScoreInvariant(t *testing.T) {
	h := newHarness(t)
	quizModel(h)
	h.command(t, 1, "quiz")
	h.press(t, 1, CbQuizTopicPrefix+"Art")
	answers := []string{"b", "x", "c", "b", "d"}
	for _, a := range answers {
		st := h.session(1).State
		if st == StateReporting {
			h.press(t, 1, CbQuizMore)
		}
		h.text(t, 1, a)
		q := h.session(1).Data.Quiz
		assert.GreaterOrEqual(t, q.Total, q.Correct)
		assert.GreaterOrEqual(t, q.Correct, 0)
		assert.Equal(t, q.HasQuestion(), h.session(1).State == StateAwaitAnswer)
	}
	q := h.session(1).Data.Quiz
	assert.Equal(t, 2, q.Correct)
	assert.Equal(t, 4, q.Total)
}

func TestQuizInvalidAnswerKeepsQuestion(t *testing.T) {
	h := newHarness(t)
	quizModel(h)
	h.command(t, 1, "quiz")
	h.press(t, 1, CbQuizTopicPrefix+"Sports")
	question := h.session(1).Data.Quiz.Question

	h.text(t, 1, "E")
	assert.Equal(t, quizInvalidAnswerText(question), h.ch.last(t, 1).text)
	assert.Equal(t, StateAwaitAnswer, h.session(1).State)
	assert.Equal(t, 1, h.session(1).Data.Quiz.Total)
	assert.Equal(t, 0, h.session(1).Data.Quiz.Correct)
}

func TestQuizChangeTopicKeepsScore(t *testing.T) {
	h := newHarness(t)
	quizModel(h)
	h.command(t, 1, "quiz")
	h.press(t, 1, CbQuizTopicPrefix+"History")
	h.text(t, 1, "b")

	h.ch.reset()
	h.press(t, 1, CbQuizChange)
	msgs := h.ch.messages(1)
	require.Len(t, msgs, 1, "picture is sent once per quiz")
	assert.Equal(t, quizScoreText(1, 1), msgs[0].text)
	assert.Len(t, h.ch.removed, 1)
	assert.Equal(t, StateChoosingTopic, h.session(1).State)

	h.press(t, 1, CbQuizTopicPrefix+"Geography")
	q := h.session(1).Data.Quiz
	assert.Equal(t, 1, q.Correct)
	assert.Equal(t, 2, q.Total)
	assert.Equal(t, "Geography", q.Topic)
	assert.Len(t, q.GenHistory, 2, "generation history restarts with the topic")
	assert.Equal(t, quiz.FirstPrompt("Geography"), h.model.lastCall(t).prompt)
}

func TestQuizGenerationFailure(t *testing.T) {
	h := newHarness(t)
	h.model.ask = func(string, llm.AskOptions) llm.Reply { return llm.Reply{Text: "no marker here"} }
	h.command(t, 1, "quiz")
	h.press(t, 1, CbQuizTopicPrefix+"Art")

	q := h.session(1).Data.Quiz
	assert.Equal(t, 0, q.Total)
	assert.False(t, q.HasQuestion())
	assert.Equal(t, StateReporting, h.session(1).State)
	assert.Equal(t, textQuizWhatNext, h.ch.last(t, 1).text)
	assert.Len(t, h.model.calls, 3)
}

func TestQuizTopicInvalid(t *testing.T) {
	h := newHarness(t)
	h.command(t, 1, "quiz")
	h.press(t, 1, CbQuizTopicPrefix+"Cooking")
	assert.Equal(t, textQuizTopicInvalid, h.ch.last(t, 1).text)
	assert.Equal(t, StateChoosingTopic, h.session(1).State)
}

func TestQuizVerdictUnknownAndFailure(t *testing.T) {
	h := newHarness(t)
	h.model.ask = func(prompt string, _ llm.AskOptions) llm.Reply {
		if strings.HasPrefix(prompt, "The correct answer option") {
			return llm.Reply{Text: "Perhaps"}
		}
		return llm.Reply{Text: "Q?\nA) 1\nB) 2\nC) 3\nD) 4\nCORRECT ANSWER: C"}
	}
	h.command(t, 1, "quiz")
	h.press(t, 1, CbQuizTopicPrefix+"Art")
	h.text(t, 1, "c")
	assert.Equal(t, textQuizUnknown+quizTotalText(0, 1), h.ch.last(t, 1).text)

	h.model.ask = func(prompt string, _ llm.AskOptions) llm.Reply {
		if strings.HasPrefix(prompt, "The correct answer option") {
			return failed("rate limited")
		}
		return llm.Reply{Text: "Q?\nA) 1\nB) 2\nC) 3\nD) 4\nCORRECT ANSWER: C"}
	}
	h.press(t, 1, CbQuizMore)
	h.text(t, 1, "c")
	assert.Equal(t, textQuizCheckFailed, h.ch.last(t, 1).text)
	assert.Equal(t, 0, h.session(1).Data.Quiz.Correct)
	assert.Equal(t, StateReporting, h.session(1).State)
}

func TestFinishQuizWithoutAnswers(t *testing.T) {
	h := newHarness(t)
	h.command(t, 1, "quiz")
	h.press(t, 1, CbFinishQuiz)
	msgs := h.ch.messages(1)
	assert.Equal(t, textQuizNoAnswers, msgs[len(msgs)-2].text)
	assert.Empty(t, h.archive.results)
	assert.False(t, h.session(1).Active())
}

func TestQuizMissingQuestionEnds(t *testing.T) {
	h := newHarness(t)
	h.session(1).Enter(FlowQuiz, StateAwaitAnswer)
	h.text(t, 1, "a")
	assert.Equal(t, textQuizMissing, h.ch.last(t, 1).text)
	assert.False(t, h.session(1).Active())
}
