package dialog

import (
	"context"
	"log/slog"
	"math"

	"github.com/m3rciful/dialogbot/core/logger"
	"github.com/m3rciful/dialogbot/core/telegram/format"
	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
	"github.com/m3rciful/dialogbot/core/telegram/keyboard"
	"github.com/m3rciful/dialogbot/core/telegram/state"
	"github.com/m3rciful/dialogbot/internal/quiz"
)

func (r *Router) quizFlow() *flow {
	return &flow{
		name:    FlowQuiz,
		command: "quiz",
		enter:   r.enterQuiz,
		text:    r.quizText,
		other:   r.quizOther,
		callbacks: []callbackRoute{
			{namespace: CbQuizTopicPrefix, states: []state.State{StateChoosingTopic}, handle: r.chooseTopic},
			{namespace: CbQuizMore, states: []state.State{StateReporting}, handle: func(ctx context.Context, t *turn, _ string) error {
				r.removeControls(ctx, t)
				return r.askQuestion(ctx, t)
			}},
			{namespace: CbQuizChange, states: []state.State{StateReporting}, handle: func(ctx context.Context, t *turn, _ string) error {
				r.removeControls(ctx, t)
				return r.enterQuiz(ctx, t)
			}},
		},
	}
}

func (r *Router) quizSlots(t *turn) *QuizSlots {
	if t.sess.Data.Quiz == nil {
		t.sess.Data.Quiz = &QuizSlots{}
	}
	return t.sess.Data.Quiz
}

// enterQuiz shows the score and the topic menu. The score survives topic
// changes; the picture is sent once per quiz.
func (r *Router) enterQuiz(ctx context.Context, t *turn) error {
	t.sess.Enter(FlowQuiz, StateChoosingTopic)
	q := r.quizSlots(t)
	q.ClearQuestion()
	if !q.PhotoSent {
		q.PhotoSent = true
		if !r.sendImage(ctx, t, AssetQuiz) {
			if err := r.say(ctx, t, textQuizNoImage, nil); err != nil {
				return err
			}
		}
	}
	return r.say(ctx, t, quizScoreText(q.Correct, q.Total), TopicMenu())
}

func (r *Router) chooseTopic(ctx context.Context, t *turn, key string) error {
	topic, ok := quiz.ParseTopic(key)
	if !ok {
		return r.edit(ctx, t, textQuizTopicInvalid, TopicMenu())
	}
	q := r.quizSlots(t)
	q.Topic = topic.Value
	q.GenHistory = nil
	if err := r.edit(ctx, t, quizPreparingText(topic.Value), nil); err != nil {
		return err
	}
	return r.askQuestion(ctx, t)
}

// askQuestion generates the next question for the current topic. A failed
// generation leaves the score untouched and offers the next-step menu.
func (r *Router) askQuestion(ctx context.Context, t *turn) error {
	q := r.quizSlots(t)
	t.sess.State = StateAsking
	r.action(ctx, t, tghelpers.ActionTyping)

	gen, err := r.gen.Generate(ctx, q.Topic, q.GenHistory)
	if err != nil {
		logModelFailure(ctx, "quiz.generate", err)
		t.sess.State = StateReporting
		if err := r.say(ctx, t, textQuizGenFailed, nil); err != nil {
			return err
		}
		return r.say(ctx, t, textQuizWhatNext, QuizNextMenu())
	}

	q.GenHistory = appendCapped(q.GenHistory, r.historyCap, gen.Turns()...)
	q.SetQuestion(gen.Question.Text, gen.Question.Letter)
	q.Total++
	t.sess.State = StateAwaitAnswer
	if err := r.say(ctx, t, gen.Question.Text, nil); err != nil {
		return err
	}
	return r.say(ctx, t, textQuizAnswerPrompt, keyboard.RemoveKeyboard())
}

func (r *Router) quizText(ctx context.Context, t *turn) error {
	if t.sess.State != StateAwaitAnswer {
		return r.say(ctx, t, textUseButtons, nil)
	}
	q := t.sess.Data.Quiz
	if !q.HasQuestion() {
		t.sess.End()
		return r.say(ctx, t, textQuizMissing, nil)
	}
	letter, ok := quiz.NormalizeAnswer(t.upd.Text)
	if !ok {
		return r.say(ctx, t, quizInvalidAnswerText(q.Question), keyboard.RemoveKeyboard())
	}

	r.action(ctx, t, tghelpers.ActionTyping)
	verdict, err := quiz.Judge(ctx, r.model, q.Letter, letter)
	var result string
	switch {
	case err != nil:
		logModelFailure(ctx, "quiz.judge", err)
		result = textQuizCheckFailed
	case verdict == quiz.Correct:
		q.Correct++
		result = textQuizCorrect + quizTotalText(q.Correct, q.Total)
	case verdict == quiz.Incorrect:
		result = quizIncorrectText(q.Letter) + quizTotalText(q.Correct, q.Total)
	default:
		result = textQuizUnknown + quizTotalText(q.Correct, q.Total)
	}
	logger.LogEvent(ctx, logger.Component("quiz"), slog.LevelInfo, "quiz.answer",
		slog.String("verdict", verdict.String()),
		slog.String("topic", q.Topic),
		slog.Int("correct", q.Correct),
		slog.Int("total", q.Total),
	)
	q.ClearQuestion()
	t.sess.State = StateReporting
	return r.say(ctx, t, result, QuizNextMenu())
}

func (r *Router) quizOther(ctx context.Context, t *turn) error {
	if t.sess.State == StateAwaitAnswer {
		return r.say(ctx, t, textQuizAnswerPrompt, nil)
	}
	return r.say(ctx, t, textUseButtons, nil)
}

// finishQuiz reports the final score, archives it and resets the chat.
func (r *Router) finishQuiz(ctx context.Context, t *turn) error {
	r.removeControls(ctx, t)
	q := t.sess.Data.Quiz
	if q != nil && q.Total > 0 {
		percent := int(math.Round(100 * float64(q.Correct) / float64(q.Total)))
		if err := r.send(ctx, t, tghelpers.Outgoing{
			Text: quizFinalText(q.Correct, q.Total, percent),
			Mode: format.Markdown,
		}); err != nil {
			return err
		}
		r.archiveQuiz(ctx, t, QuizResult{
			ChatID:     t.chatID(),
			UserID:     t.upd.User.ID,
			Topic:      q.Topic,
			Correct:    q.Correct,
			Total:      q.Total,
			Percent:    percent,
			FinishedAt: r.now(),
		})
	} else if err := r.say(ctx, t, textQuizNoAnswers, nil); err != nil {
		return err
	}
	t.sess.Data = Slots{}
	return r.reset(ctx, t)
}

func (r *Router) archiveQuiz(ctx context.Context, t *turn, res QuizResult) {
	if r.archive == nil {
		return
	}
	if err := r.archive.SaveQuizResult(ctx, res); err != nil {
		logger.LogEvent(ctx, logger.Component("quiz"), slog.LevelWarn, "quiz.archive_failed",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}
