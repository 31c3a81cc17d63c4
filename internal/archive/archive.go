// Package archive persists finished quizzes to Postgres.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/dialogbot/core/logger"
	"github.com/m3rciful/dialogbot/internal/dialog"
)

const insertResult = `
INSERT INTO quiz_results (chat_id, user_id, topic, correct, total, percent, finished_at)
VALUES (:chat_id, :user_id, :topic, :correct, :total, :percent, :finished_at)`

// NamedExecer is satisfied by *sqlx.DB and *sqlx.Tx.
type NamedExecer interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

type row struct {
	ChatID     int64     `db:"chat_id"`
	UserID     int64     `db:"user_id"`
	Topic      string    `db:"topic"`
	Correct    int       `db:"correct"`
	Total      int       `db:"total"`
	Percent    int       `db:"percent"`
	FinishedAt time.Time `db:"finished_at"`
}

// Store writes quiz results.
type Store struct {
	db NamedExecer
}

// New returns a store backed by db.
func New(db NamedExecer) *Store {
	return &Store{db: db}
}

// SaveQuizResult inserts one result row.
func (s *Store) SaveQuizResult(ctx context.Context, res dialog.QuizResult) error {
	start := time.Now()
	_, err := s.db.NamedExecContext(ctx, insertResult, row{
		ChatID:     res.ChatID,
		UserID:     res.UserID,
		Topic:      res.Topic,
		Correct:    res.Correct,
		Total:      res.Total,
		Percent:    res.Percent,
		FinishedAt: res.FinishedAt.UTC(),
	})
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("topic", res.Topic),
		slog.Int("total", res.Total),
		slog.Duration("duration", logger.RoundMS(logger.Took(start))),
	}
	if err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.quiz_result", append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)...)
		return fmt.Errorf("archive: insert quiz result: %w", err)
	}
	logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "db.quiz_result", attrs...)
	return nil
}
