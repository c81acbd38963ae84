package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/conorfennell/part5srs/internal/domain"
)

type reviewLogRow struct {
	QuestionID      string `db:"question_id"`
	ReviewedAt      int64  `db:"reviewed_at"`
	Quality         int    `db:"quality"`
	Correct         bool   `db:"correct"`
	IntervalSeconds int64  `db:"interval_seconds"`
}

// AppendReviewLog records one answer in the review history.
func (db *DB) AppendReviewLog(ctx context.Context, log domain.ReviewLog) error {
	row := reviewLogRow{
		QuestionID:      log.QuestionID,
		ReviewedAt:      log.ReviewedAt.Unix(),
		Quality:         log.Quality,
		Correct:         log.Correct,
		IntervalSeconds: log.IntervalSeconds,
	}
	return db.withRetry(ctx, "append review log", func() error {
		_, err := db.conn.NamedExecContext(ctx, `
			INSERT INTO review_logs (question_id, reviewed_at, quality, correct, interval_seconds)
			VALUES (:question_id, :reviewed_at, :quality, :correct, :interval_seconds)
		`, row)
		if err != nil {
			return fmt.Errorf("failed to append review log for %s: %w", log.QuestionID, err)
		}
		return nil
	})
}

// ReviewHistory returns the answers recorded for a question, oldest first.
func (db *DB) ReviewHistory(ctx context.Context, questionID string) ([]domain.ReviewLog, error) {
	var rows []reviewLogRow
	err := db.withRetry(ctx, "review history", func() error {
		rows = rows[:0]
		err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(`
			SELECT question_id, reviewed_at, quality, correct, interval_seconds
			FROM review_logs WHERE question_id = ?
			ORDER BY reviewed_at ASC, id ASC
		`), questionID)
		if err != nil {
			return fmt.Errorf("failed to get review history for %s: %w", questionID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logs := make([]domain.ReviewLog, len(rows))
	for i, row := range rows {
		logs[i] = domain.ReviewLog{
			QuestionID:      row.QuestionID,
			ReviewedAt:      time.Unix(row.ReviewedAt, 0),
			Quality:         row.Quality,
			Correct:         row.Correct,
			IntervalSeconds: row.IntervalSeconds,
		}
	}
	return logs, nil
}

// Stats summarises the review state at asOf.
func (db *DB) Stats(ctx context.Context, asOf time.Time) (domain.Stats, error) {
	var row struct {
		Records int `db:"records"`
		Due     int `db:"due"`
		Mature  int `db:"mature"`
		Reviews int `db:"reviews"`
		Correct int `db:"correct"`
	}
	err := db.withRetry(ctx, "stats", func() error {
		err := db.conn.GetContext(ctx, &row, db.conn.Rebind(`
			SELECT
				(SELECT COUNT(*) FROM review_records) AS records,
				(SELECT COUNT(*) FROM review_records WHERE next_review <= ?) AS due,
				(SELECT COUNT(*) FROM review_records WHERE last_interval_seconds >= ?) AS mature,
				(SELECT COUNT(*) FROM review_logs) AS reviews,
				(SELECT COUNT(*) FROM review_logs WHERE correct) AS correct
		`), asOf.Unix(), int64(domain.MatureIntervalDays)*domain.SecondsPerDay)
		if err != nil {
			return fmt.Errorf("failed to compute stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Stats{}, err
	}
	stats := domain.Stats{
		Records: row.Records,
		Due:     row.Due,
		Mature:  row.Mature,
		Reviews: row.Reviews,
		Correct: row.Correct,
	}
	if stats.Reviews > 0 {
		stats.Accuracy = float64(stats.Correct) / float64(stats.Reviews)
	}
	return stats, nil
}
