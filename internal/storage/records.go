package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/conorfennell/part5srs/internal/domain"
)

// recordRow is the stored form of a domain.ReviewRecord.
type recordRow struct {
	QuestionID          string  `db:"question_id"`
	LastReviewed        int64   `db:"last_reviewed"`
	NextReview          int64   `db:"next_review"`
	RepetitionCount     int     `db:"repetition_count"`
	EaseFactor          float64 `db:"ease_factor"`
	LastIntervalSeconds int64   `db:"last_interval_seconds"`
}

func toRecordRow(r domain.ReviewRecord) recordRow {
	return recordRow{
		QuestionID:          r.QuestionID,
		LastReviewed:        r.LastReviewed.Unix(),
		NextReview:          ceilSecond(r.NextReview),
		RepetitionCount:     r.RepetitionCount,
		EaseFactor:          r.EaseFactor,
		LastIntervalSeconds: r.LastIntervalSeconds,
	}
}

// ceilSecond rounds t up to a whole Unix second, so a stored record is
// never due before its NextReview.
func ceilSecond(t time.Time) int64 {
	sec := t.Unix()
	if t.Nanosecond() > 0 {
		sec++
	}
	return sec
}

func (row recordRow) record() domain.ReviewRecord {
	return domain.ReviewRecord{
		QuestionID:          row.QuestionID,
		LastReviewed:        time.Unix(row.LastReviewed, 0),
		NextReview:          time.Unix(row.NextReview, 0),
		RepetitionCount:     row.RepetitionCount,
		EaseFactor:          row.EaseFactor,
		LastIntervalSeconds: row.LastIntervalSeconds,
	}
}

func toRecords(rows []recordRow) []domain.ReviewRecord {
	records := make([]domain.ReviewRecord, len(rows))
	for i, row := range rows {
		records[i] = row.record()
	}
	return records
}

const selectRecords = `
	SELECT question_id, last_reviewed, next_review, repetition_count, ease_factor, last_interval_seconds
	FROM review_records`

const upsertRecord = `
	INSERT INTO review_records (question_id, last_reviewed, next_review, repetition_count, ease_factor, last_interval_seconds)
	VALUES (:question_id, :last_reviewed, :next_review, :repetition_count, :ease_factor, :last_interval_seconds)
	ON CONFLICT (question_id) DO UPDATE SET
		last_reviewed = excluded.last_reviewed,
		next_review = excluded.next_review,
		repetition_count = excluded.repetition_count,
		ease_factor = excluded.ease_factor,
		last_interval_seconds = excluded.last_interval_seconds`

// GetRecord retrieves the review record for a question.
// It returns nil, nil when the question has never been reviewed.
func (db *DB) GetRecord(ctx context.Context, questionID string) (*domain.ReviewRecord, error) {
	var row recordRow
	var found bool
	err := db.withRetry(ctx, "get record", func() error {
		err := db.conn.GetContext(ctx, &row, db.conn.Rebind(selectRecords+` WHERE question_id = ?`), questionID)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to find record %s: %w", questionID, err)
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	rec := row.record()
	return &rec, nil
}

// GetDueRecords returns every record with a next review at or before asOf,
// oldest due date first.
func (db *DB) GetDueRecords(ctx context.Context, asOf time.Time) ([]domain.ReviewRecord, error) {
	var rows []recordRow
	err := db.withRetry(ctx, "get due records", func() error {
		rows = rows[:0]
		err := db.conn.SelectContext(ctx, &rows,
			db.conn.Rebind(selectRecords+` WHERE next_review <= ? ORDER BY next_review ASC, question_id ASC`),
			asOf.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to get due records: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

// GetAll returns every review record ordered by next review.
func (db *DB) GetAll(ctx context.Context) ([]domain.ReviewRecord, error) {
	var rows []recordRow
	err := db.withRetry(ctx, "get all records", func() error {
		rows = rows[:0]
		if err := db.conn.SelectContext(ctx, &rows, selectRecords+` ORDER BY next_review ASC, question_id ASC`); err != nil {
			return fmt.Errorf("failed to get records: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

// Upsert inserts or replaces the record keyed by its question id. Times are
// stored at second precision: LastReviewed is truncated and NextReview is
// rounded up.
func (db *DB) Upsert(ctx context.Context, rec domain.ReviewRecord) error {
	if rec.QuestionID == "" {
		return domain.InvalidArgument("upsert", "empty question id")
	}
	unlock := db.locks.Lock(rec.QuestionID)
	defer unlock()

	return db.withRetry(ctx, "upsert", func() error {
		if _, err := db.conn.NamedExecContext(ctx, upsertRecord, toRecordRow(rec)); err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", rec.QuestionID, err)
		}
		return nil
	})
}

// UpsertBatch writes all records in one transaction. Either every record is
// written or none is.
func (db *DB) UpsertBatch(ctx context.Context, recs []domain.ReviewRecord) error {
	if len(recs) == 0 {
		return nil
	}
	for _, rec := range recs {
		if rec.QuestionID == "" {
			return domain.InvalidArgument("upsert batch", "empty question id")
		}
	}
	defer db.lockAll(recs)()

	return db.inTx(ctx, "upsert batch", func(tx *sqlx.Tx) error {
		for _, rec := range recs {
			if _, err := tx.NamedExecContext(ctx, upsertRecord, toRecordRow(rec)); err != nil {
				return fmt.Errorf("failed to upsert record %s: %w", rec.QuestionID, err)
			}
		}
		return nil
	})
}

// lockAll acquires the key locks of every record in a fixed order.
func (db *DB) lockAll(recs []domain.ReviewRecord) (unlock func()) {
	ids := make([]string, 0, len(recs))
	seen := make(map[string]bool, len(recs))
	for _, rec := range recs {
		if !seen[rec.QuestionID] {
			seen[rec.QuestionID] = true
			ids = append(ids, rec.QuestionID)
		}
	}
	sort.Strings(ids)

	unlocks := make([]func(), len(ids))
	for i, id := range ids {
		unlocks[i] = db.locks.Lock(id)
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// Reset deletes every review record and the review history.
func (db *DB) Reset(ctx context.Context) error {
	return db.inTx(ctx, "reset", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM review_logs`); err != nil {
			return fmt.Errorf("failed to delete review logs: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM review_records`); err != nil {
			return fmt.Errorf("failed to delete review records: %w", err)
		}
		return nil
	})
}
