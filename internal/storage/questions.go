package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/conorfennell/part5srs/internal/domain"
)

type questionRow struct {
	ID          string        `db:"id"`
	Sentence    string        `db:"sentence"`
	Choices     string        `db:"choices"`
	Answer      string        `db:"answer"`
	Category    string        `db:"category"`
	Explanation string        `db:"explanation"`
	SourceID    sql.NullInt64 `db:"source_id"`
}

func (row questionRow) question() (domain.Question, error) {
	q := domain.Question{
		ID:          row.ID,
		Sentence:    row.Sentence,
		Answer:      row.Answer,
		Category:    row.Category,
		Explanation: row.Explanation,
		SourceID:    row.SourceID.Int64,
	}
	if err := json.Unmarshal([]byte(row.Choices), &q.Choices); err != nil {
		return domain.Question{}, fmt.Errorf("failed to decode choices of question %s: %w", row.ID, err)
	}
	return q, nil
}

// UpsertQuestion inserts a question or replaces its content.
func (db *DB) UpsertQuestion(ctx context.Context, q domain.Question) error {
	choices, err := json.Marshal(q.Choices)
	if err != nil {
		return fmt.Errorf("failed to encode choices of question %s: %w", q.ID, err)
	}
	row := questionRow{
		ID:          q.ID,
		Sentence:    q.Sentence,
		Choices:     string(choices),
		Answer:      q.Answer,
		Category:    q.Category,
		Explanation: q.Explanation,
		SourceID:    sql.NullInt64{Int64: q.SourceID, Valid: q.SourceID != 0},
	}
	return db.withRetry(ctx, "upsert question", func() error {
		_, err := db.conn.NamedExecContext(ctx, `
			INSERT INTO questions (id, sentence, choices, answer, category, explanation, source_id)
			VALUES (:id, :sentence, :choices, :answer, :category, :explanation, :source_id)
			ON CONFLICT (id) DO UPDATE SET
				sentence = excluded.sentence,
				choices = excluded.choices,
				answer = excluded.answer,
				category = excluded.category,
				explanation = excluded.explanation,
				source_id = excluded.source_id
		`, row)
		if err != nil {
			return fmt.Errorf("failed to upsert question %s: %w", q.ID, err)
		}
		return nil
	})
}

// FindQuestion retrieves a question by id. It returns nil, nil when the
// question is not in the corpus.
func (db *DB) FindQuestion(ctx context.Context, id string) (*domain.Question, error) {
	var row questionRow
	var found bool
	err := db.withRetry(ctx, "find question", func() error {
		err := db.conn.GetContext(ctx, &row, db.conn.Rebind(`
			SELECT id, sentence, choices, answer, category, explanation, source_id
			FROM questions WHERE id = ?
		`), id)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to find question %s: %w", id, err)
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	q, err := row.question()
	if err != nil {
		return nil, domain.StorageFailure("find question", err)
	}
	return &q, nil
}

// QuestionIDsBySource returns the ids of all questions loaded from a source.
func (db *DB) QuestionIDsBySource(ctx context.Context, sourceID int64) ([]string, error) {
	var ids []string
	err := db.withRetry(ctx, "question ids by source", func() error {
		ids = ids[:0]
		err := db.conn.SelectContext(ctx, &ids, db.conn.Rebind(`SELECT id FROM questions WHERE source_id = ? ORDER BY id`), sourceID)
		if err != nil {
			return fmt.Errorf("failed to get questions for source ID %d: %w", sourceID, err)
		}
		return nil
	})
	return ids, err
}

// CountQuestions returns the size of the corpus.
func (db *DB) CountQuestions(ctx context.Context) (int, error) {
	var n int
	err := db.withRetry(ctx, "count questions", func() error {
		if err := db.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM questions`); err != nil {
			return fmt.Errorf("failed to count questions: %w", err)
		}
		return nil
	})
	return n, err
}

// DeleteQuestion removes a question from the corpus. Its review record, if
// any, is kept.
func (db *DB) DeleteQuestion(ctx context.Context, id string) error {
	return db.withRetry(ctx, "delete question", func() error {
		if _, err := db.conn.ExecContext(ctx, db.conn.Rebind(`DELETE FROM questions WHERE id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete question %s: %w", id, err)
		}
		return nil
	})
}

// UnreviewedQuestionIDs returns up to limit ids of questions that have no
// review record yet. limit <= 0 means no limit.
func (db *DB) UnreviewedQuestionIDs(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT q.id FROM questions q
		LEFT JOIN review_records r ON r.question_id = q.id
		WHERE r.question_id IS NULL
		ORDER BY q.source_id, q.id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	ids := []string{}
	err := db.withRetry(ctx, "unreviewed questions", func() error {
		ids = ids[:0]
		if err := db.conn.SelectContext(ctx, &ids, db.conn.Rebind(query), args...); err != nil {
			return fmt.Errorf("failed to get unreviewed questions: %w", err)
		}
		return nil
	})
	return ids, err
}
