package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/conorfennell/part5srs/internal/domain"
)

type sourceRow struct {
	ID          int64         `db:"id"`
	Path        string        `db:"path"`
	Type        string        `db:"type"`
	LastScanned sql.NullInt64 `db:"last_scanned"`
}

func (row sourceRow) source() domain.Source {
	s := domain.Source{ID: row.ID, Path: row.Path, Type: row.Type}
	if row.LastScanned.Valid {
		s.LastScanned = time.Unix(row.LastScanned.Int64, 0)
	}
	return s
}

// InsertSource inserts a new source path into the database and returns its ID.
func (db *DB) InsertSource(ctx context.Context, path, sourceType string) (int64, error) {
	var id int64
	err := db.withRetry(ctx, "insert source", func() error {
		err := db.conn.GetContext(ctx, &id, db.conn.Rebind(`
			INSERT INTO sources (path, type)
			VALUES (?, ?)
			RETURNING id
		`), path, sourceType)
		if err != nil {
			return fmt.Errorf("failed to insert source %s: %w", path, err)
		}
		return nil
	})
	return id, err
}

// FindSourceByPath retrieves a source from the database by its path.
// It returns nil, nil when no such source exists.
func (db *DB) FindSourceByPath(ctx context.Context, path string) (*domain.Source, error) {
	var row sourceRow
	var found bool
	err := db.withRetry(ctx, "find source", func() error {
		err := db.conn.GetContext(ctx, &row, db.conn.Rebind(`
			SELECT id, path, type, last_scanned
			FROM sources WHERE path = ?
		`), path)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to find source by path %s: %w", path, err)
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	s := row.source()
	return &s, nil
}

// GetAllSources retrieves all stored sources from the database.
func (db *DB) GetAllSources(ctx context.Context) ([]domain.Source, error) {
	var rows []sourceRow
	err := db.withRetry(ctx, "get sources", func() error {
		rows = rows[:0]
		if err := db.conn.SelectContext(ctx, &rows, `SELECT id, path, type, last_scanned FROM sources ORDER BY id`); err != nil {
			return fmt.Errorf("failed to get all sources: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sources := make([]domain.Source, len(rows))
	for i, row := range rows {
		sources[i] = row.source()
	}
	return sources, nil
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error {
	return db.withRetry(ctx, "update source", func() error {
		res, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
			UPDATE sources
			SET last_scanned = ?
			WHERE id = ?
		`), at.Unix(), sourceID)
		if err != nil {
			return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.NotFound("update source", "source %d", sourceID)
		}
		return nil
	})
}

// DeleteSource removes a source and the questions loaded from it. Review
// records of those questions are kept.
func (db *DB) DeleteSource(ctx context.Context, sourceID int64) error {
	return db.inTx(ctx, "delete source", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM questions WHERE source_id = ?`), sourceID); err != nil {
			return fmt.Errorf("failed to delete questions of source ID %d: %w", sourceID, err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM sources WHERE id = ?`), sourceID)
		if err != nil {
			return fmt.Errorf("failed to delete source ID %d: %w", sourceID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.NotFound("delete source", "source %d", sourceID)
		}
		return nil
	})
}
