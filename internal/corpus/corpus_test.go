package corpus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/part5srs/internal/domain"
	"github.com/conorfennell/part5srs/internal/qhash"
	"github.com/conorfennell/part5srs/internal/storage"
)

const setOne = `Q: The manager asked all staff to ------- the new policy.
(A) review
(B) reviewing
(C) reviewed
(D) reviews
A: A
C: Verb forms
---
Q: The shipment will arrive ------- Monday.
(A) on
(B) in
A: A
---
Q: This question has no answer -------.
(A) x
(B) y
`

const setTwo = `Sentence,A,B,C,D,Answer,Category
"Ms. Tanaka will be out of the office ------- Friday.",until,during,,,A,Prepositions
`

func newTestSyncer(t *testing.T) (*Syncer, *storage.DB) {
	t.Helper()
	db, err := storage.Open(storage.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSyncer(db, filepath.Join(t.TempDir(), "repos"), logger), db
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestAddSource(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSyncer(t)
	dir := t.TempDir()

	src, err := s.AddSource(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLocal, src.Type)
	assert.Equal(t, dir, src.Path)

	_, err = s.AddSource(ctx, dir)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument), "duplicate source")

	_, err = s.AddSource(ctx, "  ")
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument), "empty path")

	_, err = s.AddSource(ctx, filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument), "missing directory")

	git, err := s.AddSource(ctx, "https://github.com/acme/part5-sets.git")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceGit, git.Type)

	_, err = s.AddSource(ctx, "https://github.com/")
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument), "git URL without a path")

	sources, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 2)
}

func TestSyncAll_Reconciles(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSyncer(t)
	dir := t.TempDir()
	writeFile(t, dir, "set1.md", setOne)
	writeFile(t, dir, "set2.csv", setTwo)
	writeFile(t, dir, "README.rst", "ignored")

	src, err := s.AddSource(ctx, dir)
	require.NoError(t, err)

	results, err := s.SyncAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, src.ID, res.SourceID)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 3, res.Parsed)
	assert.Equal(t, 3, res.Inserted)
	assert.Zero(t, res.Orphaned)
	assert.Len(t, res.Errors, 1, "the question without an answer is rejected")

	n, err := db.CountQuestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// A second sync of unchanged files inserts nothing.
	results, err = s.SyncAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, results[0].Inserted)
	assert.Equal(t, 3, results[0].Parsed)

	sources, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	assert.False(t, sources[0].LastScanned.IsZero())
}

func TestSyncAll_OrphansKeepTheirRecords(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSyncer(t)
	dir := t.TempDir()
	writeFile(t, dir, "set2.csv", setTwo)

	_, err := s.AddSource(ctx, dir)
	require.NoError(t, err)
	_, err = s.SyncAll(ctx)
	require.NoError(t, err)

	id := qhash.Hash(domain.Question{
		Sentence: "Ms. Tanaka will be out of the office ------- Friday.",
		Choices:  []string{"until", "during"},
	})
	q, err := db.FindQuestion(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "Prepositions", q.Category)

	now := time.Now()
	require.NoError(t, db.Upsert(ctx, domain.ReviewRecord{
		QuestionID:          id,
		LastReviewed:        now,
		NextReview:          now.Add(24 * time.Hour),
		RepetitionCount:     1,
		EaseFactor:          2.5,
		LastIntervalSeconds: domain.SecondsPerDay,
	}))

	require.NoError(t, os.Remove(filepath.Join(dir, "set2.csv")))
	results, err := s.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Orphaned)

	q, err = db.FindQuestion(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, q)

	rec, err := db.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, rec, "removing a question keeps its review record")
}

func TestSyncAll_FailingSourceDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSyncer(t)
	good := t.TempDir()
	writeFile(t, good, "set1.md", setOne)
	gone := t.TempDir()

	_, err := s.AddSource(ctx, gone)
	require.NoError(t, err)
	_, err = s.AddSource(ctx, good)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(gone))

	results, err := s.SyncAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	var failed, synced int
	for _, r := range results {
		if r.Parsed > 0 {
			synced++
		} else if len(r.Errors) > 0 {
			failed++
		}
	}
	assert.Equal(t, 1, synced)
	assert.Equal(t, 1, failed)
}

func TestSyncAll_NoSources(t *testing.T) {
	s, _ := newTestSyncer(t)
	results, err := s.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScheduler(t *testing.T) {
	s, _ := newTestSyncer(t)
	sched := NewScheduler(s)

	assert.Error(t, sched.Start(context.Background(), 0))

	require.NoError(t, sched.Start(context.Background(), time.Hour))
	assert.Equal(t, 1, sched.Jobs())
	sched.Stop()
}
