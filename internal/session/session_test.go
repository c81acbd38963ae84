package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/part5srs/internal/domain"
	"github.com/conorfennell/part5srs/internal/sm2"
)

// memStore is an in-memory Store with failure injection.
type memStore struct {
	mu          sync.Mutex
	records     map[string]domain.ReviewRecord
	logs        []domain.ReviewLog
	dueErr      error
	failGet     map[string]bool
	failUpsert  map[string]bool
	failBatches int
	batches     int
}

var errDisk = errors.New("disk I/O error")

func newMemStore() *memStore {
	return &memStore{
		records:    make(map[string]domain.ReviewRecord),
		failGet:    make(map[string]bool),
		failUpsert: make(map[string]bool),
	}
}

func (m *memStore) GetDueRecords(_ context.Context, asOf time.Time) ([]domain.ReviewRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dueErr != nil {
		return nil, m.dueErr
	}
	var due []domain.ReviewRecord
	for _, r := range m.records {
		if r.IsDue(asOf) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextReview.Equal(due[j].NextReview) {
			return due[i].NextReview.Before(due[j].NextReview)
		}
		return due[i].QuestionID < due[j].QuestionID
	})
	return due, nil
}

func (m *memStore) GetRecord(_ context.Context, id string) (*domain.ReviewRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet[id] {
		return nil, errDisk
	}
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memStore) Upsert(_ context.Context, rec domain.ReviewRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsert[rec.QuestionID] {
		return errDisk
	}
	m.records[rec.QuestionID] = rec
	return nil
}

func (m *memStore) UpsertBatch(_ context.Context, recs []domain.ReviewRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	if m.failBatches > 0 {
		m.failBatches--
		return errDisk
	}
	for _, rec := range recs {
		m.records[rec.QuestionID] = rec
	}
	return nil
}

func (m *memStore) AppendReviewLog(_ context.Context, log domain.ReviewLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *memStore) get(id string) (domain.ReviewRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok
}

var (
	quiet = slog.New(slog.NewTextHandler(io.Discard, nil))
	day0  = time.Date(2024, time.June, 3, 10, 0, 0, 0, time.UTC)
)

func midnight(n int) time.Time {
	return time.Date(2024, time.June, 3+n, 0, 0, 0, 0, time.UTC)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seed(store *memStore, id string, next time.Time) {
	store.records[id] = domain.ReviewRecord{
		QuestionID:          id,
		LastReviewed:        next.AddDate(0, 0, -6),
		NextReview:          next,
		RepetitionCount:     2,
		EaseFactor:          2.5,
		LastIntervalSeconds: 6 * domain.SecondsPerDay,
	}
}

func TestPrepare(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seed(store, "b", midnight(0))
	seed(store, "a", midnight(-2))
	seed(store, "c", midnight(-1))
	seed(store, "future", midnight(3))

	t.Run("returns due ids oldest first", func(t *testing.T) {
		s := New(store, WithLogger(quiet), WithClock(fixedClock(day0)))
		ids, err := s.Prepare(ctx, day0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c", "b"}, ids)
		assert.Equal(t, InProgress, s.State())
	})

	t.Run("caps at maxItems", func(t *testing.T) {
		s := New(store, WithLogger(quiet))
		ids, err := s.Prepare(ctx, day0, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids)
	})

	t.Run("extra ids follow the due ones and share the cap", func(t *testing.T) {
		s := New(store, WithLogger(quiet))
		ids, err := s.Prepare(ctx, day0, 5, "new1", "a", "", "new2", "new3")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c", "b", "new1", "new2"}, ids)
		assert.Equal(t, ids, s.Queue())

		summary, err := s.Finalize(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, summary.Planned)
	})

	t.Run("nothing due", func(t *testing.T) {
		s := New(store, WithLogger(quiet))
		ids, err := s.Prepare(ctx, midnight(-10), 5)
		require.NoError(t, err)
		assert.NotNil(t, ids)
		assert.Empty(t, ids)
	})

	t.Run("twice is rejected", func(t *testing.T) {
		s := New(store, WithLogger(quiet))
		_, err := s.Prepare(ctx, day0, 0)
		require.NoError(t, err)
		_, err = s.Prepare(ctx, day0, 0)
		assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	})
}

func TestPrepare_StorageFailureAborts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.dueErr = errDisk

	s := New(store, WithLogger(quiet))
	ids, err := s.Prepare(ctx, day0, 0)
	assert.Nil(t, ids)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.True(t, errors.Is(err, errDisk))
	assert.Equal(t, Done, s.State())

	_, err = s.RecordAnswer(ctx, "q", true)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestRecordAnswer_CreatesAndUpdates(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	now := day0
	s := New(store, WithLogger(quiet), WithClock(func() time.Time { return now }))
	_, err := s.Prepare(ctx, day0, 0)
	require.NoError(t, err)

	rec, err := s.RecordAnswer(ctx, "new", true)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.RepetitionCount)
	assert.True(t, rec.NextReview.Equal(midnight(1)))

	stored, ok := store.get("new")
	require.True(t, ok)
	assert.Equal(t, rec, stored)

	now = midnight(1).Add(9 * time.Hour)
	rec, err = s.RecordAnswer(ctx, "new", true)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.RepetitionCount)
	assert.True(t, rec.NextReview.Equal(midnight(7)))

	now = midnight(7).Add(9 * time.Hour)
	rec, err = s.RecordAnswer(ctx, "new", false)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.RepetitionCount)
	assert.InDelta(t, 2.3, rec.EaseFactor, 1e-9)
	assert.True(t, rec.NextReview.Equal(midnight(8)))

	require.Len(t, store.logs, 3)
	assert.Equal(t, int(sm2.QualityCorrect), store.logs[0].Quality)
	assert.Equal(t, int(sm2.QualityIncorrect), store.logs[2].Quality)
	assert.False(t, store.logs[2].Correct)

	summary, err := s.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Answered)
	assert.Equal(t, 2, summary.Correct)
	assert.Equal(t, 3, summary.Saved)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, Done, s.State())
}

func TestRecordOutcome_Revealed(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seed(store, "q", midnight(0))
	s := New(store, WithLogger(quiet), WithClock(fixedClock(day0)))
	_, err := s.Prepare(ctx, day0, 0)
	require.NoError(t, err)

	rec, err := s.RecordOutcome(ctx, "q", sm2.OutcomeRevealed)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.RepetitionCount)

	_, err = s.RecordOutcome(ctx, "q", sm2.Outcome("skipped"))
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestRecordQuality_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := New(store, WithLogger(quiet))

	_, err := s.RecordQuality(ctx, "q", sm2.QualityCorrect)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument), "answer before Prepare")

	_, err = s.Prepare(ctx, day0, 0)
	require.NoError(t, err)

	_, err = s.RecordQuality(ctx, "q", 6)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	_, err = s.RecordQuality(ctx, "", sm2.QualityCorrect)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))

	_, ok := store.get("q")
	assert.False(t, ok, "invalid input must not touch the store")

	summary, err := s.Finalize(ctx)
	require.NoError(t, err, "invalid arguments are not storage failures")
	assert.Zero(t, summary.Answered)
}

func TestRecordAnswer_PerItemFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failUpsert["bad-write"] = true
	store.failGet["bad-read"] = true

	s := New(store, WithLogger(quiet), WithClock(fixedClock(day0)))
	_, err := s.Prepare(ctx, day0, 0)
	require.NoError(t, err)

	_, err = s.RecordAnswer(ctx, "ok-1", true)
	require.NoError(t, err)
	_, err = s.RecordAnswer(ctx, "bad-write", true)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	_, err = s.RecordAnswer(ctx, "bad-read", false)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	_, err = s.RecordAnswer(ctx, "ok-2", false)
	require.NoError(t, err)

	_, ok := store.get("ok-1")
	assert.True(t, ok)
	_, ok = store.get("ok-2")
	assert.True(t, ok)

	summary, err := s.Finalize(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.True(t, errors.Is(err, errDisk))
	assert.ElementsMatch(t, []string{"bad-write", "bad-read"}, summary.Failed)
	assert.Equal(t, 2, summary.Saved)
	assert.Equal(t, Done, s.State())
}

func TestBatchMode(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := New(store, WithLogger(quiet), WithClock(fixedClock(day0)), WithBatchSize(2))
	_, err := s.Prepare(ctx, day0, 0)
	require.NoError(t, err)

	_, err = s.RecordAnswer(ctx, "a", true)
	require.NoError(t, err)
	_, ok := store.get("a")
	assert.False(t, ok, "first answer stays buffered")

	// A second answer to a buffered question builds on the buffered state.
	rec, err := s.RecordAnswer(ctx, "a", true)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.RepetitionCount)

	_, err = s.RecordAnswer(ctx, "b", true)
	require.NoError(t, err)
	stored, ok := store.get("a")
	require.True(t, ok, "batch is flushed once full")
	assert.Equal(t, 2, stored.RepetitionCount)

	_, err = s.RecordAnswer(ctx, "c", false)
	require.NoError(t, err)
	summary, err := s.Finalize(ctx)
	require.NoError(t, err)
	_, ok = store.get("c")
	assert.True(t, ok, "Finalize flushes the remainder")
	assert.Equal(t, 3, summary.Saved)
	assert.Equal(t, 4, summary.Answered)
	assert.Equal(t, 2, store.batches)
	assert.Len(t, store.logs, 4)
}

func TestBatchMode_FailedBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failBatches = 1
	s := New(store, WithLogger(quiet), WithClock(fixedClock(day0)), WithBatchSize(2))
	_, err := s.Prepare(ctx, day0, 0)
	require.NoError(t, err)

	_, err = s.RecordAnswer(ctx, "a", true)
	require.NoError(t, err)
	_, err = s.RecordAnswer(ctx, "b", true)
	assert.True(t, errors.Is(err, domain.ErrStorage))

	_, err = s.RecordAnswer(ctx, "c", true)
	require.NoError(t, err)

	summary, err := s.Finalize(ctx)
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, summary.Failed)
	assert.Equal(t, 1, summary.Saved)

	_, okA := store.get("a")
	_, okB := store.get("b")
	_, okC := store.get("c")
	assert.False(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestFinalize_States(t *testing.T) {
	ctx := context.Background()
	s := New(newMemStore(), WithLogger(quiet))

	_, err := s.Finalize(ctx)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument), "finalize before prepare")

	_, err = s.Prepare(ctx, day0, 0)
	require.NoError(t, err)
	_, err = s.Finalize(ctx)
	require.NoError(t, err)

	_, err = s.Finalize(ctx)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument), "finalize twice")
	_, err = s.RecordAnswer(ctx, "q", true)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument), "answer after finalize")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "not_started", NotStarted.String())
	assert.Equal(t, "in_progress", InProgress.String())
	assert.Equal(t, "finalizing", Finalizing.String())
	assert.Equal(t, "done", Done.String())
}
