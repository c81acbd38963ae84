package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/part5srs/internal/domain"
	"github.com/conorfennell/part5srs/internal/sm2"
)

// Store is the persistence a session needs.
type Store interface {
	GetDueRecords(ctx context.Context, asOf time.Time) ([]domain.ReviewRecord, error)
	GetRecord(ctx context.Context, questionID string) (*domain.ReviewRecord, error)
	Upsert(ctx context.Context, rec domain.ReviewRecord) error
	UpsertBatch(ctx context.Context, recs []domain.ReviewRecord) error
}

// HistoryStore is implemented by stores that keep an answer history.
type HistoryStore interface {
	AppendReviewLog(ctx context.Context, log domain.ReviewLog) error
}

// State is the lifecycle position of a session.
type State int

const (
	NotStarted State = iota
	InProgress
	Finalizing
	Done
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Summary describes a finished session.
type Summary struct {
	ID       string        `json:"id"`
	Planned  int           `json:"planned"`
	Answered int           `json:"answered"`
	Correct  int           `json:"correct"`
	Saved    int           `json:"saved"`
	Failed   []string      `json:"failed,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Option configures a Session.
type Option func(*Session)

// WithParams sets the scheduling parameters.
func WithParams(p *sm2.Params) Option {
	return func(s *Session) { s.params = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock sets the time source used as "now" for each answer.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithBatchSize buffers answers and writes them n at a time, each batch in
// one transaction. n <= 0 writes every answer immediately.
func WithBatchSize(n int) Option {
	return func(s *Session) { s.batchSize = n }
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Session is one batch of reviews, bounded by Prepare and Finalize.
type Session struct {
	mu sync.Mutex

	id        string
	store     Store
	params    *sm2.Params
	logger    *slog.Logger
	now       func() time.Time
	batchSize int

	state     State
	startedAt time.Time
	queue     []string

	pending     []domain.ReviewRecord
	pendingIdx  map[string]int
	pendingLogs []domain.ReviewLog

	answered int
	correct  int
	saved    int
	failed   []string
	failures []error
}

// New creates a session over store.
func New(store Store, opts ...Option) *Session {
	s := &Session{
		id:         uuid.NewString(),
		store:      store,
		params:     sm2.DefaultParams(),
		logger:     slog.Default(),
		now:        time.Now,
		pendingIdx: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartedAt returns the time Prepare was called.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Queue returns the question ids selected by Prepare.
func (s *Session) Queue() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queue...)
}

// Prepare selects the questions due at asOf, followed by the extra ids that
// are not already due. maxItems caps the whole batch; a value <= 0 means no
// cap. A storage failure aborts the session.
func (s *Session) Prepare(ctx context.Context, asOf time.Time, maxItems int, extra ...string) ([]string, error) {
	const op = "prepare session"
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != NotStarted {
		return nil, domain.InvalidArgument(op, "session is %s", s.state)
	}

	records, err := s.store.GetDueRecords(ctx, asOf)
	if err != nil {
		s.state = Done
		s.logger.Error("Failed to load due records", "as_of", asOf, "error", err)
		return nil, domain.StorageFailure(op, err)
	}

	ids := make([]string, 0, len(records)+len(extra))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		ids = append(ids, rec.QuestionID)
		seen[rec.QuestionID] = true
	}
	for _, id := range extra {
		if id != "" && !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	if maxItems > 0 && len(ids) > maxItems {
		ids = ids[:maxItems]
	}

	s.queue = ids
	s.state = InProgress
	s.startedAt = s.now()
	s.logger.Info("Session prepared", "due", len(records), "new", len(extra), "selected", len(ids))
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

// RecordAnswer applies a right/wrong answer to the question's schedule.
func (s *Session) RecordAnswer(ctx context.Context, questionID string, wasCorrect bool) (domain.ReviewRecord, error) {
	return s.RecordQuality(ctx, questionID, sm2.QualityFromCorrect(wasCorrect))
}

// RecordOutcome applies a scored outcome to the question's schedule.
func (s *Session) RecordOutcome(ctx context.Context, questionID string, outcome sm2.Outcome) (domain.ReviewRecord, error) {
	q, err := sm2.QualityFor(outcome)
	if err != nil {
		return domain.ReviewRecord{}, domain.InvalidArgument("record outcome", "%v", err)
	}
	return s.RecordQuality(ctx, questionID, q)
}

// RecordQuality looks up or creates the question's record, computes its next
// state and persists it. A storage failure affects only this answer; the
// session stays usable and the failure is reported again by Finalize.
func (s *Session) RecordQuality(ctx context.Context, questionID string, quality sm2.Quality) (domain.ReviewRecord, error) {
	const op = "record answer"
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != InProgress {
		return domain.ReviewRecord{}, domain.InvalidArgument(op, "session is %s", s.state)
	}
	if questionID == "" {
		return domain.ReviewRecord{}, domain.InvalidArgument(op, "empty question id")
	}
	if !quality.Valid() {
		return domain.ReviewRecord{}, domain.InvalidArgument(op, "quality %d outside [%d,%d]", quality, sm2.QualityBlackout, sm2.QualityPerfect)
	}

	current, err := s.lookup(ctx, questionID)
	if err != nil {
		return domain.ReviewRecord{}, s.itemFailed(questionID, domain.StorageFailure(op, err))
	}

	now := s.now()
	next, err := s.params.NextState(questionID, current, quality, now)
	if err != nil {
		return domain.ReviewRecord{}, err
	}

	s.answered++
	passed := quality.Passed(s.params.PassThreshold)
	if passed {
		s.correct++
	}
	log := domain.ReviewLog{
		QuestionID:      questionID,
		ReviewedAt:      now,
		Quality:         int(quality),
		Correct:         passed,
		IntervalSeconds: next.LastIntervalSeconds,
	}

	if s.batchSize > 0 {
		s.enqueue(next, log)
		if len(s.pending) >= s.batchSize {
			if err := s.flush(ctx); err != nil {
				return domain.ReviewRecord{}, err
			}
		}
		return next, nil
	}

	if err := s.store.Upsert(ctx, next); err != nil {
		return domain.ReviewRecord{}, s.itemFailed(questionID, domain.StorageFailure(op, err))
	}
	s.saved++
	s.appendLogs(ctx, log)
	return next, nil
}

// Finalize flushes buffered answers and ends the session. Failed writes
// are joined into the returned error; every other answer stays committed.
func (s *Session) Finalize(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != InProgress {
		return Summary{}, domain.InvalidArgument("finalize session", "session is %s", s.state)
	}
	s.state = Finalizing
	defer func() { s.state = Done }()

	s.flush(ctx)

	summary := Summary{
		ID:       s.id,
		Planned:  len(s.queue),
		Answered: s.answered,
		Correct:  s.correct,
		Saved:    s.saved,
		Failed:   append([]string(nil), s.failed...),
		Duration: s.now().Sub(s.startedAt),
	}
	s.logger.Info("Session finalized",
		"planned", summary.Planned,
		"answered", summary.Answered,
		"saved", summary.Saved,
		"failed", len(summary.Failed),
	)

	if len(s.failures) > 0 {
		return summary, fmt.Errorf("session %s: %d answers not saved: %w", s.id, len(s.failed), errors.Join(s.failures...))
	}
	return summary, nil
}

// lookup returns the freshest known record for questionID, preferring
// answers buffered in this session.
func (s *Session) lookup(ctx context.Context, questionID string) (*domain.ReviewRecord, error) {
	if i, ok := s.pendingIdx[questionID]; ok {
		rec := s.pending[i]
		return &rec, nil
	}
	return s.store.GetRecord(ctx, questionID)
}

func (s *Session) enqueue(rec domain.ReviewRecord, log domain.ReviewLog) {
	if i, ok := s.pendingIdx[rec.QuestionID]; ok {
		s.pending[i] = rec
	} else {
		s.pendingIdx[rec.QuestionID] = len(s.pending)
		s.pending = append(s.pending, rec)
	}
	s.pendingLogs = append(s.pendingLogs, log)
}

// flush writes buffered records in one transaction. A failed batch is
// dropped and every record in it is reported as failed.
func (s *Session) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	batch, logs := s.pending, s.pendingLogs
	s.pending, s.pendingLogs = nil, nil
	s.pendingIdx = make(map[string]int)

	if err := s.store.UpsertBatch(ctx, batch); err != nil {
		err = domain.StorageFailure("flush batch", err)
		for _, rec := range batch {
			s.failed = append(s.failed, rec.QuestionID)
		}
		s.failures = append(s.failures, err)
		s.logger.Warn("Failed to save batch", "size", len(batch), "error", err)
		return err
	}
	s.saved += len(batch)
	s.appendLogs(ctx, logs...)
	return nil
}

func (s *Session) itemFailed(questionID string, err error) error {
	s.failed = append(s.failed, questionID)
	s.failures = append(s.failures, err)
	s.logger.Warn("Failed to save answer", "question_id", questionID, "error", err)
	return err
}

// appendLogs writes answer history. History is best-effort.
func (s *Session) appendLogs(ctx context.Context, logs ...domain.ReviewLog) {
	hs, ok := s.store.(HistoryStore)
	if !ok {
		return
	}
	for _, l := range logs {
		if err := hs.AppendReviewLog(ctx, l); err != nil {
			s.logger.Warn("Failed to append review log", "question_id", l.QuestionID, "error", err)
		}
	}
}
