package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/conorfennell/part5srs/internal/corpus"
	"github.com/conorfennell/part5srs/internal/domain"
	"github.com/conorfennell/part5srs/internal/session"
	"github.com/conorfennell/part5srs/internal/sm2"
	"github.com/conorfennell/part5srs/internal/storage"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	sessions *session.Manager
	syncer   *corpus.Syncer
	router   *http.ServeMux
	logger   *slog.Logger
	now      func() time.Time
	maxItems int
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the time used when a request gives no as_of.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithMaxItems sets the session size used when a request gives none.
func WithMaxItems(n int) Option {
	return func(s *Server) { s.maxItems = n }
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, sessions *session.Manager, syncer *corpus.Syncer, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		db:       db,
		sessions: sessions,
		syncer:   syncer,
		router:   http.NewServeMux(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth())

	// Review records
	s.router.HandleFunc("GET /records", s.handleGetRecords())
	s.router.HandleFunc("GET /records/{id}", s.handleGetRecord())
	s.router.HandleFunc("DELETE /records", s.handleResetRecords())
	s.router.HandleFunc("GET /due", s.handleGetDue())
	s.router.HandleFunc("GET /stats", s.handleGetStats())

	// Question corpus
	s.router.HandleFunc("GET /questions/{id}", s.handleGetQuestion())

	// Review sessions
	s.router.HandleFunc("POST /sessions", s.handleStartSession())
	s.router.HandleFunc("POST /sessions/{id}/answers", s.handlePostAnswer())
	s.router.HandleFunc("POST /sessions/{id}/finalize", s.handleFinalizeSession())

	// Source management routes
	s.router.HandleFunc("GET /sources", s.handleGetSources())
	s.router.HandleFunc("POST /sources", s.handlePostSource())
	s.router.HandleFunc("DELETE /sources/{id}", s.handleDeleteSource())
	s.router.HandleFunc("POST /sync", s.handlePostSync())
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleGetRecords() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := s.db.GetAll(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func (s *Server) handleGetRecord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		rec, err := s.db.GetRecord(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if rec == nil {
			s.writeError(w, r, domain.NotFound("get record", "no review record for question %s", id))
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// handleResetRecords deletes all review progress.
func (s *Server) handleResetRecords() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Reset(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.logger.Info("Review records reset")
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleGetDue lists the records due at as_of (default now), capped at limit.
func (s *Server) handleGetDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asOf, err := s.asOf(r.URL.Query().Get("as_of"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		limit, err := queryInt(r, "limit")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		due, err := s.db.GetDueRecords(r.Context(), asOf)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if limit > 0 && len(due) > limit {
			due = due[:limit]
		}
		writeJSON(w, http.StatusOK, due)
	}
}

type statsResponse struct {
	domain.Stats
	Questions int `json:"questions"`
}

func (s *Server) handleGetStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.db.Stats(r.Context(), s.now())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		n, err := s.db.CountQuestions(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{Stats: stats, Questions: n})
	}
}

func (s *Server) handleGetQuestion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		q, err := s.db.FindQuestion(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if q == nil {
			s.writeError(w, r, domain.NotFound("get question", "question %s", id))
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

type startSessionRequest struct {
	AsOf     string `json:"as_of"`
	MaxItems *int   `json:"max_items"`
	NewItems int    `json:"new_items"`
}

type startSessionResponse struct {
	ID          string   `json:"id"`
	QuestionIDs []string `json:"question_ids"`
}

// handleStartSession prepares a session over the questions due at as_of.
// new_items appends that many never-reviewed questions after the due ones.
func (s *Server) handleStartSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startSessionRequest
		if err := decodeJSON(r, &req, true); err != nil {
			s.writeError(w, r, err)
			return
		}
		asOf, err := s.asOf(req.AsOf)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		maxItems := s.maxItems
		if req.MaxItems != nil {
			if *req.MaxItems < 0 {
				s.writeError(w, r, domain.InvalidArgument("start session", "max_items must not be negative"))
				return
			}
			maxItems = *req.MaxItems
		}
		if req.NewItems < 0 {
			s.writeError(w, r, domain.InvalidArgument("start session", "new_items must not be negative"))
			return
		}

		var fresh []string
		if req.NewItems > 0 {
			var err error
			if fresh, err = s.db.UnreviewedQuestionIDs(r.Context(), req.NewItems); err != nil {
				s.writeError(w, r, err)
				return
			}
		}

		sess, ids, err := s.sessions.Start(r.Context(), asOf, maxItems, fresh...)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, startSessionResponse{ID: sess.ID(), QuestionIDs: ids})
	}
}

// answerRequest carries exactly one of Correct, Quality or Outcome.
type answerRequest struct {
	QuestionID string `json:"question_id"`
	Correct    *bool  `json:"correct"`
	Quality    *int   `json:"quality"`
	Outcome    string `json:"outcome"`
}

type answerResponse struct {
	Record domain.ReviewRecord `json:"record"`
}

func (s *Server) handlePostAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "record answer"
		sess, err := s.sessions.Get(r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req answerRequest
		if err := decodeJSON(r, &req, false); err != nil {
			s.writeError(w, r, err)
			return
		}

		given := 0
		if req.Correct != nil {
			given++
		}
		if req.Quality != nil {
			given++
		}
		if req.Outcome != "" {
			given++
		}
		if given != 1 {
			s.writeError(w, r, domain.InvalidArgument(op, "exactly one of correct, quality or outcome is required"))
			return
		}

		var rec domain.ReviewRecord
		switch {
		case req.Correct != nil:
			rec, err = sess.RecordAnswer(r.Context(), req.QuestionID, *req.Correct)
		case req.Quality != nil:
			rec, err = sess.RecordQuality(r.Context(), req.QuestionID, sm2.Quality(*req.Quality))
		default:
			var outcome sm2.Outcome
			outcome, err = sm2.ParseOutcome(req.Outcome)
			if err != nil {
				err = domain.InvalidArgument(op, "%v", err)
				break
			}
			rec, err = sess.RecordOutcome(r.Context(), req.QuestionID, outcome)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, answerResponse{Record: rec})
	}
}

type finalizeResponse struct {
	session.Summary
	Warning string `json:"warning,omitempty"`
}

// handleFinalizeSession ends a session. Answers that could not be saved are
// reported as a warning next to the summary; the rest stay committed.
func (s *Server) handleFinalizeSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := s.sessions.Finalize(r.Context(), r.PathValue("id"))
		if err != nil && summary.ID == "" {
			s.writeError(w, r, err)
			return
		}
		resp := finalizeResponse{Summary: summary}
		if err != nil {
			s.logger.Warn("Session finalized with unsaved answers", "session_id", summary.ID, "error", err)
			resp.Warning = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.db.GetAllSources(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sources)
	}
}

type sourceRequest struct {
	Path string `json:"path"`
}

func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sourceRequest
		if err := decodeJSON(r, &req, false); err != nil {
			s.writeError(w, r, err)
			return
		}
		src, err := s.syncer.AddSource(r.Context(), req.Path)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, src)
	}
}

// handleDeleteSource deletes a source and its questions. Review records
// are kept.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			s.writeError(w, r, domain.InvalidArgument("delete source", "invalid source ID %q", r.PathValue("id")))
			return
		}
		if err := s.db.DeleteSource(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePostSync triggers a manual sync. It runs in the foreground to
// make the caller wait for the results.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := s.syncer.SyncAll(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if results == nil {
			results = []corpus.Result{}
		}
		writeJSON(w, http.StatusOK, results)
	}
}

// SweepSessions finalizes sessions older than maxAge.
func (s *Server) SweepSessions(ctx context.Context, maxAge time.Duration) int {
	n := s.sessions.Sweep(ctx, s.now(), maxAge)
	if n > 0 {
		s.logger.Info("Abandoned sessions finalized", "count", n)
	}
	return n
}

// asOf parses an RFC 3339 timestamp, defaulting to now.
func (s *Server) asOf(v string) (time.Time, error) {
	if v == "" {
		return s.now(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, domain.InvalidArgument("parse as_of", "%q is not an RFC 3339 time", v)
	}
	return t, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.InvalidArgument("parse "+name, "%q is not a non-negative integer", v)
	}
	return n, nil
}

// writeError maps the error taxonomy to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrStorage):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
