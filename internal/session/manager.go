package session

import (
	"context"
	"sync"
	"time"

	"github.com/conorfennell/part5srs/internal/domain"
)

// Manager keeps the live sessions of a long-running process.
type Manager struct {
	mu       sync.Mutex
	store    Store
	opts     []Option
	sessions map[string]*Session
}

// NewManager creates a Manager whose sessions use store and opts.
func NewManager(store Store, opts ...Option) *Manager {
	return &Manager{
		store:    store,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Start creates and prepares a session. A session whose preparation fails
// is not registered.
func (m *Manager) Start(ctx context.Context, asOf time.Time, maxItems int, extra ...string) (*Session, []string, error) {
	s := New(m.store, m.opts...)
	ids, err := s.Prepare(ctx, asOf, maxItems, extra...)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, ids, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.NotFound("get session", "session %s", id)
	}
	return s, nil
}

// Finalize finalizes a live session and forgets it.
func (m *Manager) Finalize(ctx context.Context, id string) (Summary, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return Summary{}, domain.NotFound("finalize session", "session %s", id)
	}
	return s.Finalize(ctx)
}

// Sweep finalizes sessions started more than maxAge before now, so their
// buffered answers are written. It returns the number of sessions removed.
func (m *Manager) Sweep(ctx context.Context, now time.Time, maxAge time.Duration) int {
	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if now.Sub(s.StartedAt()) > maxAge {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Finalize(ctx)
	}
	return len(stale)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
