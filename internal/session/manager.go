package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/logging"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

// Manager holds the open sessions keyed by project id.
type Manager struct {
	ctx    context.Context
	opts   timeline.Options
	tick   time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(ctx context.Context, opts timeline.Options, tick time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		ctx:      ctx,
		opts:     opts,
		tick:     tick,
		logger:   logging.WithComponent(logger, "sessions"),
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for id, creating it from imp when it is not open
// yet. An already open session keeps its in-memory state.
func (m *Manager) Open(id string, imp *export.Imported, revision int) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, false
	}
	s := newSession(m.ctx, id, m.opts, m.tick, logging.WithProjectID(m.logger, id))
	if imp != nil {
		s.Load(imp, revision)
	}
	m.sessions[id] = s
	m.logger.Info("session opened", "project_id", id, "open_sessions", len(m.sessions))
	return s, true
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close stops and forgets the session. It reports whether one was open.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	m.logger.Info("session closed", "project_id", id)
	return true
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// IDs returns the open project ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
