package server

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	wireerrors "github.com/vango-dev/eventwire/internal/errors"
	"github.com/vango-dev/eventwire/pkg/middleware"
)

// SessionManager tracks live sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	max      int
	peak     int

	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64

	logger *slog.Logger
}

// ManagerStats is a point-in-time view of the manager.
type ManagerStats struct {
	Active       int    `json:"active"`
	Peak         int    `json:"peak"`
	TotalCreated uint64 `json:"totalCreated"`
	TotalClosed  uint64 `json:"totalClosed"`
}

// NewSessionManager creates a manager. max <= 0 means no limit.
func NewSessionManager(max int, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		max:      max,
		logger:   logger.With("component", "session_manager"),
	}
}

// Full reports whether the session limit has been reached.
func (m *SessionManager) Full() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.max > 0 && len(m.sessions) >= m.max
}

// Add tracks s. It fails with E342 when the limit has been reached.
func (m *SessionManager) Add(s *Session) error {
	m.mu.Lock()
	if m.max > 0 && len(m.sessions) >= m.max {
		m.mu.Unlock()
		return wireerrors.New("E342").WithDetailf("limit is %d", m.max)
	}
	m.sessions[s.ID] = s
	if n := len(m.sessions); n > m.peak {
		m.peak = n
	}
	m.mu.Unlock()

	m.totalCreated.Add(1)
	middleware.RecordSessionOpen()
	m.logger.Debug("session added", "session_id", s.ID, "ip", s.IP)
	return nil
}

// Remove stops tracking the session with id.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		m.totalClosed.Add(1)
		middleware.RecordSessionClose()
		m.logger.Debug("session removed", "session_id", id)
	}
}

// Get returns the session with id, or nil.
func (m *SessionManager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the live session IDs, sorted.
func (m *SessionManager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Stats returns manager statistics.
func (m *SessionManager) Stats() ManagerStats {
	m.mu.RLock()
	active, peak := len(m.sessions), m.peak
	m.mu.RUnlock()
	return ManagerStats{
		Active:       active,
		Peak:         peak,
		TotalCreated: m.totalCreated.Load(),
		TotalClosed:  m.totalClosed.Load(),
	}
}

// Shutdown closes every live session.
func (m *SessionManager) Shutdown() {
	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	for _, s := range live {
		s.Close()
	}
	m.logger.Info("sessions closed", "count", len(live))
}
