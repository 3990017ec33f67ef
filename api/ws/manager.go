package ws

import (
	"sync"

	"go.uber.org/zap"
)

// SessionManager tracks the live session per account. An account has at
// most one WebSocket session; a new connection displaces the old one.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
}

// NewSessionManager creates an empty SessionManager.
func NewSessionManager(logger *zap.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Register adds a session, closing any previous session for the same
// account.
func (m *SessionManager) Register(s *Session) {
	m.mu.Lock()
	old, had := m.sessions[s.AccountID]
	m.sessions[s.AccountID] = s
	m.mu.Unlock()

	if had {
		m.logger.Info("displacing existing session",
			zap.String("account_id", s.AccountID))
		old.Close()
	}
}

// Unregister removes the session if it is still the current one for the
// account. A displaced session must not evict its replacement.
func (m *SessionManager) Unregister(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.AccountID]; ok && cur == s {
		delete(m.sessions, s.AccountID)
	}
}

// Get returns the live session for the account, if any.
func (m *SessionManager) Get(accountID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[accountID]
	return s, ok
}

// IsOnline reports whether the account has a live session.
func (m *SessionManager) IsOnline(accountID string) bool {
	_, ok := m.Get(accountID)
	return ok
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
