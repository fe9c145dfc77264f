// Package store provides in-memory session storage keyed by user ID.
package store

import (
	"sync"

	"github.com/dfursa/qapolls-bot/internal/domain"
)

// Store holds exactly one session per user. Sessions are ephemeral and do
// not survive a process restart. The store's lock covers map access only;
// per-user mutation atomicity is provided by the dispatcher's per-user
// serial queues.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*domain.Session
}

// New creates an empty session store.
func New() *Store {
	return &Store{
		sessions: make(map[int64]*domain.Session),
	}
}

// Get returns the session for a user, creating a fresh idle one on first
// access. It never fails.
func (st *Store) Get(userID int64) *domain.Session {
	st.mu.RLock()
	s, ok := st.sessions[userID]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[userID]; ok {
		return s
	}
	s = domain.NewSession(userID)
	st.sessions[userID] = s
	return s
}

// Put replaces the stored session for the session's user.
func (st *Store) Put(s *domain.Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.UserID] = s
}

// Clear removes the session for a user. The next Get creates a fresh idle
// session.
func (st *Store) Clear(userID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, userID)
}
