package memory

import (
	"sync"

	"xpbattle-service/internal/app"
)

// SessionRegistry is an in-memory implementation of app.SessionRegistry.
// At most one session per player; creation is exclusive.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*app.Session),
	}
}

func (r *SessionRegistry) PutIfAbsent(playerID string, session *app.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[playerID]; ok {
		return false
	}
	r.sessions[playerID] = session
	return true
}

func (r *SessionRegistry) Get(playerID string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[playerID]
	return session, ok
}

func (r *SessionRegistry) Delete(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, playerID)
}
