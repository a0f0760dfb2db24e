package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"xpbattle-service/internal/app"
)

// SessionRegistry is a Redis-aware implementation of app.SessionRegistry.
// Notes:
//   - Sessions themselves stay in process memory; the running countdown and
//     subscriber channels cannot move across instances.
//   - Redis holds an exclusivity marker per player (SETNX) so two instances
//     cannot both start a session for the same player.
type SessionRegistry struct {
	client *redis.Client
	ttl    time.Duration

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionRegistry(client *redis.Client, ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (r *SessionRegistry) PutIfAbsent(playerID string, session *app.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[playerID]; ok {
		return false
	}
	claimed, err := r.client.SetNX(context.Background(), r.key(playerID), "1", r.ttl).Result()
	if err == nil && !claimed {
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
	if _, ok := r.sessions[playerID]; !ok {
		return
	}
	delete(r.sessions, playerID)
	_ = r.client.Del(context.Background(), r.key(playerID)).Err()
}

func (r *SessionRegistry) key(playerID string) string {
	return "xpbattle:active:" + playerID
}
