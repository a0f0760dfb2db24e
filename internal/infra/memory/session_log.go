package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"xpbattle-service/internal/domain"
)

// SessionLog is an in-memory implementation of app.SessionPersistence.
// It assigns session ids and keeps the latest snapshot per session.
type SessionLog struct {
	mu        sync.Mutex
	snapshots map[string]domain.SessionView
}

func NewSessionLog() *SessionLog {
	return &SessionLog{
		snapshots: make(map[string]domain.SessionView),
	}
}

func (l *SessionLog) CreateSession(_ context.Context, playerID string, _ []domain.Question) (string, error) {
	id := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots[id] = domain.SessionView{
		ID:        id,
		PlayerID:  playerID,
		Status:    domain.StatusActive,
		StartedAt: time.Now(),
	}
	return id, nil
}

func (l *SessionLog) UpdateSession(_ context.Context, view domain.SessionView) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots[view.ID] = view
	return nil
}

func (l *SessionLog) FinalizeQuit(_ context.Context, sessionID string, settledReward int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap, ok := l.snapshots[sessionID]
	if !ok {
		return nil
	}
	snap.Status = domain.StatusLost
	snap.SettledReward = settledReward
	snap.CompletedAt = time.Now()
	l.snapshots[sessionID] = snap
	return nil
}

// Sessions returns all recorded snapshots.
func (l *SessionLog) Sessions() []domain.SessionView {
	l.mu.Lock()
	defer l.mu.Unlock()
	views := make([]domain.SessionView, 0, len(l.snapshots))
	for _, snap := range l.snapshots {
		views = append(views, snap)
	}
	return views
}

// Snapshot returns the latest recorded view for a session.
func (l *SessionLog) Snapshot(sessionID string) (domain.SessionView, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap, ok := l.snapshots[sessionID]
	return snap, ok
}
