package memory

import (
	"context"
	"sync"
	"time"

	"xpbattle-service/internal/domain"
)

// LockStore keeps quit-cooldown records in process memory. The store's own
// clock stamps lockedAt, so callers cannot shorten the cooldown.
type LockStore struct {
	cooldown time.Duration
	clock    func() time.Time

	mu    sync.Mutex
	locks map[string]domain.LockRecord
}

func NewLockStore(cooldown time.Duration) *LockStore {
	return NewLockStoreWithClock(cooldown, time.Now)
}

// NewLockStoreWithClock allows deterministic expiry in tests.
func NewLockStoreWithClock(cooldown time.Duration, clock func() time.Time) *LockStore {
	return &LockStore{
		cooldown: cooldown,
		clock:    clock,
		locks:    make(map[string]domain.LockRecord),
	}
}

func (s *LockStore) GetLockRecord(_ context.Context, playerID string) (*domain.LockRecord, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.locks[playerID]
	if !ok {
		return nil, 0, nil
	}
	remaining := rec.LockedAt.Add(s.cooldown).Sub(s.clock())
	return &rec, remaining, nil
}

func (s *LockStore) WriteLockRecord(_ context.Context, playerID, sessionID string, rewardAtQuit int) (domain.LockRecord, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := domain.LockRecord{
		PlayerID:     playerID,
		SessionID:    sessionID,
		LockedAt:     s.clock(),
		RewardAtQuit: rewardAtQuit,
	}
	s.locks[playerID] = rec
	return rec, s.cooldown, nil
}

func (s *LockStore) ClearStaleLock(_ context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, playerID)
	return nil
}
