package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"xpbattle-service/internal/domain"
)

// LockStore keeps quit-cooldown records in Redis. lockedAt is stamped from
// the Redis server clock (TIME), so a client manipulating its local clock
// cannot shorten the cooldown. Records carry no TTL: an expired lock is
// removed by the engine's one-time stale cleanup, not silently dropped.
type LockStore struct {
	client   *redis.Client
	cooldown time.Duration
}

func NewLockStore(client *redis.Client, cooldown time.Duration) *LockStore {
	return &LockStore{client: client, cooldown: cooldown}
}

func (s *LockStore) GetLockRecord(ctx context.Context, playerID string) (*domain.LockRecord, time.Duration, error) {
	raw, err := s.client.Get(ctx, s.key(playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get lock record: %w", err)
	}

	var rec domain.LockRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, 0, fmt.Errorf("unmarshal lock record: %w", err)
	}

	now, err := s.serverTime(ctx)
	if err != nil {
		return nil, 0, err
	}
	return &rec, rec.LockedAt.Add(s.cooldown).Sub(now), nil
}

func (s *LockStore) WriteLockRecord(ctx context.Context, playerID, sessionID string, rewardAtQuit int) (domain.LockRecord, time.Duration, error) {
	now, err := s.serverTime(ctx)
	if err != nil {
		return domain.LockRecord{}, 0, err
	}

	rec := domain.LockRecord{
		PlayerID:     playerID,
		SessionID:    sessionID,
		LockedAt:     now,
		RewardAtQuit: rewardAtQuit,
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return domain.LockRecord{}, 0, fmt.Errorf("marshal lock record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(playerID), raw, 0).Err(); err != nil {
		return domain.LockRecord{}, 0, fmt.Errorf("write lock record: %w", err)
	}
	return rec, s.cooldown, nil
}

func (s *LockStore) ClearStaleLock(ctx context.Context, playerID string) error {
	if err := s.client.Del(ctx, s.key(playerID)).Err(); err != nil {
		return fmt.Errorf("clear stale lock: %w", err)
	}
	return nil
}

func (s *LockStore) serverTime(ctx context.Context) (time.Time, error) {
	now, err := s.client.Time(ctx).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("redis time: %w", err)
	}
	return now, nil
}

func (s *LockStore) key(playerID string) string {
	return "xpbattle:lock:" + playerID
}
