package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"xpbattle-service/internal/domain"
	"xpbattle-service/internal/infra/memory"
)

const poolKey = "xpbattle:pool"

// PoolProvider caches the question pool as a JSON blob in Redis and falls
// back to a loader on cache miss.
type PoolProvider struct {
	client *redis.Client
	loader memory.PoolLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewPoolProvider(client *redis.Client, loader memory.PoolLoader, ttl time.Duration) *PoolProvider {
	return &PoolProvider{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *PoolProvider) FetchPool(ctx context.Context) (domain.QuestionPool, error) {
	if pool, ok := p.readCache(ctx); ok {
		return pool, nil
	}

	result, err, _ := p.sf.Do(poolKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if pool, ok := p.readCache(ctx); ok {
			return pool, nil
		}

		pool, err := p.loader.LoadPool(ctx)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(pool)
		if err != nil {
			return nil, fmt.Errorf("marshal pool: %w", err)
		}
		_ = p.client.Set(ctx, poolKey, raw, p.ttlWithJitter()).Err()

		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.QuestionPool), nil
}

func (p *PoolProvider) readCache(ctx context.Context) (domain.QuestionPool, bool) {
	raw, err := p.client.Get(ctx, poolKey).Bytes()
	if err != nil {
		return nil, false
	}
	var pool domain.QuestionPool
	if err := json.Unmarshal(raw, &pool); err != nil {
		return nil, false
	}
	return pool, true
}

func (p *PoolProvider) ttlWithJitter() time.Duration {
	if p.ttl <= 0 {
		return 0
	}
	jitterMax := int64(p.ttl) / 10
	return p.ttl + time.Duration(p.rnd.Int63n(jitterMax+1))
}
