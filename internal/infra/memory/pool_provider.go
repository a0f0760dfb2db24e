package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"xpbattle-service/internal/domain"
)

// PoolLoader fetches the question pool from a backing store (e.g. Postgres).
type PoolLoader interface {
	LoadPool(ctx context.Context) (domain.QuestionPool, error)
}

// PoolProvider caches the pool with TTL to avoid repeated backing-store hits.
type PoolProvider struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	cached    domain.QuestionPool
	expiresAt time.Time
}

func NewPoolProvider(loader PoolLoader, ttl time.Duration) *PoolProvider {
	return &PoolProvider{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *PoolProvider) FetchPool(ctx context.Context) (domain.QuestionPool, error) {
	now := p.clock()

	p.mu.RLock()
	if p.cached != nil && p.expiresAt.After(now) {
		pool := p.cached
		p.mu.RUnlock()
		return pool, nil
	}
	p.mu.RUnlock()

	result, err, _ := p.sf.Do("pool", func() (interface{}, error) {
		now := p.clock()
		p.mu.RLock()
		if p.cached != nil && p.expiresAt.After(now) {
			pool := p.cached
			p.mu.RUnlock()
			return pool, nil
		}
		p.mu.RUnlock()

		pool, err := p.loader.LoadPool(ctx)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.cached = pool
		p.expiresAt = now.Add(p.ttlWithJitter())
		p.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.QuestionPool), nil
}

// StaticPoolLoader serves a fixed pool (useful for tests/demos).
type StaticPoolLoader struct {
	pool domain.QuestionPool
}

func NewStaticPoolLoader(pool domain.QuestionPool) *StaticPoolLoader {
	return &StaticPoolLoader{pool: pool}
}

func (l *StaticPoolLoader) LoadPool(_ context.Context) (domain.QuestionPool, error) {
	if len(l.pool) == 0 {
		return nil, domain.ErrPoolUnavailable
	}
	return l.pool, nil
}

func (p *PoolProvider) ttlWithJitter() time.Duration {
	if p.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(p.ttl) / 10
	return p.ttl + time.Duration(p.rnd.Int63n(jitterMax+1))
}
