package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Andres1439/verify-cod-orders/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Locker is a best-effort mutual exclusion keyed by string with a TTL.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisLocker is a concurrency cap of one.
type RedisLocker struct {
	rdb redis.Scripter
}

func NewRedisLocker(rdb redis.Scripter) *RedisLocker { return &RedisLocker{rdb: rdb} }

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, key, 1, ttl)
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, key)
}

type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	Now  func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]time.Time{}, Now: time.Now}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.Now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

func (l *MemoryLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}
