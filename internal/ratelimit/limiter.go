// Package ratelimit throttles callers per hashed client identifier and
// provides the short-lived per-order lock used around call placement.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/Andres1439/verify-cod-orders/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Policy: MaxRequests per Window; exceeding it blocks the key for Block.
type Policy struct {
	MaxRequests int
	Window      time.Duration
	Block       time.Duration
}

type Decision = utils.WindowResult

// Limiter counts one request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// HashKey returns the sha256 hex of a client identifier so raw IPs never
// reach the backing store.
func HashKey(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

type RedisLimiter struct {
	rdb    redis.Scripter
	prefix string
	policy Policy
}

func NewRedisLimiter(rdb redis.Scripter, prefix string, p Policy) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, policy: p}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	return utils.HitFixedWindow(ctx, l.rdb, l.prefix+key, l.policy.MaxRequests, l.policy.Window, l.policy.Block)
}

// MemoryLimiter implements the same fixed window in process.
type MemoryLimiter struct {
	mu      sync.Mutex
	policy  Policy
	windows map[string]*memWindow

	Now func() time.Time
}

type memWindow struct {
	count        int
	windowEnds   time.Time
	blockedUntil time.Time
}

func NewMemoryLimiter(p Policy) *MemoryLimiter {
	return &MemoryLimiter{policy: p, windows: map[string]*memWindow{}, Now: time.Now}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Now()
	w, ok := l.windows[key]
	if !ok {
		w = &memWindow{}
		l.windows[key] = w
	}
	if now.Before(w.blockedUntil) {
		return Decision{RetryAfter: w.blockedUntil.Sub(now)}, nil
	}
	if !now.Before(w.windowEnds) {
		w.count = 0
		w.windowEnds = now.Add(l.policy.Window)
	}
	w.count++
	if w.count > l.policy.MaxRequests {
		w.count = 0
		w.blockedUntil = now.Add(l.policy.Block)
		return Decision{RetryAfter: l.policy.Block}, nil
	}
	return Decision{Allowed: true, Remaining: l.policy.MaxRequests - w.count}, nil
}

// Reset clears all windows.
func (l *MemoryLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows = map[string]*memWindow{}
}
