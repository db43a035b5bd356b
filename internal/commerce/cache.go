package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ShopInfoCache stores ShopInfo per shop domain with a TTL.
type ShopInfoCache interface {
	Get(ctx context.Context, shop string) (ShopInfo, bool, error)
	Set(ctx context.Context, shop string, info ShopInfo, ttl time.Duration) error
}

const shopInfoKeyPrefix = "cod:shopinfo:"

// RedisShopInfoCache keeps entries as JSON strings.
type RedisShopInfoCache struct {
	rdb redis.Cmdable
}

func NewRedisShopInfoCache(rdb redis.Cmdable) *RedisShopInfoCache {
	return &RedisShopInfoCache{rdb: rdb}
}

func (c *RedisShopInfoCache) Get(ctx context.Context, shop string) (ShopInfo, bool, error) {
	raw, err := c.rdb.Get(ctx, shopInfoKeyPrefix+shop).Bytes()
	if errors.Is(err, redis.Nil) {
		return ShopInfo{}, false, nil
	}
	if err != nil {
		return ShopInfo{}, false, err
	}
	var info ShopInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return ShopInfo{}, false, err
	}
	return info, true, nil
}

func (c *RedisShopInfoCache) Set(ctx context.Context, shop string, info ShopInfo, ttl time.Duration) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, shopInfoKeyPrefix+shop, raw, ttl).Err()
}

// MemoryShopInfoCache is an in-process cache for tests and single-node runs.
type MemoryShopInfoCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	Now     func() time.Time
}

type memoryEntry struct {
	info    ShopInfo
	expires time.Time
}

func NewMemoryShopInfoCache() *MemoryShopInfoCache {
	return &MemoryShopInfoCache{entries: map[string]memoryEntry{}, Now: time.Now}
}

func (c *MemoryShopInfoCache) Get(ctx context.Context, shop string) (ShopInfo, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[shop]
	if !ok || !c.Now().Before(e.expires) {
		delete(c.entries, shop)
		return ShopInfo{}, false, nil
	}
	return e.info, true, nil
}

func (c *MemoryShopInfoCache) Set(ctx context.Context, shop string, info ShopInfo, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[shop] = memoryEntry{info: info, expires: c.Now().Add(ttl)}
	return nil
}
