// Package namecache caches sender display names in Redis so the processor
// does not hit the platform user API on every thread reply. It is strictly
// best-effort: a nil cache or a Redis error just means a direct lookup.
package namecache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(addr string) *Cache {
	if addr == "" {
		return nil
	}
	return &Cache{
		R:   redis.NewClient(&redis.Options{Addr: addr}),
		TTL: DefaultTTL,
	}
}

func key(accountID, platform, senderID string) string {
	return "name:" + accountID + ":" + platform + ":" + senderID
}

func (c *Cache) Get(ctx context.Context, accountID, platform, senderID string) (string, bool) {
	if c == nil || c.R == nil {
		return "", false
	}
	val, err := c.R.Get(ctx, key(accountID, platform, senderID)).Result()
	if err != nil {
		// redis.Nil or cache trouble; either way a direct lookup follows
		return "", false
	}
	return val, true
}

func (c *Cache) Set(ctx context.Context, accountID, platform, senderID, name string) {
	if c == nil || c.R == nil || name == "" {
		return
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	_ = c.R.Set(ctx, key(accountID, platform, senderID), name, ttl).Err()
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.R == nil {
		return nil
	}
	return c.R.Ping(ctx).Err()
}
