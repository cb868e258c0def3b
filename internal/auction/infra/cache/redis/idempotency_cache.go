package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/hammerline/bidengine/internal/auction/domain"
)

// IdempotencyCache implements domain.IdempotencyCache using Redis SETNX
// with a TTL. The first registration of a token wins; resubmissions within
// the window see false.
type IdempotencyCache struct {
	rdb *Client
}

// NewIdempotencyCache creates an IdempotencyCache backed by the given Client.
func NewIdempotencyCache(c *Client) *IdempotencyCache {
	return &IdempotencyCache{rdb: c}
}

func idemKey(key string) string {
	return "idem:" + key
}

// Register records the token for the duration of the window. Returns false
// when the token was already seen.
func (c *IdempotencyCache) Register(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.Underlying().SetNX(ctx, idemKey(key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: register idempotency token: %w", err)
	}
	return ok, nil
}

// Unregister frees a token whose submission did not land.
func (c *IdempotencyCache) Unregister(ctx context.Context, key string) error {
	if err := c.rdb.Underlying().Del(ctx, idemKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: release idempotency token: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.IdempotencyCache = (*IdempotencyCache)(nil)
