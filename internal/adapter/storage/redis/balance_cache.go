package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// BalanceCache implements ports.BalanceCache using Redis. Balances are
// cached per owner and invalidated after every committed mutation; the
// database stays the source of truth.
type BalanceCache struct {
	client *goredis.Client
	prefix string
}

// NewBalanceCache creates a new Redis-backed balance cache.
func NewBalanceCache(client *goredis.Client) *BalanceCache {
	return &BalanceCache{
		client: client,
		prefix: "balance:",
	}
}

// Get retrieves a cached balance by owner ID.
// Returns 0, false, nil when the key does not exist.
func (c *BalanceCache) Get(ctx context.Context, ownerID uuid.UUID) (int64, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+ownerID.String()).Result()
	if err != nil {
		if err == goredis.Nil {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis balance get: %w", err)
	}

	balance, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis balance parse: %w", err)
	}
	return balance, true, nil
}

// Set stores a balance with TTL.
func (c *BalanceCache) Set(ctx context.Context, ownerID uuid.UUID, balance int64, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+ownerID.String(), strconv.FormatInt(balance, 10), ttl).Err()
	if err != nil {
		return fmt.Errorf("redis balance set: %w", err)
	}
	return nil
}

// Invalidate drops cached balances for the given owners.
func (c *BalanceCache) Invalidate(ctx context.Context, ownerIDs ...uuid.UUID) error {
	if len(ownerIDs) == 0 {
		return nil
	}
	keys := make([]string, len(ownerIDs))
	for i, id := range ownerIDs {
		keys[i] = c.prefix + id.String()
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis balance invalidate: %w", err)
	}
	return nil
}
