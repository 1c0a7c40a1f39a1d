package plans

import (
	"context"
	"encoding/json"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/mdelarosa/tallypos-backend/pkg/redis"
)

// Cache stores resolved plan states per user. Implementations must treat a
// miss as (nil, nil) so callers can fall through to the database.
type Cache interface {
	Get(ctx context.Context, userID string) (*State, error)
	Set(ctx context.Context, userID string, state State) error
	Invalidate(ctx context.Context, userID string) error
}

type planStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	PlanCacheKey(userID string) string
}

type redisCache struct {
	store planStore
	ttl   time.Duration
}

// NewRedisCache builds a plan cache backed by the shared redis client.
func NewRedisCache(client *redis.Client, ttl time.Duration) Cache {
	return &redisCache{store: client, ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, userID string) (*State, error) {
	raw, err := c.store.Get(ctx, c.store.PlanCacheKey(userID))
	if err != nil {
		if err == redislib.Nil {
			return nil, nil
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// A corrupt entry behaves like a miss; the next Set repairs it.
		return nil, nil
	}
	return &state, nil
}

func (c *redisCache) Set(ctx context.Context, userID string, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.store.PlanCacheKey(userID), string(raw), c.ttl)
}

func (c *redisCache) Invalidate(ctx context.Context, userID string) error {
	return c.store.Del(ctx, c.store.PlanCacheKey(userID))
}
