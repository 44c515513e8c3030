package promotion

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	listAllKey    = "promotions:list:all"
	listActiveKey = "promotions:list:active"
)

// Cache stores promotion lists in Redis as JSON.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func listKey(activeOnly bool) string {
	if activeOnly {
		return listActiveKey
	}
	return listAllKey
}

// GetList returns the cached list and whether it was present.
func (c *Cache) GetList(ctx context.Context, activeOnly bool) ([]Promotion, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, listKey(activeOnly)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var out []Promotion
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// SetList stores the list with the configured TTL.
func (c *Cache) SetList(ctx context.Context, activeOnly bool, list []Promotion) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, listKey(activeOnly), data, c.ttl).Err()
}

// Invalidate drops every cached list.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, listAllKey, listActiveKey).Err()
}
