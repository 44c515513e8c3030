package ratelimit

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const defaultPrefix = "ratelimit"

// New builds a limiter from a formatted rate such as "30-S" or "1000-H". A nil
// client falls back to an in-process store.
func New(rdb *redis.Client, formatted, prefix string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(strings.TrimSpace(formatted))
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", formatted, err)
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	opts := limiter.StoreOptions{Prefix: prefix}
	var store limiter.Store
	if rdb == nil {
		store = memory.NewStoreWithOptions(opts)
	} else {
		store, err = limiterredis.NewStoreWithOptions(rdb, opts)
		if err != nil {
			return nil, fmt.Errorf("limiter store: %w", err)
		}
	}
	return limiter.New(store, rate), nil
}
