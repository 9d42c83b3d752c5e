package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"propsearch/internal/adapters/observability"
	"propsearch/internal/domain"
)

const keyPrefix = "propsearch"

// Cache stores whole search results as JSON, one key per vertical and query.
type Cache struct{ c *redis.Client }

func New(addr, pass string, db int) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

func NewWithClient(c *redis.Client) *Cache { return &Cache{c: c} }

func Key(v domain.Vertical, queryKey string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, v, queryKey)
}

func (r *Cache) Get(ctx context.Context, v domain.Vertical, queryKey string) (*domain.SearchResult, bool, error) {
	b, err := r.c.Get(ctx, Key(v, queryKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("redis", "miss")
		return nil, false, nil
	}
	if err != nil {
		observability.ObserveCache("redis", "error")
		return nil, false, err
	}
	var out domain.SearchResult
	if err := json.Unmarshal(b, &out); err != nil {
		observability.ObserveCache("redis", "error")
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	observability.ObserveCache("redis", "hit")
	return &out, true, nil
}

func (r *Cache) Set(ctx context.Context, v domain.Vertical, queryKey string, res domain.SearchResult, ttl time.Duration) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	observability.ObserveCache("redis", "set")
	return r.c.Set(ctx, Key(v, queryKey), b, ttl).Err()
}

func (r *Cache) Del(ctx context.Context, v domain.Vertical, queryKey string) error {
	observability.ObserveCache("redis", "del")
	return r.c.Del(ctx, Key(v, queryKey)).Err()
}

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Cache) Close() error { return r.c.Close() }
