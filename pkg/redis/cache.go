package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON values under "<prefix>:cache:<key>".
// A disabled client turns every call into a miss or a no-op.
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a cache namespaced by prefix
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// TTLs by artifact
const (
	TTLShort   = time.Minute
	TTLMetrics = time.Hour      // 마지막 백테스트 결과
	TTLCloses  = 24 * time.Hour // 일별 종가
)

func (c *Cache) fullKey(key string) string {
	return c.prefix + ":cache:" + key
}

func (c *Cache) live() bool {
	return c != nil && c.client.Enabled()
}

// Get decodes a cached value into dest. A miss is (false, nil).
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.live() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.fullKey(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set encodes value as JSON and stores it for ttl
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.live() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.client.Redis().Set(ctx, c.fullKey(key), data, ttl).Err()
}

// Delete drops a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.live() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.fullKey(key)).Err()
}

// Remember returns the cached value for key, or calls load and caches its result.
// Cache failures never fail the call; only load errors are returned.
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if hit, err := c.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}

// LastMetricsKey is where the most recent metrics mapping lives
func LastMetricsKey() string {
	return "metrics:last"
}

// ClosesKey identifies one ticker's closes over an inclusive date range
func ClosesKey(ticker, from, to string) string {
	return strings.Join([]string{"closes", ticker, from, to}, ":")
}
