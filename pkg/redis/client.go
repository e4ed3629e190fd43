package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/sentiment-ls/pkg/config"
)

const connectTimeout = 5 * time.Second

// Client is an optional Redis connection.
// A disabled client (REDIS_ENABLED=false or a failed connect handled by the caller)
// turns cache and rate-limit helpers into no-ops.
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb *redis.Client
}

// New connects and pings Redis. A disabled config yields a disabled client.
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return Disabled(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: connectTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", rdb.Options().Addr, err)
	}

	return &Client{rdb: rdb}, nil
}

// Disabled returns a client without a connection
func Disabled() *Client {
	return &Client{}
}

// Enabled reports whether a connection exists
func (c *Client) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Redis exposes the underlying client; nil when disabled
func (c *Client) Redis() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}

// Ping checks the connection. A disabled client always succeeds.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}
