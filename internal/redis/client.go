package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client owns the connection to Redis. The rest of the application never
// touches it directly; presence state goes through the PresenceStore built on
// top of it.
type Client struct {
	rdb *redis.Client
}

// NewClient connects using a redis:// URL and installs the metrics hook.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	rdb.AddHook(metricsHook{})
	return &Client{rdb: rdb}, nil
}

// Ping checks connectivity, used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying exposes the raw client to the stores in this package.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
