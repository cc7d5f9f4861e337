// Package cache is the Redis side of the service: the user mirror, the API
// key principal cache and the order throttle.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps the Redis client shared by the user mirror, the auth cache,
// the order limiter and the order event stream.
type Cache struct {
	client *redis.Client
}

// Options tunes the client built by New. Zero fields keep the defaults.
type Options struct {
	// OpTimeout bounds the read and write of a single command. Blocking
	// stream reads are extended by their block time.
	OpTimeout time.Duration
	PoolSize  int
}

// New connects to redisURL and verifies the connection with a ping.
func New(ctx context.Context, redisURL string, opts Options) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opt.MinIdleConns = 2
	opt.ConnMaxIdleTime = 5 * time.Minute
	if opts.PoolSize > 0 {
		opt.PoolSize = opts.PoolSize
	}
	if opts.OpTimeout > 0 {
		opt.ReadTimeout = opts.OpTimeout
		opt.WriteTimeout = opts.OpTimeout
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Cache{client: client}, nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping checks Redis connectivity for readiness probes.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the raw client to the order event publisher and worker,
// which share the connection pool.
func (c *Cache) Client() *redis.Client {
	return c.client
}
