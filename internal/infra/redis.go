package infra

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient configures the client backing idempotency, scan throttling
// and the redis blob backend, then verifies connectivity.
func NewRedisClient(ctx context.Context, url string, opts PoolOptions) (*redis.Client, error) {
	opt, err := redisOptions(url, opts)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func redisOptions(url string, opts PoolOptions) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.MaxConns > 0 {
		opt.PoolSize = int(opts.MaxConns)
	}
	if opts.ConnectTimeout > 0 {
		opt.DialTimeout = opts.ConnectTimeout
	}
	return opt, nil
}
