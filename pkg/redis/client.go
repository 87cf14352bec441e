// Package redis connects the application to Redis with sane pool defaults.
package redis

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/nordgate/tipbot/pkg/config"
)

const (
	defaultPoolSize     = 10
	defaultMinIdleConns = 2
	defaultPoolTimeout  = 4 * time.Second
	defaultMaxRetries   = 3
)

// New creates a Redis client from cfg and verifies the connection with Ping.
func New(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     defaultPoolSize,
		MinIdleConns: defaultMinIdleConns,
		PoolTimeout:  defaultPoolTimeout,
		MaxRetries:   defaultMaxRetries,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
