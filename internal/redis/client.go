package redis

import (
	"context"
	"fmt"

	"medshift-chat/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewClient creates a Redis client. Callers own the handle; there is no
// package-level singleton.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
