package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/biopro/interface-exception-collector/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis, retrying the initial ping with a linearly
// growing delay so worker startup survives a slow Redis container.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 5
	}
	delay := cfg.ConnectRetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		if attempt < retries {
			select {
			case <-ctx.Done():
				client.Close()
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * delay):
			}
		}
	}

	client.Close()
	return nil, fmt.Errorf("failed to connect to Redis after %d retries: %w", retries, lastErr)
}
