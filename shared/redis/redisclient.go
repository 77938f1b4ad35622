// Package redis wraps the go-redis client used for the ban list set and the submission event streams
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gov-dx-sandbox/attribute-forms/shared/monitoring"
)

// Config holds all configuration for the Redis client
type Config struct {
	Addr     string
	Password string
	DB       int
}

// RedisClient is a wrapper around the go-redis client
type RedisClient struct {
	client *redis.Client
}

// NewClient creates a client and pings the server
func NewClient(cfg Config) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return Wrap(rdb), nil
}

// Wrap adapts an existing go-redis client
func Wrap(rdb *redis.Client) *RedisClient {
	return &RedisClient{client: rdb}
}

// Close gracefully closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// GetClient returns the underlying go-redis client
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}

// Publish appends values to a stream with XADD and an auto-generated ID
func (c *RedisClient) Publish(ctx context.Context, stream string, values map[string]any) (string, error) {
	start := time.Now()
	msgID, err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	monitoring.RecordExternalCall("redis", "xadd", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("failed to XADD to stream %s: %w", stream, err)
	}
	return msgID, nil
}

// StreamLength returns the current stream length
func (c *RedisClient) StreamLength(ctx context.Context, stream string) (int64, error) {
	return c.client.XLen(ctx, stream).Result()
}

// HealthCheck verifies Redis connectivity
func (c *RedisClient) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
