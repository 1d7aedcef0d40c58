package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rewired-gh/polyresearch/internal/models"
)

// RedisCache implements ResearchCache on Redis. Keys never expire.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int, prefix string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisCacheFromClient(client, prefix), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "polyresearch"
	}
	return &RedisCache{client: client, prefix: prefix}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get loads the cached research record for a market.
func (c *RedisCache) Get(ctx context.Context, marketID string) (*models.ResearchRecord, error) {
	data, err := c.client.Get(ctx, c.key(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read research record %s: %w", marketID, err)
	}

	return decodeRecord(data, marketID)
}

// Put stores a research record without expiry. Existing records are kept.
func (c *RedisCache) Put(ctx context.Context, marketID string, record *models.ResearchRecord) error {
	if err := checkRecord(marketID, record); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal research record: %w", err)
	}

	ok, err := c.client.SetNX(ctx, c.key(marketID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to write research record %s: %w", marketID, err)
	}
	if !ok {
		return fmt.Errorf("research record %s: %w", marketID, ErrRecordExists)
	}
	return nil
}

func (c *RedisCache) key(marketID string) string {
	return c.prefix + ":research:" + marketID
}
