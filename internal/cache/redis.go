package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"insights-filter/internal/logger"
	"insights-filter/internal/models"
)

// KeyPrefix namespaces normalized tables in Redis.
const KeyPrefix = "insights:normalized:"

// InitializeRedis connects to Redis and verifies the connection with a ping.
func InitializeRedis(addr string, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "",
		DB:       0,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		if log != nil {
			log.Error("CACHE", fmt.Sprintf("Failed to connect to Redis at %s: %v", addr, err))
		}
		return nil, err
	}

	if log != nil {
		log.Info("CACHE", fmt.Sprintf("Connected to Redis at %s for normalized table caching", addr))
	}
	return client, nil
}

// RedisCache stores normalized tables as JSON keyed by upload content hash.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: client, TTL: ttl}
}

func Key(hash string) string {
	return KeyPrefix + hash
}

// Get returns the cached table for hash, or nil, nil when there is none.
func (c *RedisCache) Get(ctx context.Context, hash string) (*models.NormalizedTable, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	raw, err := c.Client.Get(ctx, Key(hash)).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get normalized table from Redis: %w", err)
	}

	var table models.NormalizedTable
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("failed to unmarshal normalized table: %w", err)
	}
	return &table, nil
}

func (c *RedisCache) Set(ctx context.Context, hash string, table *models.NormalizedTable) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	raw, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to marshal normalized table: %w", err)
	}

	if err := c.Client.Set(ctx, Key(hash), raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store normalized table in Redis: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, hash string) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return c.Client.Del(ctx, Key(hash)).Err()
}
