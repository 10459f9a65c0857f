package cache

import (
	"context"
	"fmt"
	"time"

	appbilling "github.com/fieldops/backend/internal/application/billing"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces processed event keys
const DefaultKeyPrefix = "billing:processed_event:"

// RedisProcessedEventCache remembers committed webhook event ids in Redis so
// every instance behind the load balancer shares the fast duplicate path
type RedisProcessedEventCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisProcessedEventCache creates a cache on an existing Redis client
func NewRedisProcessedEventCache(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisProcessedEventCache {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisProcessedEventCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Seen checks if an event id was remembered
func (c *RedisProcessedEventCache) Seen(ctx context.Context, eventID string) (bool, error) {
	exists, err := c.client.Exists(ctx, c.keyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return exists > 0, nil
}

// Remember records an event id with the configured TTL. SETNX keeps the
// original expiry when a redelivery is remembered again.
func (c *RedisProcessedEventCache) Remember(ctx context.Context, eventID string) error {
	if err := c.client.SetNX(ctx, c.keyPrefix+eventID, "1", c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to remember processed event: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisProcessedEventCache) Close() error {
	return c.client.Close()
}

var _ appbilling.ProcessedEventCache = (*RedisProcessedEventCache)(nil)
