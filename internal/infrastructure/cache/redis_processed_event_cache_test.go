package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis runs a disposable Redis container and returns a connected client
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, endpoint, "", 0)
	require.NoError(t, err)
	return client
}

func TestRedisProcessedEventCache(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	c := NewRedisProcessedEventCache(client, "", time.Hour)
	t.Cleanup(func() { _ = c.Close() })

	seen, err := c.Seen(ctx, "evt_redis")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, c.Remember(ctx, "evt_redis"))
	seen, err = c.Seen(ctx, "evt_redis")
	require.NoError(t, err)
	assert.True(t, seen)

	ttl, err := client.TTL(ctx, DefaultKeyPrefix+"evt_redis").Result()
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)

	// A second remember does not extend the expiry
	require.NoError(t, client.Expire(ctx, DefaultKeyPrefix+"evt_redis", time.Minute).Err())
	require.NoError(t, c.Remember(ctx, "evt_redis"))
	ttl, err = client.TTL(ctx, DefaultKeyPrefix+"evt_redis").Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisProcessedEventCache_ClosedClient(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	c := NewRedisProcessedEventCache(client, "test:", time.Hour)
	require.NoError(t, c.Close())

	_, err := c.Seen(context.Background(), "evt_x")
	assert.Error(t, err)
	assert.Error(t, c.Remember(context.Background(), "evt_x"))
}
