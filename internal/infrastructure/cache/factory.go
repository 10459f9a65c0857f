package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	appbilling "github.com/fieldops/backend/internal/application/billing"
	"github.com/fieldops/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ProcessedEventCacheFactory creates processed event caches based on configuration
type ProcessedEventCacheFactory struct {
	redisConfig           config.RedisConfig
	ttl                   time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ProcessedEventCacheFactoryOption is a functional option for configuring the factory
type ProcessedEventCacheFactoryOption func(*ProcessedEventCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ProcessedEventCacheFactoryOption {
	return func(f *ProcessedEventCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory cache when
// Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) ProcessedEventCacheFactoryOption {
	return func(f *ProcessedEventCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewProcessedEventCacheFactory creates a new factory
func NewProcessedEventCacheFactory(cfg config.RedisConfig, ttl time.Duration, opts ...ProcessedEventCacheFactoryOption) *ProcessedEventCacheFactory {
	f := &ProcessedEventCacheFactory{
		redisConfig:           cfg,
		ttl:                   ttl,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// ProcessedEventCache is a cache that owns resources released on shutdown
type ProcessedEventCache interface {
	appbilling.ProcessedEventCache
	io.Closer
}

// CreateRedisCache connects to Redis and returns a cache backed by it
func (f *ProcessedEventCacheFactory) CreateRedisCache(ctx context.Context) (ProcessedEventCache, error) {
	client, err := NewRedisClient(ctx, f.redisConfig.Addr(), f.redisConfig.Password, f.redisConfig.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis processed event cache: %w", err)
	}
	return NewRedisProcessedEventCache(client, DefaultKeyPrefix, f.ttl), nil
}

// CreateInMemoryCache creates a process-local cache.
// In-memory caches do not share state across instances; the processed_events
// claim still prevents double application.
func (f *ProcessedEventCacheFactory) CreateInMemoryCache() ProcessedEventCache {
	return NewInMemoryProcessedEventCache(f.ttl)
}

// CreateCache returns a Redis cache when Redis is enabled and reachable, and
// falls back to the in-memory cache otherwise when fallback is allowed
func (f *ProcessedEventCacheFactory) CreateCache(ctx context.Context) (ProcessedEventCache, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory processed event cache")
		return f.CreateInMemoryCache(), nil
	}

	c, err := f.CreateRedisCache(ctx)
	if err == nil {
		f.logger.Info("Using Redis processed event cache", zap.String("addr", f.redisConfig.Addr()))
		return c, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for processed event cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory processed event cache",
		zap.Error(err))
	return f.CreateInMemoryCache(), nil
}
