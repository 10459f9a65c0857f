package cache

import (
	"context"
	"sync"
	"time"

	appbilling "github.com/fieldops/backend/internal/application/billing"
)

// InMemoryProcessedEventCache remembers event ids in a process-local map.
// Suitable for single-instance deployments and testing.
type InMemoryProcessedEventCache struct {
	mu        sync.RWMutex
	entries   map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryProcessedEventCache creates a cache and starts a background
// goroutine that evicts expired entries
func NewInMemoryProcessedEventCache(ttl time.Duration) *InMemoryProcessedEventCache {
	c := &InMemoryProcessedEventCache{
		entries:  make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	return c
}

// Seen reports whether the event id was remembered and has not expired
func (c *InMemoryProcessedEventCache) Seen(ctx context.Context, eventID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expiresAt, exists := c.entries[eventID]
	if !exists {
		return false, nil
	}
	return c.now().Before(expiresAt), nil
}

// Remember records the event id. A live entry keeps its original expiry.
func (c *InMemoryProcessedEventCache) Remember(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if expiresAt, exists := c.entries[eventID]; exists && now.Before(expiresAt) {
		return nil
	}
	c.entries[eventID] = now.Add(c.ttl)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (c *InMemoryProcessedEventCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *InMemoryProcessedEventCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryProcessedEventCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for eventID, expiresAt := range c.entries {
		if !now.Before(expiresAt) {
			delete(c.entries, eventID)
		}
	}
}

// Size returns the number of entries, expired ones included until cleanup runs
func (c *InMemoryProcessedEventCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ appbilling.ProcessedEventCache = (*InMemoryProcessedEventCache)(nil)
