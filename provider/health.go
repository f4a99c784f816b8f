package provider

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultHealthTTL is how long a health-check result stays cached
const DefaultHealthTTL = 300 * time.Second

// HealthCache stores provider health-check results with a TTL. A missing
// or expired entry means "unknown", which the dispatch engine treats as
// healthy: a stale negative must never block an available provider.
type HealthCache interface {
	// Get returns the cached health state and whether one is known
	Get(ctx context.Context, providerName string) (healthy bool, known bool)

	// Set caches a health state for the given TTL
	Set(ctx context.Context, providerName string, healthy bool, ttl time.Duration)
}

// InMemoryHealthCache is the default single-process health cache
type InMemoryHealthCache struct {
	entries map[string]healthEntry
	mu      sync.RWMutex
}

type healthEntry struct {
	healthy   bool
	expiresAt time.Time
}

// NewInMemoryHealthCache creates an empty in-memory health cache
func NewInMemoryHealthCache() *InMemoryHealthCache {
	return &InMemoryHealthCache{entries: make(map[string]healthEntry)}
}

func (c *InMemoryHealthCache) Get(_ context.Context, providerName string) (bool, bool) {
	c.mu.RLock()
	entry, ok := c.entries[providerName]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return false, false
	}
	return entry.healthy, true
}

func (c *InMemoryHealthCache) Set(_ context.Context, providerName string, healthy bool, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultHealthTTL
	}
	c.mu.Lock()
	c.entries[providerName] = healthEntry{healthy: healthy, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// RedisHealthCache shares health state across replicas. Errors degrade to
// "unknown" so a Redis outage never blocks charging.
type RedisHealthCache struct {
	client *redis.Client
	prefix string
}

// NewRedisHealthCache creates a Redis-backed health cache
func NewRedisHealthCache(client *redis.Client) *RedisHealthCache {
	return &RedisHealthCache{client: client, prefix: "paybridge:health:"}
}

func (c *RedisHealthCache) Get(ctx context.Context, providerName string) (bool, bool) {
	val, err := c.client.Get(ctx, c.prefix+providerName).Result()
	if err != nil {
		// redis.Nil and transport errors both mean unknown
		return false, false
	}
	return val == "up", true
}

func (c *RedisHealthCache) Set(ctx context.Context, providerName string, healthy bool, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultHealthTTL
	}
	val := "down"
	if healthy {
		val = "up"
	}
	c.client.Set(ctx, c.prefix+providerName, val, ttl)
}
