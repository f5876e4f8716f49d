package inmemorycache

import (
	"context"
	"sync"
	"time"
	"ulascansenturk/weather-exporter/internal/weather"
)

type cacheEntry struct {
	data       weather.Observation
	expiration time.Time
}

// Cache holds upstream observations keyed by weather.Location.Key so that
// locations sharing a request are fetched once per poll cycle.
type Cache interface {
	Get(key string) (weather.Observation, bool)
	Set(key string, data weather.Observation, ttl time.Duration)
}

type InMemoryCache struct {
	cache           map[string]cacheEntry
	mutex           sync.Mutex
	cleanupInterval time.Duration
	now             func() time.Time
}

// NewInMemoryCacheProvider starts a cleanup loop that runs until ctx is done.
func NewInMemoryCacheProvider(ctx context.Context, cleanupInterval time.Duration) *InMemoryCache {
	provider := &InMemoryCache{
		cache:           make(map[string]cacheEntry),
		cleanupInterval: cleanupInterval,
		now:             time.Now,
	}

	go provider.startCleanup(ctx)

	return provider
}

func (m *InMemoryCache) Get(key string) (weather.Observation, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry, exists := m.cache[key]
	if !exists {
		return weather.Observation{}, false
	}

	if m.now().After(entry.expiration) {
		delete(m.cache, key)
		return weather.Observation{}, false
	}

	return entry.data, true
}

func (m *InMemoryCache) Set(key string, data weather.Observation, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cache[key] = cacheEntry{
		data:       data,
		expiration: m.now().Add(ttl),
	}
}

func (m *InMemoryCache) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.cache)
}

func (m *InMemoryCache) startCleanup(ctx context.Context) {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mutex.Lock()
			now := m.now()
			for k, v := range m.cache {
				if now.After(v.expiration) {
					delete(m.cache, k)
				}
			}
			m.mutex.Unlock()
		}
	}
}
