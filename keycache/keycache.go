// Package keycache retains superseded group epoch keys for a bounded
// window so in-flight payloads encrypted just before a rotation remain
// decryptable. Entries are held in secure memory and wiped on expiry,
// eviction, disable and shutdown.
package keycache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/root-sector/group-chat-module-keylifecycle/interfaces"
	"github.com/root-sector/group-chat-module-keylifecycle/types"
)

// Key builds the cache key for a group epoch.
func Key(groupID string, version int) string {
	return fmt.Sprintf("group:%s:v%d", groupID, version)
}

type entry struct {
	value   *types.SecureBytes
	version int
	expiry  time.Time
}

// Cache is an in-memory KeyCache with TTL-based eviction.
type Cache struct {
	mu      sync.RWMutex
	enabled bool
	ttl     time.Duration
	data    map[string]*entry
	stats   types.CacheStats
	zLogger zerolog.Logger
	done    chan struct{}
	closeMu sync.Once
}

// New creates a key cache from the given configuration and starts its
// background eviction routine.
func New(config types.CacheConfig, opLogger zerolog.Logger) interfaces.KeyCache {
	if opLogger.GetLevel() == zerolog.Disabled {
		opLogger = log.Logger
	}

	c := &Cache{
		enabled: config.Enabled,
		ttl:     config.GetEffectiveTTL(),
		data:    make(map[string]*entry),
		stats: types.CacheStats{
			LastAccess:  time.Now().UTC(),
			LastUpdated: time.Now().UTC(),
			LastPurged:  time.Now().UTC(),
		},
		zLogger: opLogger.With().Str("component", "key_cache").Logger(),
		done:    make(chan struct{}),
	}

	go c.startEvictionRoutine()

	c.zLogger.Debug().
		Bool("enabled", c.enabled).
		Dur("ttl", c.ttl).
		Msg("Key cache initialized")

	return c
}

func (c *Cache) startEvictionRoutine() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	evicted := 0
	for key, e := range c.data {
		if now.After(e.expiry) {
			e.value.Clear()
			delete(c.data, key)
			evicted++
		}
	}

	if evicted > 0 {
		c.stats.Size = len(c.data)
		c.stats.LastPurged = now
		c.zLogger.Debug().
			Int("evictedCount", evicted).
			Int("currentSize", len(c.data)).
			Msg("Expired epoch keys wiped")
	}
}

// Enable enables the cache.
func (c *Cache) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = true
}

// Disable disables the cache and securely wipes all entries.
func (c *Cache) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
	c.clearLocked()
}

// IsEnabled returns whether the cache is enabled.
func (c *Cache) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// Get retrieves an epoch key. The boolean reports a hit; an expired entry
// is a miss and is wiped in place.
func (c *Cache) Get(ctx context.Context, key string) (*types.SecureBytes, int, bool) {
	if ctx.Err() != nil {
		return nil, 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	c.stats.LastAccess = now

	if !c.enabled {
		c.stats.Misses++
		return nil, 0, false
	}

	e, exists := c.data[key]
	if !exists {
		c.stats.Misses++
		return nil, 0, false
	}
	if now.After(e.expiry) {
		e.value.Clear()
		delete(c.data, key)
		c.stats.Size = len(c.data)
		c.stats.Misses++
		return nil, 0, false
	}

	c.stats.Hits++
	// Return a fresh secure copy so the caller's Clear cannot wipe the
	// cached entry out from under other readers.
	return types.NewSecureBytes(e.value.Get()), e.version, true
}

// Set stores an epoch key under the configured TTL. The value is copied
// into secure memory; the caller keeps ownership of its own slice.
func (c *Cache) Set(ctx context.Context, key string, value []byte, version int) {
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}

	if old, exists := c.data[key]; exists {
		old.value.Clear()
	}

	c.data[key] = &entry{
		value:   types.NewSecureBytes(value),
		version: version,
		expiry:  time.Now().UTC().Add(c.ttl),
	}
	c.stats.Size = len(c.data)
	c.stats.LastUpdated = time.Now().UTC()

	c.zLogger.Trace().
		Str("key", key).
		Int("version", version).
		Msg("Epoch key cached")
}

// Delete securely wipes and removes a key from the cache.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.data[key]; exists {
		e.value.Clear()
		delete(c.data, key)
		c.stats.Size = len(c.data)
		c.stats.LastUpdated = time.Now().UTC()
	}
}

// Clear securely wipes and removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Cache) clearLocked() {
	for _, e := range c.data {
		e.value.Clear()
	}
	c.data = make(map[string]*entry)
	c.stats.Size = 0
	c.stats.LastUpdated = time.Now().UTC()
}

// GetStats returns cache statistics.
func (c *Cache) GetStats(ctx context.Context) types.CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Close stops the eviction routine and wipes all entries.
func (c *Cache) Close() {
	c.closeMu.Do(func() {
		close(c.done)
	})
	c.Clear()
}
