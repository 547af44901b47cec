package authz

import (
	"fmt"
	"sync"
	"time"

	"github.com/evalforge/evalforge/internal/db/models"
)

// DefaultPermissionCacheTTL bounds staleness of cached role permission
// sets. The short window absorbs read bursts (many requests per session)
// without a database round-trip per request, while edits still become
// visible within seconds even without explicit invalidation.
const DefaultPermissionCacheTTL = 5 * time.Second

// RolePermissionLoader loads a role's permission set on cache miss.
type RolePermissionLoader interface {
	ListForRole(orgID uint64, roleID uint) ([]models.Permission, error)
}

type permissionCacheKey struct {
	orgID  uint64
	roleID uint
}

type permissionCacheEntry struct {
	perms    []models.Permission
	cachedAt time.Time
}

// CacheStats exposes hit/miss/load counters for diagnostics.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Loads  uint64
}

// PermissionCache is a process-local TTL cache in front of the role
// assignment store, keyed by (organization, role). All entries and
// counters are protected by a single lock; the clock is injected so
// expiry is testable. Construct one per process and pass it by
// reference; there is no package-level instance.
type PermissionCache struct {
	mu      sync.Mutex
	entries map[permissionCacheKey]permissionCacheEntry
	stats   CacheStats

	loader RolePermissionLoader
	ttl    time.Duration
	now    func() time.Time
}

// NewPermissionCache creates a cache over the given loader. A zero ttl
// falls back to DefaultPermissionCacheTTL.
func NewPermissionCache(loader RolePermissionLoader, ttl time.Duration) *PermissionCache {
	if ttl <= 0 {
		ttl = DefaultPermissionCacheTTL
	}

	return &PermissionCache{
		entries: make(map[permissionCacheKey]permissionCacheEntry),
		loader:  loader,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached permission set for (organization, role) if a
// fresh entry exists, loading and storing it otherwise.
func (c *PermissionCache) Get(orgID uint64, roleID uint) ([]models.Permission, error) {
	key := permissionCacheKey{orgID: orgID, roleID: roleID}

	c.mu.Lock()

	if entry, ok := c.entries[key]; ok && c.now().Sub(entry.cachedAt) < c.ttl {
		c.stats.Hits++
		cacheEvents.WithLabelValues(cacheEventHit).Inc()
		c.mu.Unlock()

		return entry.perms, nil
	}

	c.stats.Misses++
	cacheEvents.WithLabelValues(cacheEventMiss).Inc()
	c.mu.Unlock()

	// The load suspends on the persistence layer, so it runs outside the
	// lock. A racing reload is idempotent; last writer wins.
	perms, err := c.loader.ListForRole(orgID, roleID)
	if err != nil {
		cacheEvents.WithLabelValues(cacheEventLoadError).Inc()

		return nil, fmt.Errorf("failed to load permissions for role %d: %w", roleID, err)
	}

	c.mu.Lock()
	c.stats.Loads++
	c.entries[key] = permissionCacheEntry{perms: perms, cachedAt: c.now()}
	c.mu.Unlock()

	return perms, nil
}

// Invalidate removes the entry immediately. Writers must call it
// synchronously after a committed change to the role's assignments,
// before returning to their own caller.
func (c *PermissionCache) Invalidate(orgID uint64, roleID uint) {
	c.mu.Lock()
	delete(c.entries, permissionCacheKey{orgID: orgID, roleID: roleID})
	c.mu.Unlock()
}

// Stats returns a copy of the hit/miss/load counters.
func (c *PermissionCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

// setClock replaces the cache clock; tests only.
func (c *PermissionCache) setClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}
