// Package cache holds the in-memory mirror of resolved identities.
package cache

import (
	"context"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/models"
)

// WarmSource pages source mappings out of the store for cache warmup.
type WarmSource interface {
	ListMappingsPage(ctx context.Context, limit, offset int) ([]models.SourceMapping, error)
}

// MatchCache is a read-through mirror of the mapping store plus the exact
// identity indexes (email, domain). It is warmed at startup and updated on
// every write, so it can serve repeat lookups without touching Postgres.
// Entries are never evicted; the mirror is eventually consistent across
// instances and the store remains the source of truth.
type MatchCache struct {
	mu       sync.RWMutex
	mappings map[string]string // tenant|type|source_system|source_id -> unified_id
	emails   map[string]string // tenant|email -> unified_id
	domains  map[string]string // tenant|domain -> unified_id
}

func New() *MatchCache {
	return &MatchCache{
		mappings: make(map[string]string),
		emails:   make(map[string]string),
		domains:  make(map[string]string),
	}
}

// GetMapping returns the unified ID for a source record, if cached.
func (c *MatchCache) GetMapping(tenantID, entityType, sourceSystem, sourceID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.mappings[fieldKey(tenantID, entityType, sourceSystem, sourceID)]
	return id, ok
}

// PutMapping records a source record's unified ID.
func (c *MatchCache) PutMapping(tenantID, entityType, sourceSystem, sourceID, unifiedID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mappings[fieldKey(tenantID, entityType, sourceSystem, sourceID)] = unifiedID
}

// GetEmail returns the unified ID owning a normalized email, if cached.
func (c *MatchCache) GetEmail(tenantID, email string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.emails[fieldKey(tenantID, email)]
	return id, ok
}

func (c *MatchCache) PutEmail(tenantID, email, unifiedID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emails[fieldKey(tenantID, email)] = unifiedID
}

// GetDomain returns the unified ID owning a normalized domain, if cached.
func (c *MatchCache) GetDomain(tenantID, domain string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.domains[fieldKey(tenantID, domain)]
	return id, ok
}

func (c *MatchCache) PutDomain(tenantID, domain, unifiedID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.domains[fieldKey(tenantID, domain)] = unifiedID
}

// Warm pages all mappings out of the store and seeds the mapping and
// identity indexes from their captured metadata.
func (c *MatchCache) Warm(ctx context.Context, source WarmSource, logger ectologger.Logger) error {
	const pageSize = 1000

	total := 0
	for offset := 0; ; offset += pageSize {
		mappings, err := source.ListMappingsPage(ctx, pageSize, offset)
		if err != nil {
			return err
		}
		if len(mappings) == 0 {
			break
		}

		c.mu.Lock()
		for _, mapping := range mappings {
			c.mappings[fieldKey(mapping.TenantID, mapping.EntityType, mapping.SourceSystem, mapping.SourceID)] = mapping.UnifiedID
			meta := mapping.Metadata.GetValue()
			if meta.Email != "" {
				c.emails[fieldKey(mapping.TenantID, meta.Email)] = mapping.UnifiedID
			}
			if meta.Domain != "" {
				c.domains[fieldKey(mapping.TenantID, meta.Domain)] = mapping.UnifiedID
			}
		}
		c.mu.Unlock()

		total += len(mappings)
		if len(mappings) < pageSize {
			break
		}
	}

	logger.WithContext(ctx).WithFields(map[string]any{"mappings": total}).Info("Warmed match cache")
	return nil
}

// Size returns the number of cached mapping entries.
func (c *MatchCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mappings)
}

func fieldKey(parts ...string) string {
	return strings.Join(parts, "|")
}
