package catalog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DuKro90/draftcraft/internal/model"
)

// DefaultTTL bounds how long a cached table may serve reads without a refresh.
const DefaultTTL = time.Hour

// CacheService is the cache-aside layer over Catalog. One cache entry exists
// per (business, category), each holding that category's fully resolved table
// as one atomic unit, so a read never observes a half-old, half-new mix. The
// cache is purely a performance layer: a hit and a miss return identical
// multipliers for the same inputs at the same point in time.
type CacheService struct {
	catalog *Catalog
	ttl     time.Duration

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry

	now func() time.Time
}

type cacheKey struct {
	businessID string
	category   model.FactorCategory
}

type cacheEntry struct {
	factors   map[string]ResolvedFactor
	expiresAt time.Time
}

// NewCacheService wraps a catalog with a TTL cache. A non-positive ttl uses
// DefaultTTL.
func NewCacheService(c *Catalog, ttl time.Duration) *CacheService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CacheService{
		catalog: c,
		ttl:     ttl,
		entries: make(map[cacheKey]cacheEntry),
		now:     time.Now,
	}
}

// Table returns the resolved factor table for a business. Fresh category
// entries are served from cache; any stale or missing category triggers one
// catalog load that re-caches every category with a shared expiry.
func (s *CacheService) Table(ctx context.Context, businessID string) (Table, error) {
	now := s.now()

	s.mu.RLock()
	table := make(Table, len(model.AllFactorCategories()))
	complete := true
	for _, cat := range model.AllFactorCategories() {
		entry, ok := s.entries[cacheKey{businessID, cat}]
		if !ok || !now.Before(entry.expiresAt) {
			complete = false
			break
		}
		table[cat] = entry.factors
	}
	s.mu.RUnlock()

	if complete {
		return table, nil
	}

	loaded, err := s.catalog.Load(ctx, businessID)
	if err != nil {
		return nil, err
	}

	expires := s.now().Add(s.ttl)
	s.mu.Lock()
	for cat, factors := range loaded {
		s.entries[cacheKey{businessID, cat}] = cacheEntry{factors: factors, expiresAt: expires}
	}
	s.mu.Unlock()

	return loaded, nil
}

// Resolve returns one multiplier via the cached table.
func (s *CacheService) Resolve(ctx context.Context, businessID string, category model.FactorCategory, key string) (ResolvedFactor, error) {
	table, err := s.Table(ctx, businessID)
	if err != nil {
		return ResolvedFactor{}, err
	}
	return table.Lookup(category, key)
}

// Invalidate drops the cache entry for (business, category). The write side
// calls this around every administrative factor mutation.
func (s *CacheService) Invalidate(businessID string, category model.FactorCategory) {
	s.mu.Lock()
	_, existed := s.entries[cacheKey{businessID, category}]
	delete(s.entries, cacheKey{businessID, category})
	s.mu.Unlock()

	if existed {
		zap.L().Info("catalog: cache invalidated",
			zap.String("business_id", businessID),
			zap.String("category", string(category)),
		)
	}
}

// InvalidateAll empties the cache. Used after bulk imports.
func (s *CacheService) InvalidateAll() {
	s.mu.Lock()
	s.entries = make(map[cacheKey]cacheEntry)
	s.mu.Unlock()
	zap.L().Info("catalog: cache fully invalidated")
}
