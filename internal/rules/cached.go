package rules

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"miles/internal/cache"
	"miles/internal/core"
)

const (
	defaultCacheSize = 64
	defaultCacheTTL  = 30 * time.Second
)

// CachedStore decorates a Store with a short-lived read cache keyed by
// instrument type. A simulation batch runs one independent calculation
// per instrument; the cache keeps that from hitting the underlying
// store N times. Any write invalidates the affected keys.
type CachedStore struct {
	inner Store
	cache *cache.LRUCache[[]core.RewardRule]
}

func NewCachedStore(inner Store) *CachedStore {
	return &CachedStore{
		inner: inner,
		cache: cache.NewLRUCache[[]core.RewardRule](defaultCacheSize, defaultCacheTTL),
	}
}

var _ Store = (*CachedStore)(nil)

func cacheKey(instrumentTypeID int64) string {
	return strconv.FormatInt(instrumentTypeID, 10)
}

func (s *CachedStore) ListRules(ctx context.Context, instrumentTypeID int64) ([]core.RewardRule, error) {
	key := cacheKey(instrumentTypeID)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}
	list, err := s.inner.ListRules(ctx, instrumentTypeID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, list)
	return list, nil
}

// ListEnabled implements engine.RuleSource on top of the cached listing.
func (s *CachedStore) ListEnabled(ctx context.Context, instrumentTypeID int64) ([]core.RewardRule, error) {
	list, err := s.ListRules(ctx, instrumentTypeID)
	if err != nil {
		return nil, err
	}
	return FilterEnabled(list), nil
}

func (s *CachedStore) CreateRule(ctx context.Context, rule core.RewardRule) (core.RewardRule, error) {
	created, err := s.inner.CreateRule(ctx, rule)
	if err != nil {
		return core.RewardRule{}, err
	}
	s.cache.Delete(cacheKey(created.InstrumentTypeID))
	return created, nil
}

func (s *CachedStore) UpdateRule(ctx context.Context, rule core.RewardRule) error {
	if err := s.inner.UpdateRule(ctx, rule); err != nil {
		return err
	}
	// The update may have moved the rule between instrument types; the
	// old type's listing is stale too, so drop everything.
	s.cache.Purge()
	return nil
}

func (s *CachedStore) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if err := s.inner.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.cache.Purge()
	return nil
}

// Invalidate drops every cached listing. Used when a rule-changed
// notification arrives from another process.
func (s *CachedStore) Invalidate() {
	s.cache.Purge()
}
