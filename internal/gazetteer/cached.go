package gazetteer

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const prefecturesKey = "\x00prefectures"

// CachedSource memoizes lookups of a slower Source (Postgres, Meilisearch,
// HTTP). Only successful lookups are cached.
type CachedSource struct {
	next   Source
	cache  *lru.Cache[string, []string]
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats is a snapshot of the cache counters.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// NewCachedSource wraps next with an LRU of the given size.
func NewCachedSource(next Source, size int, logger *zap.Logger) (*CachedSource, error) {
	cache, err := lru.New[string, []string](size)
	if err != nil {
		return nil, fmt.Errorf("gazetteer: create lru cache: %w", err)
	}
	return &CachedSource{next: next, cache: cache, logger: logger}, nil
}

func (s *CachedSource) Prefectures(ctx context.Context) ([]string, error) {
	return s.lookup(prefecturesKey, func() ([]string, error) {
		return s.next.Prefectures(ctx)
	})
}

func (s *CachedSource) Cities(ctx context.Context, pref string) ([]string, error) {
	return s.lookup("c:"+pref, func() ([]string, error) {
		return s.next.Cities(ctx, pref)
	})
}

func (s *CachedSource) Towns(ctx context.Context, pref, city string) ([]string, error) {
	return s.lookup("t:"+townKey(pref, city), func() ([]string, error) {
		return s.next.Towns(ctx, pref, city)
	})
}

func (s *CachedSource) lookup(key string, load func() ([]string, error)) ([]string, error) {
	if v, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		return v, nil
	}
	s.misses.Add(1)
	v, err := load()
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, v)
	s.logger.Debug("gazetteer cache fill", zap.String("key", key), zap.Int("names", len(v)))
	return v, nil
}

// Purge drops every cached lookup.
func (s *CachedSource) Purge() {
	s.cache.Purge()
}

// Stats returns the current counters.
func (s *CachedSource) Stats() CacheStats {
	return CacheStats{
		Entries: s.cache.Len(),
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}
}
