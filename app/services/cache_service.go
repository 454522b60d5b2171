package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jp-address-parser/app/models"
)

type memoryEntry struct {
	record   *models.AddressRecord
	version  string
	storedAt time.Time
}

// CacheService is the in-memory parse cache used when no Redis or MongoDB is
// configured.
type CacheService struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCacheService creates an in-memory cache. A non-positive ttl keeps
// entries until they are invalidated.
func NewCacheService(ttl time.Duration) *CacheService {
	return &CacheService{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (cs *CacheService) Get(_ context.Context, raw, rulesVersion string) (*models.AddressRecord, bool, error) {
	key := Fingerprint(raw)

	cs.mu.RLock()
	entry, ok := cs.entries[key]
	cs.mu.RUnlock()

	if !ok || entry.version != rulesVersion {
		cs.misses.Add(1)
		return nil, false, nil
	}
	if cs.expired(entry) {
		cs.mu.Lock()
		delete(cs.entries, key)
		cs.mu.Unlock()
		cs.misses.Add(1)
		return nil, false, nil
	}

	cs.hits.Add(1)
	return entry.record, true, nil
}

func (cs *CacheService) Set(_ context.Context, raw, rulesVersion string, record *models.AddressRecord) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.entries[Fingerprint(raw)] = memoryEntry{
		record:   record,
		version:  rulesVersion,
		storedAt: cs.now(),
	}
	return nil
}

func (cs *CacheService) Delete(_ context.Context, raw, _ string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	delete(cs.entries, Fingerprint(raw))
	return nil
}

func (cs *CacheService) Clear(_ context.Context) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.entries = make(map[string]memoryEntry)
	cs.hits.Store(0)
	cs.misses.Store(0)
	return nil
}

func (cs *CacheService) InvalidateByRulesVersion(_ context.Context, current string) (int64, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	var removed int64
	for key, entry := range cs.entries {
		if entry.version != current {
			delete(cs.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (cs *CacheService) GetStats(_ context.Context) (*CacheStats, error) {
	cs.mu.RLock()
	items := int64(len(cs.entries))
	cs.mu.RUnlock()

	hits, misses := cs.hits.Load(), cs.misses.Load()
	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: items,
	}, nil
}

// Size returns the number of stored entries, expired ones included.
func (cs *CacheService) Size() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	return len(cs.entries)
}

// CleanupExpired removes expired entries and returns how many were dropped.
func (cs *CacheService) CleanupExpired() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	removed := 0
	for key, entry := range cs.entries {
		if cs.expired(entry) {
			delete(cs.entries, key)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker runs CleanupExpired every interval until ctx is done.
func (cs *CacheService) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}

func (cs *CacheService) Close() error {
	return nil
}

func (cs *CacheService) expired(entry memoryEntry) bool {
	return cs.ttl > 0 && cs.now().Sub(entry.storedAt) > cs.ttl
}
