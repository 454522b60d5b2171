package services

import (
	"context"
	"errors"
	"time"

	"github.com/jp-address-parser/app/models"
	"go.uber.org/zap"
)

// HybridCacheService reads through a fast cache (Redis) to a persistent one
// (MongoDB) and writes to both.
type HybridCacheService struct {
	fast       ICacheService
	persistent ICacheService
	logger     *zap.Logger
}

func NewHybridCacheService(fast, persistent ICacheService, logger *zap.Logger) *HybridCacheService {
	return &HybridCacheService{
		fast:       fast,
		persistent: persistent,
		logger:     logger,
	}
}

func (hcs *HybridCacheService) Get(ctx context.Context, raw, rulesVersion string) (*models.AddressRecord, bool, error) {
	record, found, err := hcs.fast.Get(ctx, raw, rulesVersion)
	if err != nil {
		hcs.logger.Warn("fast cache failed, falling back to persistent cache", zap.Error(err))
	} else if found {
		return record, true, nil
	}

	record, found, err = hcs.persistent.Get(ctx, raw, rulesVersion)
	if err != nil || !found {
		return nil, false, err
	}

	// Promote to the fast cache without holding up the caller.
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hcs.fast.Set(bgCtx, raw, rulesVersion, record); err != nil {
			hcs.logger.Warn("could not promote cache entry", zap.Error(err))
		}
	}()
	return record, true, nil
}

func (hcs *HybridCacheService) Set(ctx context.Context, raw, rulesVersion string, record *models.AddressRecord) error {
	return hcs.both(func(c ICacheService) error {
		return c.Set(ctx, raw, rulesVersion, record)
	})
}

func (hcs *HybridCacheService) Delete(ctx context.Context, raw, rulesVersion string) error {
	return hcs.both(func(c ICacheService) error {
		return c.Delete(ctx, raw, rulesVersion)
	})
}

func (hcs *HybridCacheService) Clear(ctx context.Context) error {
	err := hcs.both(func(c ICacheService) error { return c.Clear(ctx) })
	if err == nil {
		hcs.logger.Info("hybrid cache cleared")
	}
	return err
}

// InvalidateByRulesVersion reports the persistent layer's count, which is the
// authoritative number of stored entries.
func (hcs *HybridCacheService) InvalidateByRulesVersion(ctx context.Context, current string) (int64, error) {
	var removed int64
	err := hcs.both(func(c ICacheService) error {
		n, err := c.InvalidateByRulesVersion(ctx, current)
		if c == hcs.persistent {
			removed = n
		}
		return err
	})
	return removed, err
}

// GetStats merges both layers. One failing layer is tolerated.
func (hcs *HybridCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	fastStats, fastErr := hcs.fast.GetStats(ctx)
	persistentStats, persistentErr := hcs.persistent.GetStats(ctx)

	switch {
	case fastErr != nil && persistentErr != nil:
		return nil, errors.Join(fastErr, persistentErr)
	case fastErr != nil:
		return persistentStats, nil
	case persistentErr != nil:
		return fastStats, nil
	}

	// A fast-layer miss that the persistent layer answers is one hit overall.
	hits := fastStats.TotalHits + persistentStats.TotalHits
	misses := persistentStats.TotalMiss
	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: persistentStats.TotalItems,
	}, nil
}

func (hcs *HybridCacheService) Close() error {
	return hcs.both(func(c ICacheService) error { return c.Close() })
}

// both runs fn against the two layers concurrently and joins their errors.
func (hcs *HybridCacheService) both(fn func(ICacheService) error) error {
	errCh := make(chan error, 2)
	for _, c := range []ICacheService{hcs.fast, hcs.persistent} {
		go func(c ICacheService) {
			errCh <- fn(c)
		}(c)
	}

	var errs []error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
