package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/internal/gazetteer"
	"go.uber.org/zap"
)

var ErrSeedUnsupported = errors.New("services: gazetteer source does not accept seeding")

// TownImporter loads gazetteer rows into a writable source.
type TownImporter interface {
	ImportTowns(ctx context.Context, rows []models.GazetteerTown, replace bool) (int, error)
}

// TownImporterFunc adapts a function to TownImporter.
type TownImporterFunc func(ctx context.Context, rows []models.GazetteerTown, replace bool) (int, error)

func (f TownImporterFunc) ImportTowns(ctx context.Context, rows []models.GazetteerTown, replace bool) (int, error) {
	return f(ctx, rows, replace)
}

// SeedResult reports a gazetteer seed.
type SeedResult struct {
	RowsImported     int   `json:"rows_imported"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
	CacheInvalidated int64 `json:"cache_invalidated"`
}

// SystemStats is the admin view of the running service.
type SystemStats struct {
	Service         ServiceStats           `json:"service"`
	GazetteerSource string                 `json:"gazetteer_source"`
	GazetteerLookup *gazetteer.CacheStats  `json:"gazetteer_lookup,omitempty"`
	Cache           *CacheStats            `json:"cache,omitempty"`
	CacheError      string                 `json:"cache_error,omitempty"`
	MemoryUsage     map[string]interface{} `json:"memory_usage"`
}

// AdminService exposes cache maintenance, gazetteer seeding and stats.
type AdminService struct {
	addresses  *AddressService
	cache      ICacheService
	lookup     *gazetteer.CachedSource
	importer   TownImporter
	sourceName string
	logger     *zap.Logger
}

// NewAdminService builds the admin service. cache, lookup and importer may be
// nil when the deployment has none.
func NewAdminService(addresses *AddressService, cache ICacheService, lookup *gazetteer.CachedSource, importer TownImporter, sourceName string, logger *zap.Logger) *AdminService {
	return &AdminService{
		addresses:  addresses,
		cache:      cache,
		lookup:     lookup,
		importer:   importer,
		sourceName: sourceName,
		logger:     logger,
	}
}

// InvalidateCache drops parse results from older rules, or everything when
// all is set. The gazetteer lookup cache is always purged.
func (as *AdminService) InvalidateCache(ctx context.Context, all bool) (int64, error) {
	if as.lookup != nil {
		as.lookup.Purge()
	}
	if as.cache == nil {
		return 0, nil
	}
	if all {
		if err := as.cache.Clear(ctx); err != nil {
			return 0, fmt.Errorf("services: clear cache: %w", err)
		}
		as.logger.Info("parse cache cleared")
		return 0, nil
	}

	removed, err := as.cache.InvalidateByRulesVersion(ctx, as.addresses.RulesVersion())
	if err != nil {
		return removed, fmt.Errorf("services: invalidate cache: %w", err)
	}
	as.logger.Info("parse cache invalidated",
		zap.String("rules_version", as.addresses.RulesVersion()),
		zap.Int64("removed", removed))
	return removed, nil
}

// SeedGazetteer imports rows into the configured source, then drops every
// cached lookup and parse result since they may no longer hold.
func (as *AdminService) SeedGazetteer(ctx context.Context, rows []models.GazetteerTown, replace bool) (*SeedResult, error) {
	if as.importer == nil {
		return nil, ErrSeedUnsupported
	}
	if len(rows) == 0 {
		return nil, errors.New("services: no gazetteer rows to seed")
	}

	started := time.Now()
	n, err := as.importer.ImportTowns(ctx, rows, replace)
	if err != nil {
		return nil, fmt.Errorf("services: seed gazetteer: %w", err)
	}

	result := &SeedResult{RowsImported: n}
	if as.lookup != nil {
		as.lookup.Purge()
	}
	if as.cache != nil {
		if err := as.cache.Clear(ctx); err != nil {
			as.logger.Warn("could not clear parse cache after seed", zap.Error(err))
		}
	}
	result.ProcessingTimeMs = time.Since(started).Milliseconds()

	as.logger.Info("gazetteer seeded",
		zap.Int("rows", n),
		zap.Bool("replace", replace),
		zap.Int64("elapsed_ms", result.ProcessingTimeMs))
	return result, nil
}

// GetSystemStats collects service, cache and memory stats. A failing cache
// backend is reported in the result rather than as an error.
func (as *AdminService) GetSystemStats(ctx context.Context) *SystemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &SystemStats{
		Service:         as.addresses.GetStats(),
		GazetteerSource: as.sourceName,
		MemoryUsage: map[string]interface{}{
			"alloc_mb":       bToMb(m.Alloc),
			"total_alloc_mb": bToMb(m.TotalAlloc),
			"sys_mb":         bToMb(m.Sys),
			"num_gc":         m.NumGC,
			"goroutines":     runtime.NumGoroutine(),
		},
	}

	if as.lookup != nil {
		lookup := as.lookup.Stats()
		stats.GazetteerLookup = &lookup
	}
	if as.cache != nil {
		cacheStats, err := as.cache.GetStats(ctx)
		if err != nil {
			stats.CacheError = err.Error()
		} else {
			stats.Cache = cacheStats
		}
	}
	return stats
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
