package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jp-address-parser/app/config"
	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/internal/gazetteer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAdminFixture(t *testing.T, importer TownImporter) (*AdminService, *CacheService, *gazetteer.CachedSource) {
	t.Helper()
	p := &mockParser{}
	p.On("RulesVersion").Return("v2")

	cache := NewCacheService(time.Hour)
	embedded, err := gazetteer.NewEmbeddedSource()
	require.NoError(t, err)
	lookup, err := gazetteer.NewCachedSource(embedded, 16, zap.NewNop())
	require.NoError(t, err)

	addresses := NewAddressService(p, cache, 1, 0, zap.NewNop())
	t.Cleanup(addresses.Shutdown)
	return NewAdminService(addresses, cache, lookup, importer, config.SourceEmbedded, zap.NewNop()), cache, lookup
}

func TestAdminService_InvalidateCache(t *testing.T) {
	ctx := context.Background()
	admin, cache, lookup := newAdminFixture(t, nil)

	_, err := lookup.Prefectures(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, lookup.Stats().Entries)

	require.NoError(t, cache.Set(ctx, "a", "v1", sampleRecord("a")))
	require.NoError(t, cache.Set(ctx, "b", "v2", sampleRecord("b")))

	removed, err := admin.InvalidateCache(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 1, cache.Size())
	assert.Equal(t, 0, lookup.Stats().Entries)

	_, err = admin.InvalidateCache(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Size())
}

func TestAdminService_InvalidateCacheError(t *testing.T) {
	p := &mockParser{}
	p.On("RulesVersion").Return("v2")
	addresses := NewAddressService(p, nil, 1, 0, zap.NewNop())
	defer addresses.Shutdown()

	admin := NewAdminService(addresses, brokenCache{}, nil, nil, config.SourceEmbedded, zap.NewNop())
	_, err := admin.InvalidateCache(context.Background(), false)
	assert.ErrorIs(t, err, errBroken)

	stats := admin.GetSystemStats(context.Background())
	assert.Nil(t, stats.Cache)
	assert.Equal(t, errBroken.Error(), stats.CacheError)
}

func TestAdminService_SeedGazetteer(t *testing.T) {
	ctx := context.Background()
	var got []models.GazetteerTown
	importer := TownImporterFunc(func(_ context.Context, rows []models.GazetteerTown, replace bool) (int, error) {
		assert.True(t, replace)
		got = rows
		return len(rows), nil
	})
	admin, cache, _ := newAdminFixture(t, importer)
	require.NoError(t, cache.Set(ctx, "a", "v2", sampleRecord("a")))

	rows := []models.GazetteerTown{
		models.NewGazetteerTown("東京都", "中央区", "日本橋一丁目"),
		models.NewGazetteerTown("東京都", "中央区", "八重洲二丁目"),
	}
	result, err := admin.SeedGazetteer(ctx, rows, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowsImported)
	assert.Equal(t, rows, got)
	assert.Equal(t, 0, cache.Size(), "parse cache is cleared after a seed")

	_, err = admin.SeedGazetteer(ctx, nil, true)
	assert.Error(t, err)
}

func TestAdminService_SeedErrors(t *testing.T) {
	ctx := context.Background()
	rows := []models.GazetteerTown{models.NewGazetteerTown("東京都", "中央区", "")}

	admin, _, _ := newAdminFixture(t, nil)
	_, err := admin.SeedGazetteer(ctx, rows, false)
	assert.ErrorIs(t, err, ErrSeedUnsupported)

	failing := TownImporterFunc(func(context.Context, []models.GazetteerTown, bool) (int, error) {
		return 0, errors.New("copy failed")
	})
	admin, _, _ = newAdminFixture(t, failing)
	_, err = admin.SeedGazetteer(ctx, rows, false)
	assert.ErrorContains(t, err, "copy failed")
}

func TestAdminService_GetSystemStats(t *testing.T) {
	ctx := context.Background()
	admin, cache, lookup := newAdminFixture(t, nil)
	require.NoError(t, cache.Set(ctx, "a", "v2", sampleRecord("a")))
	_, _ = lookup.Prefectures(ctx)

	stats := admin.GetSystemStats(ctx)
	assert.Equal(t, config.SourceEmbedded, stats.GazetteerSource)
	assert.Equal(t, "v2", stats.Service.RulesVersion)
	require.NotNil(t, stats.Cache)
	assert.Equal(t, int64(1), stats.Cache.TotalItems)
	require.NotNil(t, stats.GazetteerLookup)
	assert.Equal(t, int64(1), stats.GazetteerLookup.Misses)
	assert.Contains(t, stats.MemoryUsage, "alloc_mb")
}
