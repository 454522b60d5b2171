package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jp-address-parser/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleRecord(full string) *models.AddressRecord {
	r := models.NewAddressRecord(full)
	r.Prefecture = models.Optional("東京都")
	r.City = models.Optional("中央区")
	return r
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("東京都中央区日本橋1-1")
	assert.Equal(t, a, Fingerprint("東京都中央区日本橋1-1"))
	assert.NotEqual(t, a, Fingerprint("東京都中央区日本橋1-2"))
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, a)
}

func TestCacheService_GetSet(t *testing.T) {
	ctx := context.Background()
	cs := NewCacheService(time.Hour)

	_, found, err := cs.Get(ctx, "raw", "v1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cs.Set(ctx, "raw", "v1", sampleRecord("raw")))
	got, found, err := cs.Get(ctx, "raw", "v1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "raw", got.FullAddress)

	_, found, _ = cs.Get(ctx, "raw", "v2")
	assert.False(t, found, "a different rules version is a miss")

	stats, err := cs.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalHits)
	assert.Equal(t, int64(2), stats.TotalMiss)
	assert.Equal(t, int64(1), stats.TotalItems)
	assert.InDelta(t, 1.0/3.0, stats.HitRate, 1e-9)
}

func TestCacheService_TTL(t *testing.T) {
	ctx := context.Background()
	cs := NewCacheService(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cs.now = func() time.Time { return now }

	require.NoError(t, cs.Set(ctx, "a", "v1", sampleRecord("a")))
	require.NoError(t, cs.Set(ctx, "b", "v1", sampleRecord("b")))

	now = now.Add(30 * time.Second)
	_, found, _ := cs.Get(ctx, "a", "v1")
	assert.True(t, found)

	now = now.Add(time.Minute)
	_, found, _ = cs.Get(ctx, "a", "v1")
	assert.False(t, found)
	assert.Equal(t, 1, cs.Size(), "expired entry is removed on read")

	assert.Equal(t, 1, cs.CleanupExpired())
	assert.Equal(t, 0, cs.Size())
}

func TestCacheService_NoTTL(t *testing.T) {
	ctx := context.Background()
	cs := NewCacheService(0)
	now := time.Now()
	cs.now = func() time.Time { return now }

	require.NoError(t, cs.Set(ctx, "a", "v1", sampleRecord("a")))
	now = now.Add(365 * 24 * time.Hour)
	_, found, _ := cs.Get(ctx, "a", "v1")
	assert.True(t, found)
}

func TestCacheService_InvalidateDeleteClear(t *testing.T) {
	ctx := context.Background()
	cs := NewCacheService(time.Hour)

	require.NoError(t, cs.Set(ctx, "a", "v1", sampleRecord("a")))
	require.NoError(t, cs.Set(ctx, "b", "v1", sampleRecord("b")))
	require.NoError(t, cs.Set(ctx, "c", "v2", sampleRecord("c")))

	removed, err := cs.InvalidateByRulesVersion(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Equal(t, 1, cs.Size())

	require.NoError(t, cs.Delete(ctx, "c", "v2"))
	assert.Equal(t, 0, cs.Size())

	require.NoError(t, cs.Set(ctx, "d", "v2", sampleRecord("d")))
	_, _, _ = cs.Get(ctx, "d", "v2")
	require.NoError(t, cs.Clear(ctx))
	stats, _ := cs.GetStats(ctx)
	assert.Equal(t, &CacheStats{}, stats)
}

func TestCacheService_CleanupWorkerStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cs := NewCacheService(time.Nanosecond)
	require.NoError(t, cs.Set(ctx, "a", "v1", sampleRecord("a")))

	cs.StartCleanupWorker(ctx, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return cs.Size() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}

// brokenCache fails every call.
type brokenCache struct{}

var errBroken = errors.New("backend down")

func (brokenCache) Get(context.Context, string, string) (*models.AddressRecord, bool, error) {
	return nil, false, errBroken
}
func (brokenCache) Set(context.Context, string, string, *models.AddressRecord) error { return errBroken }
func (brokenCache) Delete(context.Context, string, string) error                     { return errBroken }
func (brokenCache) Clear(context.Context) error                                      { return errBroken }
func (brokenCache) InvalidateByRulesVersion(context.Context, string) (int64, error) {
	return 0, errBroken
}
func (brokenCache) GetStats(context.Context) (*CacheStats, error) { return nil, errBroken }
func (brokenCache) Close() error                                  { return nil }

func TestHybridCacheService_ReadThroughAndPromote(t *testing.T) {
	ctx := context.Background()
	fast := NewCacheService(time.Hour)
	persistent := NewCacheService(0)
	h := NewHybridCacheService(fast, persistent, zap.NewNop())

	require.NoError(t, persistent.Set(ctx, "raw", "v1", sampleRecord("raw")))

	got, found, err := h.Get(ctx, "raw", "v1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "raw", got.FullAddress)

	assert.Eventually(t, func() bool { return fast.Size() == 1 }, time.Second, 5*time.Millisecond)

	_, found, err = h.Get(ctx, "missing", "v1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHybridCacheService_WritesBoth(t *testing.T) {
	ctx := context.Background()
	fast := NewCacheService(time.Hour)
	persistent := NewCacheService(0)
	h := NewHybridCacheService(fast, persistent, zap.NewNop())

	require.NoError(t, h.Set(ctx, "a", "v1", sampleRecord("a")))
	require.NoError(t, h.Set(ctx, "b", "v2", sampleRecord("b")))
	assert.Equal(t, 2, fast.Size())
	assert.Equal(t, 2, persistent.Size())

	removed, err := h.InvalidateByRulesVersion(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 1, fast.Size())

	require.NoError(t, h.Delete(ctx, "b", "v2"))
	assert.Equal(t, 0, fast.Size())
	assert.Equal(t, 0, persistent.Size())

	require.NoError(t, h.Set(ctx, "c", "v2", sampleRecord("c")))
	require.NoError(t, h.Clear(ctx))
	assert.Equal(t, 0, persistent.Size())
}

func TestHybridCacheService_FastLayerDown(t *testing.T) {
	ctx := context.Background()
	persistent := NewCacheService(0)
	h := NewHybridCacheService(brokenCache{}, persistent, zap.NewNop())

	require.NoError(t, persistent.Set(ctx, "raw", "v1", sampleRecord("raw")))
	_, found, err := h.Get(ctx, "raw", "v1")
	require.NoError(t, err)
	assert.True(t, found)

	err = h.Set(ctx, "x", "v1", sampleRecord("x"))
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, 2, persistent.Size(), "the healthy layer is still written")

	stats, err := h.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalItems)
}

func TestHybridCacheService_StatsMerge(t *testing.T) {
	ctx := context.Background()
	fast := NewCacheService(time.Hour)
	persistent := NewCacheService(0)
	h := NewHybridCacheService(fast, persistent, zap.NewNop())

	require.NoError(t, h.Set(ctx, "a", "v1", sampleRecord("a")))
	_, _, _ = h.Get(ctx, "a", "v1")
	_, _, _ = h.Get(ctx, "zzz", "v1")

	stats, err := h.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalHits)
	assert.Equal(t, int64(1), stats.TotalMiss)
	assert.Equal(t, int64(1), stats.TotalItems)

	_, err = NewHybridCacheService(brokenCache{}, brokenCache{}, zap.NewNop()).GetStats(ctx)
	assert.ErrorIs(t, err, errBroken)
}
