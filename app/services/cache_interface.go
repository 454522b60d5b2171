package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/jp-address-parser/app/models"
)

// CacheStats summarizes cache usage.
type CacheStats struct {
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

// ICacheService stores parsed records keyed by raw address. Every entry is
// tagged with the rules version that produced it; a lookup under a different
// version is a miss.
type ICacheService interface {
	Get(ctx context.Context, raw, rulesVersion string) (*models.AddressRecord, bool, error)
	Set(ctx context.Context, raw, rulesVersion string, record *models.AddressRecord) error
	Delete(ctx context.Context, raw, rulesVersion string) error
	Clear(ctx context.Context) error

	// InvalidateByRulesVersion drops every entry not produced by current and
	// returns how many were removed.
	InvalidateByRulesVersion(ctx context.Context, current string) (int64, error)

	GetStats(ctx context.Context) (*CacheStats, error)
	Close() error
}

// Fingerprint is the stable cache identity of a raw address.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
