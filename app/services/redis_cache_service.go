package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jp-address-parser/app/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "jp_addr:"

// RedisCacheService keeps parsed records in Redis as JSON under
// jp_addr:<rules version>:<fingerprint>.
type RedisCacheService struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCacheService connects to redisURL and pings it.
func NewRedisCacheService(redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisCacheService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis cache: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis cache: ping: %w", err)
	}
	return NewRedisCacheServiceFromClient(client, ttl, logger), nil
}

// NewRedisCacheServiceFromClient wraps an existing client.
func NewRedisCacheServiceFromClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCacheService {
	return &RedisCacheService{
		client: client,
		logger: logger,
		prefix: redisKeyPrefix,
		ttl:    ttl,
	}
}

func (rcs *RedisCacheService) key(raw, rulesVersion string) string {
	return rcs.prefix + rulesVersion + ":" + Fingerprint(raw)
}

func (rcs *RedisCacheService) Get(ctx context.Context, raw, rulesVersion string) (*models.AddressRecord, bool, error) {
	cacheKey := rcs.key(raw, rulesVersion)

	val, err := rcs.client.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		rcs.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		rcs.logger.Error("redis get failed", zap.Error(err), zap.String("key", cacheKey))
		return nil, false, fmt.Errorf("redis cache: get: %w", err)
	}

	var record models.AddressRecord
	if err := json.Unmarshal(val, &record); err != nil {
		return nil, false, fmt.Errorf("redis cache: decode %s: %w", cacheKey, err)
	}

	rcs.hits.Add(1)
	return &record, true, nil
}

func (rcs *RedisCacheService) Set(ctx context.Context, raw, rulesVersion string, record *models.AddressRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("redis cache: encode: %w", err)
	}

	cacheKey := rcs.key(raw, rulesVersion)
	if err := rcs.client.Set(ctx, cacheKey, data, rcs.ttl).Err(); err != nil {
		rcs.logger.Error("redis set failed", zap.Error(err), zap.String("key", cacheKey))
		return fmt.Errorf("redis cache: set: %w", err)
	}
	return nil
}

func (rcs *RedisCacheService) Delete(ctx context.Context, raw, rulesVersion string) error {
	if err := rcs.client.Del(ctx, rcs.key(raw, rulesVersion)).Err(); err != nil {
		return fmt.Errorf("redis cache: delete: %w", err)
	}
	return nil
}

func (rcs *RedisCacheService) Clear(ctx context.Context) error {
	removed, err := rcs.deleteMatching(ctx, func(string) bool { return true })
	if err != nil {
		return err
	}
	rcs.hits.Store(0)
	rcs.misses.Store(0)
	rcs.logger.Info("redis cache cleared", zap.Int64("keys_deleted", removed))
	return nil
}

func (rcs *RedisCacheService) InvalidateByRulesVersion(ctx context.Context, current string) (int64, error) {
	keep := rcs.prefix + current + ":"
	return rcs.deleteMatching(ctx, func(key string) bool {
		return !strings.HasPrefix(key, keep)
	})
}

// deleteMatching scans the prefix instead of using KEYS so a large cache does
// not block the server.
func (rcs *RedisCacheService) deleteMatching(ctx context.Context, match func(string) bool) (int64, error) {
	var (
		removed int64
		batch   []string
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := rcs.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis cache: delete keys: %w", err)
		}
		removed += n
		batch = batch[:0]
		return nil
	}

	iter := rcs.client.Scan(ctx, 0, rcs.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		if !match(iter.Val()) {
			continue
		}
		batch = append(batch, iter.Val())
		if len(batch) >= 500 {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis cache: scan: %w", err)
	}
	return removed, flush()
}

func (rcs *RedisCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	var items int64
	iter := rcs.client.Scan(ctx, 0, rcs.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		items++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis cache: scan: %w", err)
	}

	hits, misses := rcs.hits.Load(), rcs.misses.Load()
	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: items,
	}, nil
}

func (rcs *RedisCacheService) Close() error {
	return rcs.client.Close()
}
