package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jp-address-parser/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const addressCacheCollection = "address_cache"

// MongoCacheService is the persistent parse cache: an in-process LRU in front
// of the address_cache collection.
type MongoCacheService struct {
	collection *mongo.Collection
	l1Cache    *lru.Cache[string, *models.AddressRecord]
	logger     *zap.Logger

	l1Hits    atomic.Int64
	mongoHits atomic.Int64
	misses    atomic.Int64
}

// NewMongoCacheService creates the collection indexes and the L1 cache.
func NewMongoCacheService(db *mongo.Database, l1Size int, logger *zap.Logger) (*MongoCacheService, error) {
	l1Cache, err := lru.New[string, *models.AddressRecord](l1Size)
	if err != nil {
		return nil, fmt.Errorf("mongo cache: create lru: %w", err)
	}

	collection := db.Collection(addressCacheCollection)
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "raw_fingerprint", Value: 1}, {Key: "rules_version", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "rules_version", Value: 1}}},
		{Keys: bson.D{{Key: "access_count", Value: -1}}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		logger.Warn("could not create address_cache indexes", zap.Error(err))
	}

	return &MongoCacheService{
		collection: collection,
		l1Cache:    l1Cache,
		logger:     logger,
	}, nil
}

func l1Key(fingerprint, rulesVersion string) string {
	return rulesVersion + "|" + fingerprint
}

func (mcs *MongoCacheService) Get(ctx context.Context, raw, rulesVersion string) (*models.AddressRecord, bool, error) {
	fingerprint := Fingerprint(raw)
	if record, ok := mcs.l1Cache.Get(l1Key(fingerprint, rulesVersion)); ok {
		mcs.l1Hits.Add(1)
		return record, true, nil
	}

	var entry models.AddressCache
	filter := bson.M{"raw_fingerprint": fingerprint, "rules_version": rulesVersion}
	err := mcs.collection.FindOne(ctx, filter).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		mcs.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongo cache: find: %w", err)
	}

	mcs.mongoHits.Add(1)
	go mcs.updateAccessStats(entry.ID)

	record := entry.Record
	mcs.l1Cache.Add(l1Key(fingerprint, rulesVersion), &record)
	return &record, true, nil
}

func (mcs *MongoCacheService) Set(ctx context.Context, raw, rulesVersion string, record *models.AddressRecord) error {
	fingerprint := Fingerprint(raw)
	mcs.l1Cache.Add(l1Key(fingerprint, rulesVersion), record)

	entry := models.NewAddressCache(fingerprint, record, rulesVersion)
	filter := bson.M{"raw_fingerprint": fingerprint, "rules_version": rulesVersion}
	if _, err := mcs.collection.ReplaceOne(ctx, filter, entry, options.Replace().SetUpsert(true)); err != nil {
		mcs.logger.Error("mongo cache upsert failed", zap.Error(err), zap.String("fingerprint", fingerprint))
		return fmt.Errorf("mongo cache: upsert: %w", err)
	}
	return nil
}

func (mcs *MongoCacheService) Delete(ctx context.Context, raw, rulesVersion string) error {
	fingerprint := Fingerprint(raw)
	mcs.l1Cache.Remove(l1Key(fingerprint, rulesVersion))

	filter := bson.M{"raw_fingerprint": fingerprint, "rules_version": rulesVersion}
	if _, err := mcs.collection.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("mongo cache: delete: %w", err)
	}
	return nil
}

func (mcs *MongoCacheService) Clear(ctx context.Context) error {
	mcs.l1Cache.Purge()
	if _, err := mcs.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("mongo cache: clear: %w", err)
	}
	mcs.l1Hits.Store(0)
	mcs.mongoHits.Store(0)
	mcs.misses.Store(0)
	return nil
}

func (mcs *MongoCacheService) InvalidateByRulesVersion(ctx context.Context, current string) (int64, error) {
	// L1 keys carry the version, so stale entries there are unreachable; a
	// purge just releases them.
	mcs.l1Cache.Purge()

	res, err := mcs.collection.DeleteMany(ctx, bson.M{"rules_version": bson.M{"$ne": current}})
	if err != nil {
		return 0, fmt.Errorf("mongo cache: invalidate: %w", err)
	}
	mcs.logger.Info("mongo cache invalidated",
		zap.String("rules_version", current),
		zap.Int64("deleted_count", res.DeletedCount))
	return res.DeletedCount, nil
}

func (mcs *MongoCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	count, err := mcs.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongo cache: count: %w", err)
	}

	hits := mcs.l1Hits.Load() + mcs.mongoHits.Load()
	misses := mcs.misses.Load()

	mcs.logger.Debug("mongo cache stats",
		zap.Int("l1_size", mcs.l1Cache.Len()),
		zap.Int64("l1_hits", mcs.l1Hits.Load()),
		zap.Int64("mongo_hits", mcs.mongoHits.Load()),
		zap.Int64("mongo_count", count))

	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: count,
	}, nil
}

// Close is a no-op; the caller owns the MongoDB client.
func (mcs *MongoCacheService) Close() error {
	return nil
}

// WarmUp loads the most accessed entries of rulesVersion into L1.
func (mcs *MongoCacheService) WarmUp(ctx context.Context, rulesVersion string, limit int) (int, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "access_count", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := mcs.collection.Find(ctx, bson.M{"rules_version": rulesVersion}, opts)
	if err != nil {
		return 0, fmt.Errorf("mongo cache: warm up: %w", err)
	}
	defer cursor.Close(ctx)

	loaded := 0
	for cursor.Next(ctx) {
		var entry models.AddressCache
		if err := cursor.Decode(&entry); err != nil {
			mcs.logger.Warn("skipping undecodable cache entry", zap.Error(err))
			continue
		}
		record := entry.Record
		mcs.l1Cache.Add(l1Key(entry.RawFingerprint, rulesVersion), &record)
		loaded++
	}
	if err := cursor.Err(); err != nil {
		return loaded, fmt.Errorf("mongo cache: warm up cursor: %w", err)
	}

	mcs.logger.Info("mongo cache warmed up", zap.Int("loaded_items", loaded))
	return loaded, nil
}

func (mcs *MongoCacheService) updateAccessStats(id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{"last_accessed": time.Now()},
		"$inc": bson.M{"access_count": 1},
	}
	if _, err := mcs.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		mcs.logger.Warn("could not update access stats", zap.Error(err))
	}
}
