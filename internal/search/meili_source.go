// Package search provides gazetteer sources backed by external stores.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jp-address-parser/app/models"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// Document kinds stored in the index. Every level gets its own document so
// that each lookup is a single filtered query.
const (
	KindPrefecture = "prefecture"
	KindCity       = "city"
	KindTown       = "town"
)

// SearchConfig configures the Meilisearch connection.
type SearchConfig struct {
	Host      string
	APIKey    string
	IndexName string
	Timeout   time.Duration
	MaxHits   int
}

// MeiliSource reads prefecture, city and town names from a Meilisearch index.
type MeiliSource struct {
	client    meilisearch.ServiceManager
	logger    *zap.Logger
	indexName string
	timeout   time.Duration
	maxHits   int64
}

// NewMeiliSource connects to Meilisearch and checks its health.
func NewMeiliSource(config SearchConfig, logger *zap.Logger) (*MeiliSource, error) {
	client := meilisearch.New(config.Host, meilisearch.WithAPIKey(config.APIKey))
	if _, err := client.Health(); err != nil {
		return nil, fmt.Errorf("search: meilisearch unreachable at %s: %w", config.Host, err)
	}
	return newMeiliSource(client, config, logger), nil
}

func newMeiliSource(client meilisearch.ServiceManager, config SearchConfig, logger *zap.Logger) *MeiliSource {
	if config.IndexName == "" {
		config.IndexName = "jp_towns"
	}
	if config.MaxHits <= 0 {
		config.MaxHits = 1000
	}
	return &MeiliSource{
		client:    client,
		logger:    logger,
		indexName: config.IndexName,
		timeout:   config.Timeout,
		maxHits:   int64(config.MaxHits),
	}
}

func (ms *MeiliSource) Prefectures(ctx context.Context) ([]string, error) {
	return ms.names(ctx, KindPrefecture, FilterKind(KindPrefecture, "", ""))
}

func (ms *MeiliSource) Cities(ctx context.Context, pref string) ([]string, error) {
	return ms.names(ctx, KindCity, FilterKind(KindCity, pref, ""))
}

func (ms *MeiliSource) Towns(ctx context.Context, pref, city string) ([]string, error) {
	return ms.names(ctx, KindTown, FilterKind(KindTown, pref, city))
}

// FilterKind builds the filter for one level below pref/city.
func FilterKind(kind, pref, city string) string {
	filter := fmt.Sprintf("kind = %q", kind)
	if pref != "" {
		filter += fmt.Sprintf(" AND prefecture = %q", pref)
	}
	if city != "" {
		filter += fmt.Sprintf(" AND city = %q", city)
	}
	return filter
}

func (ms *MeiliSource) names(ctx context.Context, field, filter string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := ms.client.Index(ms.indexName).Search("", &meilisearch.SearchRequest{
		Limit:  ms.maxHits,
		Filter: filter,
		Sort:   []string{"seq:asc"},
	})
	if err != nil {
		return nil, fmt.Errorf("search: meilisearch query %q: %w", filter, err)
	}
	return namesFromHits(result.Hits, field), nil
}

func namesFromHits(hits []interface{}, field string) []string {
	names := make([]string, 0, len(hits))
	for _, hit := range hits {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		if name, ok := hitMap[field].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}

// BuildIndexes configures filterable and sortable attributes and typo tolerance.
func (ms *MeiliSource) BuildIndexes() error {
	index := ms.client.Index(ms.indexName)

	task, err := index.UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: []string{"town", "city", "prefecture"},
		FilterableAttributes: []string{"kind", "prefecture", "city"},
		SortableAttributes:   []string{"seq"},
		RankingRules:         []string{"words", "typo", "proximity", "attribute", "sort", "exactness"},
		Synonyms: map[string][]string{
			"ヶ": {"ケ", "が"},
			"ケ": {"ヶ"},
		},
		TypoTolerance: &meilisearch.TypoTolerance{
			Enabled: true,
			MinWordSizeForTypos: meilisearch.MinWordSizeForTypos{
				OneTypo:  2,
				TwoTypos: 4,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("search: configure index %s: %w", ms.indexName, err)
	}
	ms.logger.Info("meilisearch index configured",
		zap.String("index", ms.indexName),
		zap.Int64("task_uid", task.TaskUID))
	return nil
}

// SeedTowns writes one document per distinct prefecture, city and town in
// batches of 1000. Document IDs are derived from the names, so reseeding the
// same rows replaces documents instead of duplicating them.
func (ms *MeiliSource) SeedTowns(rows []models.GazetteerTown) (int, error) {
	if len(rows) == 0 {
		return 0, errors.New("search: no gazetteer rows to seed")
	}
	documents := buildDocuments(rows)

	index := ms.client.Index(ms.indexName)
	const batchSize = 1000
	for i := 0; i < len(documents); i += batchSize {
		end := min(i+batchSize, len(documents))
		task, err := index.AddDocuments(documents[i:end], "id")
		if err != nil {
			return i, fmt.Errorf("search: add documents %d-%d: %w", i, end, err)
		}
		ms.logger.Info("meilisearch batch queued",
			zap.Int("from", i),
			zap.Int("to", end),
			zap.Int64("task_uid", task.TaskUID))
	}
	ms.logger.Info("meilisearch seed complete", zap.Int("documents", len(documents)))
	return len(documents), nil
}

func buildDocuments(rows []models.GazetteerTown) []map[string]interface{} {
	seen := make(map[string]bool)
	var documents []map[string]interface{}
	add := func(kind, pref, city, town string) {
		doc := models.NewGazetteerTown(pref, city, town)
		id := kind + "-" + doc.ID
		if seen[id] {
			return
		}
		seen[id] = true
		documents = append(documents, map[string]interface{}{
			"id":         id,
			"kind":       kind,
			"seq":        len(documents),
			"prefecture": pref,
			"city":       city,
			"town":       town,
		})
	}
	for _, row := range rows {
		add(KindPrefecture, row.Prefecture, "", "")
		if row.City == "" {
			continue
		}
		add(KindCity, row.Prefecture, row.City, "")
		if row.Town != "" {
			add(KindTown, row.Prefecture, row.City, row.Town)
		}
	}
	return documents
}
