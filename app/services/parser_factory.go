package services

import (
	"context"
	"fmt"

	"github.com/jp-address-parser/app/config"
	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/internal/external"
	"github.com/jp-address-parser/internal/gazetteer"
	"github.com/jp-address-parser/internal/normalizer"
	"github.com/jp-address-parser/internal/parser"
	"github.com/jp-address-parser/internal/search"
	"go.uber.org/zap"
)

// Pipeline is a parser plus the gazetteer handles the admin side needs.
type Pipeline struct {
	Parser   *parser.AddressParser
	Source   string
	Lookup   *gazetteer.CachedSource
	Importer TownImporter

	closers []func()
}

// Close releases the gazetteer connections.
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// BuildPipeline assembles the parser described by cfg. Remote sources are
// wrapped in an LRU lookup cache.
func BuildPipeline(ctx context.Context, cfg *config.ParserCfg, logger *zap.Logger) (*Pipeline, error) {
	rules, err := loadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{Source: cfg.Gazetteer.Source}
	splitter, err := p.buildSplitter(ctx, cfg, logger)
	if err != nil {
		p.Close()
		return nil, err
	}

	p.Parser, err = parser.NewAddressParser(splitter, rules, logger)
	if err != nil {
		p.Close()
		return nil, err
	}

	logger.Info("parser pipeline ready",
		zap.String("gazetteer_source", p.Source),
		zap.String("rules_version", rules.Version),
		zap.Bool("lookup_cache", p.Lookup != nil))
	return p, nil
}

func loadRules(path string) (*normalizer.RulesConfig, error) {
	if path == "" {
		return normalizer.LoadRulesConfig()
	}
	return normalizer.LoadRulesConfigFile(path)
}

func (p *Pipeline) buildSplitter(ctx context.Context, cfg *config.ParserCfg, logger *zap.Logger) (gazetteer.Splitter, error) {
	gc := cfg.Gazetteer
	opts := gazetteer.Options{
		MaxSuggestions: cfg.Suggestions.Max,
		Scorer: gazetteer.Scorer{
			JWWeight:  cfg.Suggestions.JWWeight,
			LevWeight: cfg.Suggestions.LevWeight,
			MinScore:  cfg.Suggestions.MinScore,
		},
	}

	var source gazetteer.Source
	switch gc.Source {
	case config.SourceLibpostal:
		lp, err := external.NewLibpostalSplitter(true, logger)
		if err != nil {
			return nil, err
		}
		return lp, nil

	case config.SourceEmbedded:
		var (
			embedded *gazetteer.EmbeddedSource
			err      error
		)
		if gc.File != "" {
			embedded, err = gazetteer.LoadEmbeddedSourceFile(gc.File)
		} else {
			embedded, err = gazetteer.NewEmbeddedSource()
		}
		if err != nil {
			return nil, err
		}
		// Already in memory; no lookup cache.
		return gazetteer.NewDictionarySplitter(embedded, opts, logger), nil

	case config.SourcePostgres:
		pg, err := search.NewPostgresSource(ctx, gc.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		p.Importer = TownImporterFunc(func(ctx context.Context, rows []models.GazetteerTown, replace bool) (int, error) {
			n, err := pg.ImportTowns(ctx, rows, replace)
			return int(n), err
		})
		source = pg

	case config.SourceMeilisearch:
		ms, err := search.NewMeiliSource(search.SearchConfig{
			Host:      gc.MeiliHost,
			APIKey:    gc.MeiliKey,
			IndexName: gc.MeiliIndex,
			Timeout:   cfg.RequestTimeout(),
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := ms.BuildIndexes(); err != nil {
			logger.Warn("could not configure meilisearch index", zap.Error(err))
		}
		// SeedTowns upserts by document id, so replace has no extra effect.
		p.Importer = TownImporterFunc(func(_ context.Context, rows []models.GazetteerTown, _ bool) (int, error) {
			return ms.SeedTowns(rows)
		})
		source = ms

	case config.SourceGeolonia:
		url := gc.GeoloniaURL
		if url == "" {
			url = search.DefaultGeoloniaURL
		}
		source = search.NewGeoloniaSource(url, cfg.RequestTimeout(), logger)

	default:
		return nil, fmt.Errorf("services: unknown gazetteer source %q", gc.Source)
	}

	cached, err := gazetteer.NewCachedSource(source, gc.CacheSize, logger)
	if err != nil {
		return nil, err
	}
	p.Lookup = cached
	return gazetteer.NewDictionarySplitter(cached, opts, logger), nil
}
