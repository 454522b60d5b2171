package parser

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/internal/gazetteer"
	"github.com/jp-address-parser/internal/normalizer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyAddress is returned for blank input lines.
var ErrEmptyAddress = errors.New("parser: empty address")

// AddressParser runs one address through every extraction stage. It holds
// only read-only state and is safe for concurrent use.
type AddressParser struct {
	splitter     gazetteer.Splitter
	noise        *normalizer.TextNormalizer
	country      *CountryExtractor
	postal       *PostalCodeExtractor
	chome        *ChomeHarmonizer
	building     *BuildingExtractor
	municipality normalizer.MunicipalityRules
	rulesVersion string
	logger       *zap.Logger
}

// parseState is the per-call scratch space. text shrinks as stages consume
// tokens and is dropped when Parse returns.
type parseState struct {
	record *models.AddressRecord
	text   string
}

// NewAddressParser wires the stages from rules around splitter.
func NewAddressParser(splitter gazetteer.Splitter, rules *normalizer.RulesConfig, logger *zap.Logger) (*AddressParser, error) {
	if splitter == nil {
		return nil, errors.New("parser: splitter is required")
	}
	if rules == nil {
		return nil, errors.New("parser: rules are required")
	}
	patterns, err := normalizer.NewPatternExtractor(rules)
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	return &AddressParser{
		splitter:     splitter,
		noise:        normalizer.NewTextNormalizer(rules),
		country:      NewCountryExtractor(rules),
		postal:       NewPostalCodeExtractor(patterns),
		chome:        NewChomeHarmonizer(rules),
		building:     NewBuildingExtractor(patterns),
		municipality: rules.Municipality,
		rulesVersion: rules.Version,
		logger:       logger,
	}, nil
}

// RulesVersion identifies the rule set, used to invalidate cached results.
func (ap *AddressParser) RulesVersion() string {
	return ap.rulesVersion
}

// Parse decomposes one raw address. A splitter failure is returned wrapped;
// a missing optional field is not an error.
func (ap *AddressParser) Parse(ctx context.Context, raw string) (*models.AddressRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyAddress
	}

	st := &parseState{record: models.NewAddressRecord(raw), text: raw}
	rec := st.record

	st.text = ap.noise.StripNoise(st.text)
	rec.Country, st.text = ap.country.Extract(st.text)
	rec.PostalCode, st.text = ap.postal.Extract(st.text)

	head, candidate := splitTokens(st.text)
	if head == "" {
		return nil, fmt.Errorf("parser: %w", &gazetteer.UnmatchedError{Level: gazetteer.LevelPrefecture, Input: raw})
	}

	split, err := ap.splitter.Split(ctx, head)
	if err != nil {
		return nil, fmt.Errorf("parser: split %q: %w", head, err)
	}

	rec.Prefecture = models.Optional(split.Pref)
	m := RefineMunicipality(split.Pref, split.City, ap.municipality)
	rec.County, rec.City, rec.Ward = m.County, m.City, m.Ward
	rec.Neighborhood = models.Optional(ap.chome.Harmonize(split.Town, st.text))
	rec.Banch, rec.Go = SplitBlockLot(split.Addr)
	rec.BuildingName, rec.FloorNumber = ap.building.Extract(candidate)

	ap.logger.Debug("parsed address",
		zap.String("raw", raw),
		zap.String("prefecture", models.Value(rec.Prefecture)),
		zap.String("city", models.Value(rec.City)),
		zap.String("neighborhood", models.Value(rec.Neighborhood)))
	return rec, nil
}

// ParseBatch parses lines on at most workers goroutines and returns one
// result per line in input order. Record failures never stop the batch; once
// ctx is cancelled the remaining lines fail with the context error.
func (ap *AddressParser) ParseBatch(ctx context.Context, lines []string, workers int) []models.ParseResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	start := time.Now()
	results := make([]models.ParseResult, len(lines))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			results[i] = models.ParseResult{Index: i, Line: line, Err: err}
			continue
		}
		i, line := i, line
		g.Go(func() error {
			record, err := ap.Parse(ctx, line)
			if err != nil {
				ap.logger.Warn("address parse failed",
					zap.Int("index", i),
					zap.String("line", line),
					zap.Error(err))
			}
			results[i] = models.ParseResult{Index: i, Line: line, Record: record, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	summary := models.Summarize(results)
	ap.logger.Info("parsed address batch",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("workers", workers),
		zap.Duration("elapsed", time.Since(start)))
	return results
}
