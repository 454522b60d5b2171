package gazetteer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jp-address-parser/internal/normalizer"
	"go.uber.org/zap"
)

const (
	chomeSuffix = "丁目"
	oaza        = "大字"
	aza         = "字"
)

var (
	prefSuffixes = []string{"都", "道", "府", "県"}

	banchiPattern      = regexp.MustCompile(`(\d+)番地?(\d+)`)
	trailingBanPattern = regexp.MustCompile(`(\d+)番地?$`)
	numericGoPattern   = regexp.MustCompile(`^([\d-]+)号$`)
)

// Options tunes a DictionarySplitter.
type Options struct {
	MaxSuggestions int
	Scorer         Scorer
}

// DefaultOptions returns three suggestions ranked by DefaultScorer.
func DefaultOptions() Options {
	return Options{MaxSuggestions: 3, Scorer: DefaultScorer}
}

// DictionarySplitter matches address text against a Source: prefecture by
// prefix, then the longest city of that prefecture, then the longest town.
type DictionarySplitter struct {
	source Source
	opts   Options
	logger *zap.Logger
}

// NewDictionarySplitter creates a splitter over source.
func NewDictionarySplitter(source Source, opts Options, logger *zap.Logger) *DictionarySplitter {
	if opts.Scorer == (Scorer{}) {
		opts.Scorer = DefaultScorer
	}
	return &DictionarySplitter{source: source, opts: opts, logger: logger}
}

// Split implements Splitter. The input is width-folded, hyphen-normalized and
// stripped of spaces before matching. Town may be empty; prefecture and city
// may not.
func (d *DictionarySplitter) Split(ctx context.Context, text string) (*Result, error) {
	s := normalizer.Canonicalize(text)
	if s == "" {
		return nil, &UnmatchedError{Level: LevelPrefecture, Input: text}
	}

	prefs, err := d.source.Prefectures(ctx)
	if err != nil {
		return nil, fmt.Errorf("gazetteer: load prefectures: %w", err)
	}

	pref, rest, err := d.matchPrefecture(ctx, prefs, s)
	if err != nil {
		return nil, err
	}
	if pref == "" {
		return nil, &UnmatchedError{
			Level:       LevelPrefecture,
			Input:       s,
			Suggestions: d.opts.Scorer.Rank(s, prefs, d.opts.MaxSuggestions),
		}
	}

	cities, err := d.source.Cities(ctx, pref)
	if err != nil {
		return nil, fmt.Errorf("gazetteer: load cities of %s: %w", pref, err)
	}
	city := longestPrefix(cities, rest)
	if city == "" {
		return nil, &UnmatchedError{
			Level:       LevelCity,
			Input:       pref + rest,
			Suggestions: d.opts.Scorer.Rank(rest, cities, d.opts.MaxSuggestions),
		}
	}
	rest = rest[len(city):]

	towns, err := d.source.Towns(ctx, pref, city)
	if err != nil {
		return nil, fmt.Errorf("gazetteer: load towns of %s%s: %w", pref, city, err)
	}
	town, rest := matchTown(towns, rest)

	result := &Result{Pref: pref, City: city, Town: town, Addr: normalizeAddr(rest)}
	d.logger.Debug("gazetteer split",
		zap.String("input", text),
		zap.String("pref", result.Pref),
		zap.String("city", result.City),
		zap.String("town", result.Town),
		zap.String("addr", result.Addr))
	return result, nil
}

// matchPrefecture tries the full name, then the name without its 都道府県
// suffix (accepted only when a city of that prefecture follows), then infers
// the prefecture from a city name that only one prefecture has.
func (d *DictionarySplitter) matchPrefecture(ctx context.Context, prefs []string, s string) (string, string, error) {
	if pref := longestPrefix(prefs, s); pref != "" {
		return pref, s[len(pref):], nil
	}

	for _, pref := range prefs {
		short := shortPrefName(pref)
		if short == pref || !strings.HasPrefix(s, short) {
			continue
		}
		rest := s[len(short):]
		cities, err := d.source.Cities(ctx, pref)
		if err != nil {
			return "", "", fmt.Errorf("gazetteer: load cities of %s: %w", pref, err)
		}
		if longestPrefix(cities, rest) != "" {
			return pref, rest, nil
		}
	}

	found := ""
	for _, pref := range prefs {
		cities, err := d.source.Cities(ctx, pref)
		if err != nil {
			return "", "", fmt.Errorf("gazetteer: load cities of %s: %w", pref, err)
		}
		if longestPrefix(cities, s) == "" {
			continue
		}
		if found != "" {
			d.logger.Debug("gazetteer ambiguous city", zap.String("input", s),
				zap.String("pref", found), zap.String("other", pref))
			return "", "", nil
		}
		found = pref
	}
	return found, s, nil
}

func shortPrefName(pref string) string {
	if pref == "北海道" {
		return pref
	}
	for _, suffix := range prefSuffixes {
		if strings.HasSuffix(pref, suffix) {
			return strings.TrimSuffix(pref, suffix)
		}
	}
	return pref
}

func longestPrefix(names []string, s string) string {
	best := ""
	for _, name := range names {
		if len(name) > len(best) && strings.HasPrefix(s, name) {
			best = name
		}
	}
	return best
}

// matchTown returns the town in gazetteer spelling and the unconsumed text.
func matchTown(towns []string, s string) (string, string) {
	bestTown, bestLen := "", 0
	for _, town := range towns {
		for _, spelling := range townSpellings(town) {
			if len(spelling) > bestLen && strings.HasPrefix(s, spelling) {
				bestTown, bestLen = town, len(spelling)
			}
		}
	}
	return bestTown, s[bestLen:]
}

// townSpellings lists the ways a gazetteer town may be written in input:
// "八重洲二丁目" also matches "八重洲2丁目", "八重洲2-" and "八重洲二-", and a
// leading 大字 or 字 may be left out.
func townSpellings(town string) []string {
	bases := []string{town}
	switch {
	case strings.HasPrefix(town, oaza) && len(town) > len(oaza):
		bases = append(bases, strings.TrimPrefix(town, oaza))
	case strings.HasPrefix(town, aza) && len(town) > len(aza):
		bases = append(bases, strings.TrimPrefix(town, aza))
	}

	var spellings []string
	for _, base := range bases {
		spellings = append(spellings, base)
		name, n, ok := splitChome(base)
		if !ok {
			continue
		}
		arabic := strconv.Itoa(n)
		spellings = append(spellings,
			name+arabic+chomeSuffix,
			name+arabic+"-",
			name+KanjiNumber(n)+"-",
		)
	}
	return spellings
}

// splitChome splits "八重洲二丁目" into ("八重洲", 2).
func splitChome(town string) (string, int, bool) {
	if !strings.HasSuffix(town, chomeSuffix) {
		return "", 0, false
	}
	head := []rune(strings.TrimSuffix(town, chomeSuffix))
	i := len(head)
	for i > 0 && IsKanjiNumeral(head[i-1]) {
		i--
	}
	if i == len(head) {
		return "", 0, false
	}
	n, ok := ParseKanjiNumber(string(head[i:]))
	if !ok {
		return "", 0, false
	}
	return string(head[:i]), n, true
}

// normalizeAddr rewrites block/lot notation to hyphens: "3番地5" and "3番5"
// become "3-5", a trailing "番地" or "番" is dropped, and "号" is dropped only
// when everything before it is numeric.
func normalizeAddr(s string) string {
	s = banchiPattern.ReplaceAllString(s, "$1-$2")
	s = trailingBanPattern.ReplaceAllString(s, "$1")
	s = strings.Trim(s, "-")
	if m := numericGoPattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return s
}
