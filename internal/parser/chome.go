package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/jp-address-parser/internal/gazetteer"
	"github.com/jp-address-parser/internal/normalizer"
)

type chomePair struct {
	kanji  string
	arabic string
}

// ChomeHarmonizer rewrites a kanji chome in the gazetteer town ("四丁目") to
// the arabic form the user typed ("4丁目").
type ChomeHarmonizer struct {
	pairs []chomePair
}

func NewChomeHarmonizer(rules *normalizer.RulesConfig) *ChomeHarmonizer {
	pairs := make([]chomePair, 0, len(rules.Chome.Numerals))
	for _, n := range rules.Chome.Numerals {
		pairs = append(pairs, chomePair{
			kanji:  n.Kanji + rules.Chome.Suffix,
			arabic: n.Arabic + rules.Chome.Suffix,
		})
	}
	return &ChomeHarmonizer{pairs: pairs}
}

// Harmonize returns the neighborhood for town. The kanji token must not
// follow another kanji numeral in town and the arabic token must not follow
// an ASCII digit in source, so 十一丁目 and 11丁目 never pair up as 一/1.
// Without a matching pair town is returned unchanged.
func (h *ChomeHarmonizer) Harmonize(town, source string) string {
	if town == "" {
		return town
	}
	for _, p := range h.pairs {
		at := indexNotAfter(town, p.kanji, gazetteer.IsKanjiNumeral)
		if at < 0 {
			continue
		}
		if indexNotAfter(source, p.arabic, isDigit) < 0 {
			continue
		}
		return town[:at] + p.arabic + town[at+len(p.kanji):]
	}
	return town
}

// indexNotAfter finds the first occurrence of token in s whose preceding rune
// does not satisfy excluded.
func indexNotAfter(s, token string, excluded func(rune) bool) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], token)
		if i < 0 {
			return -1
		}
		at := offset + i
		prev, _ := utf8.DecodeLastRuneInString(s[:at])
		if at == 0 || !excluded(prev) {
			return at
		}
		offset = at + len(token)
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
