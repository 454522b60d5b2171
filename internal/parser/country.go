package parser

import (
	"strings"

	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/internal/normalizer"
)

// CountryExtractor removes a country marker from the working text.
type CountryExtractor struct {
	full       string
	short      string
	romanized  []string
	exceptions []string
}

// NewCountryExtractor builds an extractor from the country rules.
func NewCountryExtractor(rules *normalizer.RulesConfig) *CountryExtractor {
	return &CountryExtractor{
		full:       rules.Country.Full,
		short:      rules.Country.Short,
		romanized:  rules.Country.Romanized,
		exceptions: rules.Country.Exceptions,
	}
}

// Extract checks the full marker, then the short marker, then the romanized
// markers, and removes the first occurrence of the first one found. The short
// marker is skipped whenever any exception word appears anywhere in the text,
// so "東京都中央区日本橋" never yields 日本 even if 日本 also appears elsewhere.
func (ce *CountryExtractor) Extract(text string) (*string, string) {
	if ce.full != "" && strings.Contains(text, ce.full) {
		return models.Optional(ce.full), strings.Replace(text, ce.full, "", 1)
	}
	if ce.short != "" && strings.Contains(text, ce.short) && !ce.hasException(text) {
		return models.Optional(ce.short), strings.Replace(text, ce.short, "", 1)
	}
	for _, marker := range ce.romanized {
		if marker != "" && strings.Contains(text, marker) {
			return models.Optional(marker), strings.Replace(text, marker, "", 1)
		}
	}
	return nil, text
}

func (ce *CountryExtractor) hasException(text string) bool {
	for _, word := range ce.exceptions {
		if word != "" && strings.Contains(text, word) {
			return true
		}
	}
	return false
}
