package parser

import (
	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/internal/normalizer"
)

// PostalCodeExtractor removes the leftmost postal code from the working text.
type PostalCodeExtractor struct {
	patterns *normalizer.PatternExtractor
}

func NewPostalCodeExtractor(patterns *normalizer.PatternExtractor) *PostalCodeExtractor {
	return &PostalCodeExtractor{patterns: patterns}
}

// Extract returns the postal code verbatim, including a leading 〒.
func (pe *PostalCodeExtractor) Extract(text string) (*string, string) {
	m, ok := pe.patterns.FindPostalCode(text)
	if !ok {
		return nil, text
	}
	return models.Optional(m.Value), m.Cut(text)
}
