package parser

import (
	"strings"

	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/internal/normalizer"
)

// BuildingExtractor splits the text after the street address into a building
// name and a floor.
type BuildingExtractor struct {
	patterns *normalizer.PatternExtractor
}

func NewBuildingExtractor(patterns *normalizer.PatternExtractor) *BuildingExtractor {
	return &BuildingExtractor{patterns: patterns}
}

// Extract finds a floor ("12F", "3階") in candidate; whatever remains is the
// building name.
func (be *BuildingExtractor) Extract(candidate string) (building, floor *string) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, nil
	}
	m, ok := be.patterns.FindFloor(candidate)
	if !ok {
		return models.Optional(candidate), nil
	}
	rest := strings.Join(strings.Fields(m.Cut(candidate)), " ")
	return models.Optional(rest), models.Optional(m.Value)
}

// splitTokens returns the first whitespace-separated token, which holds the
// administrative and street part, and the remaining tokens joined by a single
// space. U+3000 counts as whitespace.
func splitTokens(text string) (head, rest string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
