package normalizer

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternExtractor holds the precompiled token patterns used by the pipeline.
type PatternExtractor struct {
	postalCode *regexp.Regexp
	floor      *regexp.Regexp
}

// PatternMatch is one located match.
type PatternMatch struct {
	Value string
	Start int
	End   int
}

// NewPatternExtractor compiles the patterns from the rules.
func NewPatternExtractor(rules *RulesConfig) (*PatternExtractor, error) {
	postal, err := regexp.Compile(rules.Patterns.PostalCode)
	if err != nil {
		return nil, fmt.Errorf("normalizer: postal code pattern: %w", err)
	}
	floor, err := regexp.Compile(rules.Patterns.Floor)
	if err != nil {
		return nil, fmt.Errorf("normalizer: floor pattern: %w", err)
	}
	if floor.NumSubexp() < 1 {
		return nil, fmt.Errorf("normalizer: floor pattern needs one capture group")
	}
	return &PatternExtractor{postalCode: postal, floor: floor}, nil
}

// FindPostalCode returns the leftmost postal code token.
func (pe *PatternExtractor) FindPostalCode(text string) (PatternMatch, bool) {
	loc := pe.postalCode.FindStringIndex(text)
	if loc == nil {
		return PatternMatch{}, false
	}
	return PatternMatch{Value: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]}, true
}

// FindFloor returns the leftmost floor designator ("12F", "3階").
func (pe *PatternExtractor) FindFloor(text string) (PatternMatch, bool) {
	loc := pe.floor.FindStringSubmatchIndex(text)
	if loc == nil || loc[2] < 0 {
		return PatternMatch{}, false
	}
	return PatternMatch{Value: strings.TrimSpace(text[loc[2]:loc[3]]), Start: loc[2], End: loc[3]}, true
}

// Cut removes the match from text.
func (m PatternMatch) Cut(text string) string {
	return text[:m.Start] + text[m.End:]
}
