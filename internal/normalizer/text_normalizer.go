package normalizer

import "strings"

// TextNormalizer removes noise tokens and canonicalizes text before gazetteer lookup.
type TextNormalizer struct {
	noiseTokens []string
}

// NewTextNormalizer builds a normalizer from the injected rules.
func NewTextNormalizer(rules *RulesConfig) *TextNormalizer {
	tokens := make([]string, 0, len(rules.NoiseTokens))
	for _, t := range rules.NoiseTokens {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return &TextNormalizer{noiseTokens: tokens}
}

// StripNoise removes every occurrence of every noise token, in configured order.
func (tn *TextNormalizer) StripNoise(s string) string {
	for _, token := range tn.noiseTokens {
		s = strings.ReplaceAll(s, token, "")
	}
	return s
}

// Canonicalize prepares text for dictionary matching: width folding, hyphen
// unification and whitespace removal. The result is never shown to callers.
func Canonicalize(s string) string {
	return RemoveSpaces(NormalizeHyphens(FoldWidth(s)))
}
