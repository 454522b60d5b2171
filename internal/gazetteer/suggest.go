package gazetteer

import (
	"sort"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

// Scorer ranks candidate names against unmatched input by a weighted blend of
// Jaro-Winkler similarity and normalized Levenshtein distance.
type Scorer struct {
	JWWeight  float64
	LevWeight float64
	MinScore  float64
}

// DefaultScorer favours Jaro-Winkler, which rewards shared prefixes.
var DefaultScorer = Scorer{JWWeight: 0.6, LevWeight: 0.4, MinScore: 0.5}

// Score returns a similarity in [0, 1].
func (s Scorer) Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	ca, cb := byteCodes(a, b)
	jw := smetrics.JaroWinkler(ca, cb, 0.7, 4)

	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	lev := 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)

	total := s.JWWeight + s.LevWeight
	if total == 0 {
		return 0
	}
	return (s.JWWeight*jw + s.LevWeight*lev) / total
}

// Rank returns up to limit candidates scoring at least MinScore, best first.
// Each candidate is compared with the input prefix of the same length, since
// unmatched input still carries the rest of the address.
func (s Scorer) Rank(input string, candidates []string, limit int) []string {
	if limit <= 0 || input == "" {
		return nil
	}
	type scored struct {
		name  string
		score float64
	}
	var ranked []scored
	for _, c := range candidates {
		score := s.Score(runePrefix(input, utf8.RuneCountInString(c)), c)
		if score >= s.MinScore {
			ranked = append(ranked, scored{name: c, score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	names := make([]string, len(ranked))
	for i, r := range ranked {
		names[i] = r.name
	}
	return names
}

// byteCodes rewrites a and b so that each distinct rune becomes one byte.
// smetrics compares bytes, and kanji sharing UTF-8 lead bytes would otherwise
// count as matches.
func byteCodes(a, b string) (string, string) {
	codes := make(map[rune]byte)
	encode := func(s string) (string, bool) {
		out := make([]byte, 0, len(s))
		for _, r := range s {
			c, ok := codes[r]
			if !ok {
				if len(codes) > 255 {
					return "", false
				}
				c = byte(len(codes))
				codes[r] = c
			}
			out = append(out, c)
		}
		return string(out), true
	}
	ea, okA := encode(a)
	eb, okB := encode(b)
	if !okA || !okB {
		return a, b
	}
	return ea, eb
}

func runePrefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
