package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

var hyphenReplacer = strings.NewReplacer(
	"－", "-",
	"‐", "-",
	"‑", "-",
	"‒", "-",
	"–", "-",
	"—", "-",
	"―", "-",
	"−", "-",
	"ｰ", "-",
)

// FoldWidth maps full-width ASCII to half-width and half-width katakana to
// full-width, so "４丁目" becomes "4丁目".
func FoldWidth(s string) string {
	return width.Fold.String(s)
}

// NormalizeHyphens rewrites dash look-alikes to "-". The katakana prolonged
// sound mark is only rewritten between two digits ("1ー2"), never inside words.
func NormalizeHyphens(s string) string {
	s = hyphenReplacer.Replace(s)
	if !strings.Contains(s, "ー") {
		return s
	}
	runes := []rune(s)
	for i := 1; i < len(runes)-1; i++ {
		if runes[i] == 'ー' && isASCIIDigit(runes[i-1]) && isASCIIDigit(runes[i+1]) {
			runes[i] = '-'
		}
	}
	return string(runes)
}

// RemoveSpaces drops every Unicode space, including the ideographic space.
func RemoveSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
