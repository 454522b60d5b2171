package gazetteer

import "strings"

var kanjiDigits = []string{"", "一", "二", "三", "四", "五", "六", "七", "八", "九"}

// KanjiNumber spells 1..99 in kanji ("十一", "二十"). Other values return "".
func KanjiNumber(n int) string {
	if n <= 0 || n > 99 {
		return ""
	}
	tens, ones := n/10, n%10
	var b strings.Builder
	switch {
	case tens == 1:
		b.WriteString("十")
	case tens > 1:
		b.WriteString(kanjiDigits[tens])
		b.WriteString("十")
	}
	b.WriteString(kanjiDigits[ones])
	return b.String()
}

// ParseKanjiNumber is the inverse of KanjiNumber.
func ParseKanjiNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	runes := []rune(s)
	total, current := 0, 0
	seenTen := false
	for _, r := range runes {
		if r == '十' {
			if seenTen {
				return 0, false
			}
			seenTen = true
			if current == 0 {
				current = 1
			}
			total = current * 10
			current = 0
			continue
		}
		d := kanjiDigit(r)
		if d < 0 || current != 0 {
			return 0, false
		}
		current = d
	}
	total += current
	if total == 0 || total > 99 {
		return 0, false
	}
	return total, true
}

// IsKanjiNumeral reports whether r is one of 一..九 or 十.
func IsKanjiNumeral(r rune) bool {
	return r == '十' || kanjiDigit(r) > 0
}

func kanjiDigit(r rune) int {
	for i, d := range kanjiDigits[1:] {
		if string(r) == d {
			return i + 1
		}
	}
	return -1
}
