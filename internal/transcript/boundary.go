package transcript

import (
	"strings"
	"unicode"
)

// abbreviations never end a sentence when followed by a period.
var abbreviations = map[string]struct{}{
	"e.g": {}, "i.e": {}, "cf": {}, "approx": {}, "dept": {}, "est": {},
	"dr": {}, "mr": {}, "mrs": {}, "ms": {}, "prof": {}, "sr": {}, "jr": {}, "st": {},
	"fig": {}, "no": {}, "vol": {}, "ch": {}, "sec": {},
	"hr": {}, "hrs": {}, "min": {}, "mins": {}, "lb": {}, "lbs": {}, "oz": {},
	"jan": {}, "feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {}, "aug": {},
	"sep": {}, "sept": {}, "oct": {}, "nov": {}, "dec": {},
}

// ambiguousAbbreviations end a sentence only when the next word starts with
// an uppercase letter or nothing follows.
var ambiguousAbbreviations = map[string]struct{}{
	"etc": {}, "vs": {}, "inc": {}, "ltd": {}, "co": {},
}

// lowercaseAtSentenceStart stays lowercase when it opens a sentence.
var lowercaseAtSentenceStart = map[string]struct{}{
	"e.g": {}, "i.e": {}, "etc": {}, "vs": {},
}

// isSentenceBoundaryPeriod reports whether the period at runes[idx] ends a sentence.
func isSentenceBoundaryPeriod(runes []rune, idx int) bool {
	if idx < 0 || idx >= len(runes) || runes[idx] != '.' {
		return false
	}
	if idx+1 < len(runes) {
		next := runes[idx+1]
		// 3.14, example.com, "..." are not boundaries at this rune.
		if unicode.IsLetter(next) || unicode.IsDigit(next) || next == '.' {
			return false
		}
	}

	token := strings.ToLower(tokenBeforePeriod(runes, idx))
	if token == "" {
		return true
	}
	if _, ok := abbreviations[token]; ok {
		return false
	}
	if _, ok := ambiguousAbbreviations[token]; ok || isInitialism(token) {
		return nextWordIsCapitalized(runes, idx+1)
	}
	return true
}

// tokenBeforePeriod returns the letters-and-dots run ending just before idx,
// without surrounding dots.
func tokenBeforePeriod(runes []rune, idx int) string {
	start := idx - 1
	for start >= 0 && (unicode.IsLetter(runes[start]) || runes[start] == '.') {
		start--
	}
	return strings.Trim(string(runes[start+1:idx]), ".")
}

// isInitialism matches single letters joined by dots, such as "u.s" or "a.m".
func isInitialism(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return false
	}
	for _, part := range parts {
		runes := []rune(part)
		if len(runes) != 1 || !unicode.IsLetter(runes[0]) {
			return false
		}
	}
	return true
}

// nextWordIsCapitalized skips whitespace and closing punctuation after start.
// End of text counts as capitalized.
func nextWordIsCapitalized(runes []rune, start int) bool {
	for i := start; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r), isClosingRune(r):
			continue
		case unicode.IsLetter(r):
			return unicode.IsUpper(r)
		default:
			return false
		}
	}
	return true
}

func isClosingRune(r rune) bool {
	switch r {
	case ')', ']', '}', '\'', '"', '’', '”':
		return true
	default:
		return false
	}
}

func wordAt(runes []rune, idx int) string {
	end := idx
	for end < len(runes) && (unicode.IsLetter(runes[end]) || runes[end] == '.') {
		end++
	}
	return strings.ToLower(strings.Trim(string(runes[idx:end]), "."))
}
