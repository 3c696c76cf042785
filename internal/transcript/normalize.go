// Package transcript cleans recognized text and splits replies into sentences.
package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

// Options controls transcript normalization.
type Options struct {
	CapitalizeSentences bool
}

var (
	pronounContraction = regexp.MustCompile(`\bi['\x{2019}](?:m|d|ll|ve|re|s)\b`)
	pronounWord        = regexp.MustCompile(`\bi\b`)
)

// Normalize collapses whitespace and optionally applies sentence case. Some
// recognizers emit all-caps or all-lowercase text; sentence case makes the
// printed transcript and the language model prompt read naturally.
func Normalize(text string, opts Options) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" || !opts.CapitalizeSentences {
		return normalized
	}
	if isAllUpper(normalized) {
		normalized = strings.ToLower(normalized)
	}
	return capitalizePronounI(capitalizeSentenceStarts(normalized))
}

func isAllUpper(text string) bool {
	sawLetter := false
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		sawLetter = true
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return sawLetter
}

func capitalizeSentenceStarts(text string) string {
	runes := []rune(text)
	atStart := true
	for i, r := range runes {
		if atStart && unicode.IsLetter(r) {
			if _, keep := lowercaseAtSentenceStart[wordAt(runes, i)]; !keep {
				runes[i] = unicode.ToUpper(r)
			}
			atStart = false
			continue
		}
		if atStart && unicode.IsDigit(r) {
			atStart = false
			continue
		}

		switch r {
		case '!', '?':
			atStart = true
		case '.':
			atStart = isSentenceBoundaryPeriod(runes, i)
		}
	}
	return string(runes)
}

func capitalizePronounI(text string) string {
	text = pronounContraction.ReplaceAllStringFunc(text, func(match string) string {
		return "I" + match[1:]
	})

	matches := pronounWord.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	last := 0
	for _, match := range matches {
		start, end := match[0], match[1]
		out.WriteString(text[last:start])
		// "i.e" and "a.i." are abbreviations, not the pronoun.
		if (end < len(text) && text[end] == '.') || (start > 0 && text[start-1] == '.') {
			out.WriteString(text[start:end])
		} else {
			out.WriteString("I")
		}
		last = end
	}
	out.WriteString(text[last:])
	return out.String()
}
