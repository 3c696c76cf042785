package transcript

import (
	"strings"
	"unicode"
)

// Sentences splits text at sentence boundaries, keeping terminal punctuation
// and closing quotes with the sentence they end. Empty pieces are dropped.
func Sentences(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '!' && r != '?' && !isSentenceBoundaryPeriod(runes, i) {
			continue
		}

		end := i + 1
		for end < len(runes) && (runes[end] == '!' || runes[end] == '?' || runes[end] == '.' || isClosingRune(runes[end])) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			continue
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			sentences = append(sentences, piece)
		}
		start = end
		i = end - 1
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
