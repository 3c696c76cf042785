package conversation

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/rangetable"
)

// glyphs covers emoticons, pictographs, transport symbols, regional
// indicators, dingbats, and the enclosed-character block range that replies
// are scrubbed of before synthesis. The last range is wide and also drops
// most CJK text.
var glyphs = rangetable.Merge(
	span(0x1F600, 0x1F64F),
	span(0x1F300, 0x1F5FF),
	span(0x1F680, 0x1F6FF),
	span(0x1F1E0, 0x1F1FF),
	span(0x2702, 0x27B0),
	span(0x24C2, 0x1F251),
)

// span builds a table for [lo, hi], splitting at the 16-bit boundary.
func span(lo, hi rune) *unicode.RangeTable {
	table := &unicode.RangeTable{}
	if lo <= 0xFFFF {
		top := min(hi, 0xFFFF)
		table.R16 = []unicode.Range16{{Lo: uint16(lo), Hi: uint16(top), Stride: 1}}
		lo = 0x10000
	}
	if hi >= lo {
		table.R32 = []unicode.Range32{{Lo: uint32(lo), Hi: uint32(hi), Stride: 1}}
	}
	return table
}

// StripGlyphs removes every rune in the glyph ranges.
func StripGlyphs(text string) string {
	out, _, err := transform.String(runes.Remove(runes.In(glyphs)), text)
	if err != nil {
		return text
	}
	return out
}
