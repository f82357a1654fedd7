// Copyright 2025-2026 Hexavox

package bridge

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripFormattingCodes removes in-game style sequences: a section sign and
// the code character following it.
func StripFormattingCodes(s string) string {
	if !strings.ContainsRune(s, '§') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	skip := false
	for _, r := range s {
		if skip {
			skip = false
			continue
		}
		if r == '§' {
			skip = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var emojiRanges = &unicode.RangeTable{
	R32: []unicode.Range32{
		{Lo: 0x1F1E0, Hi: 0x1F1FF, Stride: 1}, // regional indicators
		{Lo: 0x1F300, Hi: 0x1F5FF, Stride: 1}, // symbols and pictographs
		{Lo: 0x1F600, Hi: 0x1F64F, Stride: 1}, // emoticons
		{Lo: 0x1F680, Hi: 0x1F6FF, Stride: 1}, // transport
		{Lo: 0x1F900, Hi: 0x1FAFF, Stride: 1}, // supplemental pictographs
	},
}

// StripEmoji drops emoji code points the game client cannot render.
func StripEmoji(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(emojiRanges, r) {
			return -1
		}
		return r
	}, s)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"_", `\_`,
	"*", `\*`,
)

// EscapeMarkdown backslash-escapes characters the chat platform would
// otherwise render as formatting. Backslash itself goes first so escapes
// are not re-escaped.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// NeutralizeMentions breaks @-mention syntax with a zero-width space so
// relayed game chat cannot ping platform users.
func NeutralizeMentions(s string) string {
	return strings.ReplaceAll(s, "@", "@​")
}

var asciiFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ToGameEncoding folds accented characters to their base letters and
// replaces anything still outside ASCII with '?', matching what the game
// server accepts on the wire.
func ToGameEncoding(s string) string {
	folded, _, err := transform.String(asciiFolder, s)
	if err != nil {
		folded = s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '?'
		}
		return r
	}, folded)
}

// truncateRunes cuts s to at most budget runes. Both the game-bound text
// and its platform redisplay are derived from the truncated content, so the
// two renditions always agree on where the message ends.
func truncateRunes(s string, budget int) string {
	if budget <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= budget {
		return s
	}
	return string(r[:budget])
}
