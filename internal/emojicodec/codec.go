// Package emojicodec converts between the {{EMOJI:<CODE>}} token encoding used in
// chat, notice and report text and the glyphs those tokens stand for.
//
// Every exported operation is a total function: absent or non-string input never
// panics and yields an empty, false, zero or pass-through result.
package emojicodec

import (
	"regexp"
	"strings"
)

const (
	tokenPrefix = "{{EMOJI:"
	tokenSuffix = "}}"

	// FallbackGlyph is substituted for codes missing from the glyph table.
	FallbackGlyph = "\U0001F4CD"
)

var (
	// tokenPattern is the wire grammar: prefix, a hex/hyphen run, suffix.
	tokenPattern = regexp.MustCompile(`\{\{EMOJI:([A-Fa-f0-9-]+)\}\}`)

	// decodePattern also catches malformed bodies so they degrade to FallbackGlyph
	// instead of leaking the raw placeholder into rendered text.
	decodePattern = regexp.MustCompile(`\{\{EMOJI:([^{}\s]+)\}\}`)
)

// ContainsEmojis reports whether v is a string holding at least one emoji token.
func ContainsEmojis(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return tokenPattern.MatchString(s)
}

// ExtractEmojiCodes returns the codes of all tokens in v, left to right,
// duplicates included. The result is empty, never nil.
func ExtractEmojiCodes(v any) []string {
	s, ok := v.(string)
	if !ok {
		return []string{}
	}
	matches := tokenPattern.FindAllStringSubmatch(s, -1)
	codes := make([]string, 0, len(matches))
	for _, m := range matches {
		codes = append(codes, m[1])
	}
	return codes
}

// EmojiToPlainText replaces every token in a string with its glyph.
// nil is returned as nil and any other non-string value is passed through untouched.
func EmojiToPlainText(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return Decode(s)
}

// CountEmojis returns len(ExtractEmojiCodes(v)).
func CountEmojis(v any) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	return len(tokenPattern.FindAllStringIndex(s, -1))
}

// Decode is the string form of EmojiToPlainText.
func Decode(s string) string {
	return DecodeFunc(s, nil)
}

// DecodeFunc is Decode that also calls observe, when non-nil, for every token
// it replaces, with the token's code and whether the table knew it.
func DecodeFunc(s string, observe func(code string, known bool)) string {
	if !strings.Contains(s, tokenPrefix) {
		return s
	}
	return decodePattern.ReplaceAllStringFunc(s, func(tok string) string {
		code := tok[len(tokenPrefix) : len(tok)-len(tokenSuffix)]
		g, ok := lookup(code)
		if observe != nil {
			observe(code, ok)
		}
		if !ok {
			return FallbackGlyph
		}
		return g
	})
}

// Token builds the encoded form of code.
func Token(code string) string {
	return tokenPrefix + code + tokenSuffix
}

// Glyph resolves a single code. Unknown codes resolve to FallbackGlyph.
func Glyph(code string) string {
	if g, ok := lookup(code); ok {
		return g
	}
	return FallbackGlyph
}

// Known reports whether code has an entry in the glyph table.
func Known(code string) bool {
	_, ok := lookup(code)
	return ok
}

// lookup tries the code as given, then its uppercase form, since the grammar
// accepts lowercase hex.
func lookup(code string) (string, bool) {
	t := table()
	if g, ok := t.glyphs[code]; ok {
		return g, true
	}
	if up := strings.ToUpper(code); up != code {
		g, ok := t.glyphs[up]
		return g, ok
	}
	return "", false
}
