package emojicodec

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kyokomi/emoji/v2"
)

var shortcodePattern = regexp.MustCompile(`:[^:\s]+:`)

// Encode replaces every glyph found in the table with its token. At each position
// the longest known glyph wins, so multi-codepoint sequences stay whole.
func Encode(s string) string {
	t := table()
	if s == "" || isASCII(s) {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		if code, n := t.longestMatch(s[i:]); n > 0 {
			sb.WriteString(Token(code))
			i += n
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		sb.WriteString(s[i : i+size])
		i += size
	}
	return sb.String()
}

// EncodeShortcodes replaces :alias: shortcodes with tokens. Unknown aliases are left as typed.
func EncodeShortcodes(s string) string {
	if !strings.Contains(s, ":") {
		return s
	}
	aliases := emoji.CodeMap()
	t := table()

	var sb strings.Builder
	pos := 0
	for pos < len(s) {
		loc := shortcodePattern.FindStringIndex(s[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if g, ok := aliases[s[start:end]]; ok {
			sb.WriteString(s[pos:start])
			sb.WriteString(Token(t.codes[g]))
			pos = end
			continue
		}
		// The closing colon may open the next alias.
		sb.WriteString(s[pos : end-1])
		pos = end - 1
	}
	sb.WriteString(s[pos:])
	return sb.String()
}

// longestMatch returns the code and byte length of the longest glyph prefixing s.
func (t *glyphTable) longestMatch(s string) (string, int) {
	ends := make([]int, 0, t.maxRunes)
	for end := 0; len(ends) < t.maxRunes && end < len(s); {
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
		ends = append(ends, end)
	}
	for k := len(ends) - 1; k >= 0; k-- {
		if code, ok := t.codes[s[:ends[k]]]; ok {
			return code, ends[k]
		}
	}
	return "", 0
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
