package emojicodec

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/kyokomi/emoji/v2"
)

// variationSuffix is the code form of U+FE0F when it trails a glyph.
const variationSuffix = "-FE0F"

// baseGlyphs are the faces the community composer offers directly.
var baseGlyphs = map[string]string{
	"1F600": "\U0001F600", // grinning
	"1F601": "\U0001F601",
	"1F602": "\U0001F602",
	"1F603": "\U0001F603",
	"1F604": "\U0001F604",
	"1F605": "\U0001F605",
	"1F606": "\U0001F606",
	"1F607": "\U0001F607",
	"1F609": "\U0001F609",
	"1F60A": "\U0001F60A",
	"1F60B": "\U0001F60B",
	"1F60D": "\U0001F60D", // heart eyes
	"1F60E": "\U0001F60E",
	"1F610": "\U0001F610",
	"1F614": "\U0001F614",
	"1F618": "\U0001F618",
	"1F61B": "\U0001F61B",
	"1F621": "\U0001F621",
	"1F622": "\U0001F622",
	"1F62D": "\U0001F62D",
	"1F631": "\U0001F631",
	"1F642": "\U0001F642",
	"1F643": "\U0001F643",
	"1F644": "\U0001F644",
	"1F914": "\U0001F914",
	"1F970": "\U0001F970",
	"1F973": "\U0001F973",
	"1F44D": "\U0001F44D",
	"1F44E": "\U0001F44E",
	"1F64F": "\U0001F64F",
	"2764":  "\u2764\uFE0F",
}

type glyphTable struct {
	glyphs   map[string]string // code -> glyph
	codes    map[string]string // glyph -> code
	maxRunes int               // longest glyph in codes, in runes
}

var table = sync.OnceValue(buildTable)

func buildTable() *glyphTable {
	t := &glyphTable{
		glyphs: make(map[string]string, len(baseGlyphs)*4),
		codes:  make(map[string]string, len(baseGlyphs)*2),
	}
	for code, g := range baseGlyphs {
		t.add(code, g)
	}
	for _, g := range emoji.CodeMap() {
		t.add(CodeOf(g), g)
	}
	// Glyphs ending in a variation selector are also reachable by the bare code,
	// unless some glyph already owns it.
	var bare [][2]string
	for code, g := range t.glyphs {
		if c, ok := strings.CutSuffix(code, variationSuffix); ok {
			bare = append(bare, [2]string{c, g})
		}
	}
	for _, b := range bare {
		if _, exists := t.glyphs[b[0]]; !exists {
			t.glyphs[b[0]] = b[1]
		}
	}
	return t
}

// add registers g under code unless code is already taken, so base entries win.
func (t *glyphTable) add(code, g string) {
	if code == "" || g == "" {
		return
	}
	if _, exists := t.glyphs[code]; !exists {
		t.glyphs[code] = g
	}
	if _, exists := t.codes[g]; !exists {
		t.codes[g] = code
		if n := utf8.RuneCountInString(g); n > t.maxRunes {
			t.maxRunes = n
		}
	}
}

// CodeOf derives the token code of a glyph: uppercase hex codepoints joined by hyphens.
func CodeOf(glyph string) string {
	var sb strings.Builder
	for i, r := range glyph {
		if i > 0 {
			sb.WriteByte('-')
		}
		fmt.Fprintf(&sb, "%X", r)
	}
	return sb.String()
}

// Size reports the number of codes in the glyph table.
func Size() int {
	return len(table().glyphs)
}
