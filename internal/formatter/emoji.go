package formatter

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/haytac/neighbourhood-emoji/internal/emojicodec"
	"github.com/haytac/neighbourhood-emoji/internal/metrics"
)

var (
	// telegramPolicy keeps the subset of HTML Telegram's parser accepts.
	telegramPolicy = func() *bluemonday.Policy {
		p := bluemonday.NewPolicy()
		p.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre", "blockquote")
		p.AllowAttrs("href").OnElements("a")
		p.AllowURLSchemes("http", "https", "tg", "mailto")
		p.RequireParseableURLs(true)
		return p
	}()

	// webPolicy is used for content rendered back into the community web pages.
	webPolicy = bluemonday.UGCPolicy()

	lineBreaks = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
)

// DecodeText expands :alias: shortcodes and resolves emoji tokens to glyphs.
func DecodeText(s string) string {
	return emojicodec.DecodeFunc(emojicodec.EncodeShortcodes(s), metrics.ObserveDecoded)
}

// SanitizeForTelegram reduces HTML to the tags Telegram renders, turning block
// boundaries into newlines.
func SanitizeForTelegram(s string) string {
	s = lineBreaks.ReplaceAllString(s, "\n")
	s = telegramPolicy.Sanitize(s)
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// RenderHTML decodes emoji tokens in user content and sanitizes it for the web.
func RenderHTML(s string) string {
	return webPolicy.Sanitize(DecodeText(s))
}
