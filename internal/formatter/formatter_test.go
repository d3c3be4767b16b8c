package formatter

import (
	"context"
	"strings"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haytac/neighbourhood-emoji/internal/config"
	"github.com/haytac/neighbourhood-emoji/internal/metrics"
)

var elmStreet = &config.Source{Name: "elm", Title: "Elm Street", URL: "https://example.org/notices"}

func TestFormatNoticeDefaultLayout(t *testing.T) {
	item := &gofeed.Item{
		Title:       "Street party {{EMOJI:1F973}}",
		Description: "<p>Bring snacks {{EMOJI:1F60B}}</p><script>alert(1)</script>",
		Link:        "https://example.org/notices/2",
	}

	parts, err := NewDefaultFormatter().FormatNotice(context.Background(), item, elmStreet, nil)
	require.NoError(t, err)
	require.Len(t, parts, 1)

	text := parts[0].Text
	assert.Equal(t, "HTML", parts[0].ParseMode)
	assert.True(t, strings.HasPrefix(text, "<b>Street party \U0001F973</b>\n"), text)
	assert.Contains(t, text, "Bring snacks \U0001F60B")
	assert.Contains(t, text, `<a href="https://example.org/notices/2">Read more</a>`)
	assert.NotContains(t, text, "{{EMOJI:")
	assert.NotContains(t, text, "<script>")
	assert.NotContains(t, text, "<p>")
}

func TestFormatNoticeUnknownCodeFallsBack(t *testing.T) {
	item := &gofeed.Item{Title: "Meeting {{EMOJI:ABCDEF}}", Link: "https://example.org/n/3"}

	parts, err := NewDefaultFormatter().FormatNotice(context.Background(), item, elmStreet, nil)
	require.NoError(t, err)
	assert.Contains(t, parts[0].Text, "Meeting \U0001F4CD")
}

func TestFormatNoticeProfile(t *testing.T) {
	profile := &config.Profile{
		Name:                  "digest",
		MessageTemplate:       "{{.SourceTitle}}: {{summarize .NoticeContent 10}}",
		Hashtags:              []string{"elm street", "#notices"},
		IncludeAuthor:         true,
		OmitGenericTitleRegex: "^Update$",
	}
	item := &gofeed.Item{
		Title:   "Update",
		Content: "The hall is closed {{EMOJI:1F622}} until Friday",
		Author:  &gofeed.Person{Name: "Rosa"},
	}

	parts, err := NewDefaultFormatter().FormatNotice(context.Background(), item, elmStreet, profile)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "Elm Street: The hall i...\n\n<i>Posted by Rosa</i>\n\n#elm_street #notices", parts[0].Text)
}

func TestFormatNoticeOmitsGenericTitle(t *testing.T) {
	profile := &config.Profile{OmitGenericTitleRegex: "(?i)^new notice$"}
	item := &gofeed.Item{Title: "New notice", Description: "Fete on Sunday"}

	parts, err := NewDefaultFormatter().FormatNotice(context.Background(), item, elmStreet, profile)
	require.NoError(t, err)
	assert.Equal(t, "Fete on Sunday", parts[0].Text)
}

func TestFormatNoticeTemplateError(t *testing.T) {
	profile := &config.Profile{MessageTemplate: "{{.Missing"}
	_, err := NewDefaultFormatter().FormatNotice(context.Background(), &gofeed.Item{Title: "x"}, elmStreet, profile)
	assert.ErrorContains(t, err, "parsing template message")
}

func TestFormatNoticeWithImage(t *testing.T) {
	item := &gofeed.Item{
		Title: "Found keys",
		Image: &gofeed.Image{URL: "https://example.org/keys.jpg"},
	}
	parts, err := NewDefaultFormatter().FormatNotice(context.Background(), item, elmStreet, nil)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "https://example.org/keys.jpg", parts[0].PhotoURL)
	assert.Equal(t, "<b>Found keys</b>", parts[0].Text)
}

func TestFormatNoticeSplitsLongMessages(t *testing.T) {
	item := &gofeed.Item{Description: strings.Repeat("a", 5000)}
	parts, err := NewDefaultFormatter().FormatNotice(context.Background(), item, elmStreet, &config.Profile{DisableSanitize: true})
	require.NoError(t, err)
	assert.Len(t, parts, 2)
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "Thanks \U0001F44D", DecodeText("Thanks :thumbsup:"))
	assert.Equal(t, "Thanks \U0001F44D", DecodeText("Thanks {{EMOJI:1F44D}}"))
	assert.Equal(t, "Opens at 10:30", DecodeText("Opens at 10:30"))
}

func TestDecodeTextCountsFallbacks(t *testing.T) {
	fallback := testutil.ToFloat64(metrics.TokensDecoded.WithLabelValues("fallback"))

	assert.Equal(t, "Lost cat \U0001F4CD", DecodeText("Lost cat {{EMOJI:NOT_A_CODE}}"))
	assert.Equal(t, fallback+1, testutil.ToFloat64(metrics.TokensDecoded.WithLabelValues("fallback")))
}

func TestSanitizeForTelegram(t *testing.T) {
	in := `<div>Line one<br/>Line <strong>two</strong></div><p><a href="javascript:alert(1)">bad</a> <a href="https://example.org">good</a></p>`
	out := SanitizeForTelegram(in)
	assert.Equal(t, "Line one\nLine <strong>two</strong>\nbad <a href=\"https://example.org\">good</a>", out)
}

func TestRenderHTML(t *testing.T) {
	out := RenderHTML(`<p onclick="x()">Hello {{EMOJI:1F600}}</p><script>steal()</script>`)
	assert.Equal(t, "<p>Hello \U0001F600</p>", out)
}
