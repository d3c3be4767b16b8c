package formatter

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"text/template"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/haytac/neighbourhood-emoji/internal/config"
	"github.com/haytac/neighbourhood-emoji/internal/telegram"
	"github.com/haytac/neighbourhood-emoji/pkg/interfaces"
)

const (
	defaultParseMode = tgbotapi.ModeHTML
	maxCaptionLength = 1024
)

// DefaultFormatter implements the Formatter interface.
type DefaultFormatter struct{}

// NewDefaultFormatter creates a new DefaultFormatter.
func NewDefaultFormatter() *DefaultFormatter {
	return &DefaultFormatter{}
}

// templateData is exposed to profile templates.
type templateData struct {
	SourceTitle   string
	SourceURL     string
	NoticeTitle   string
	NoticeLink    string
	NoticeContent string
	NoticeSummary string
	NoticeAuthor  string
	NoticeDate    *time.Time
	Hashtags      string
}

// FormatNotice formats a single notice for Telegram.
func (f *DefaultFormatter) FormatNotice(ctx context.Context, item *gofeed.Item, src *config.Source, profile *config.Profile) ([]interfaces.MessagePart, error) {
	l := zerolog.Ctx(ctx)
	var p config.Profile
	if profile != nil {
		p = *profile
	}

	title := item.Title
	if p.OmitGenericTitleRegex != "" && title != "" {
		re, err := regexp.Compile(p.OmitGenericTitleRegex)
		if err != nil {
			l.Warn().Err(err).Str("profile", p.Name).Msg("Invalid omit_generic_title_regex, keeping title")
		} else if re.MatchString(title) {
			l.Debug().Str("notice_title", title).Msg("Omitting generic notice title")
			title = ""
		}
	}
	title = DecodeText(title)

	content := item.Content
	if content == "" {
		content = item.Description
	}
	content = DecodeText(content)
	if !p.DisableSanitize {
		content = SanitizeForTelegram(content)
	}

	data := templateData{
		SourceTitle:   src.DisplayTitle(),
		SourceURL:     src.URL,
		NoticeTitle:   title,
		NoticeLink:    item.Link,
		NoticeContent: content,
		NoticeSummary: DecodeText(item.Description),
		NoticeDate:    item.PublishedParsed,
		Hashtags:      strings.Join(p.Hashtags, " "),
	}
	if item.Author != nil {
		data.NoticeAuthor = item.Author.Name
	}

	if p.TitleTemplate != "" {
		rendered, err := renderTemplate("title", p.TitleTemplate, data)
		if err != nil {
			return nil, err
		}
		title = rendered
		data.NoticeTitle = rendered
	}

	var body string
	if p.MessageTemplate != "" {
		rendered, err := renderTemplate("message", p.MessageTemplate, data)
		if err != nil {
			return nil, err
		}
		body = rendered
	} else {
		var sb strings.Builder
		if title != "" {
			fmt.Fprintf(&sb, "<b>%s</b>\n", html.EscapeString(title))
		}
		sb.WriteString(content)
		if item.Link != "" {
			fmt.Fprintf(&sb, "\n<a href=\"%s\">Read more</a>", html.EscapeString(item.Link))
		}
		body = sb.String()
	}

	var full strings.Builder
	full.WriteString(body)
	if p.IncludeAuthor && data.NoticeAuthor != "" && !strings.Contains(body, data.NoticeAuthor) {
		fmt.Fprintf(&full, "\n\n<i>Posted by %s</i>", html.EscapeString(data.NoticeAuthor))
	}
	if tags := formatHashtags(p.Hashtags); tags != "" && !strings.Contains(body, tags) {
		full.WriteString("\n\n")
		full.WriteString(tags)
	}
	message := strings.TrimSpace(full.String())

	if item.Image != nil && item.Image.URL != "" && len([]rune(message)) <= maxCaptionLength {
		return []interfaces.MessagePart{{Text: message, ParseMode: defaultParseMode, PhotoURL: item.Image.URL}}, nil
	}
	return telegram.SplitMessage(message, defaultParseMode), nil
}

func formatHashtags(tags []string) string {
	var out []string
	for _, tag := range tags {
		clean := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(tag), "#"), " ", "_")
		if clean != "" {
			out = append(out, "#"+clean)
		}
	}
	return strings.Join(out, " ")
}

func renderTemplate(name, tmplStr string, data templateData) (string, error) {
	tmpl, err := template.New(name).Funcs(template.FuncMap{
		"summarize": func(s string, length int) string {
			runes := []rune(s)
			if len(runes) <= length {
				return s
			}
			return string(runes[:length]) + "..."
		},
		"escapeHTML":  html.EscapeString,
		"decodeEmoji": DecodeText,
	}).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parsing template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template %s: %w", name, err)
	}
	return buf.String(), nil
}
