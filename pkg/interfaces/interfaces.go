package interfaces

import (
	"context"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/haytac/neighbourhood-emoji/internal/config"
)

// FetchResult holds the outcome of a notice feed fetch.
type FetchResult struct {
	Feed            *gofeed.Feed // nil when the server answered 304
	NewEtag         string
	NewLastModified string
}

// MessagePart is a piece of a message ready to be sent to a chat.
type MessagePart struct {
	Text      string
	ParseMode string
	PhotoURL  string
}

// FeedFetcher fetches notice feeds.
type FeedFetcher interface {
	Fetch(ctx context.Context, url, etag, lastModified string, proxy *config.Proxy) (*FetchResult, error)
}

// Formatter turns a notice into chat message parts.
type Formatter interface {
	FormatNotice(ctx context.Context, item *gofeed.Item, src *config.Source, profile *config.Profile) ([]MessagePart, error)
}

// Notifier sends message parts to a chat.
type Notifier interface {
	Send(ctx context.Context, botToken, chatID string, parts []MessagePart, proxy *config.Proxy) error
	Name() string
}

// Scheduler runs a task per source on the source's frequency.
type Scheduler interface {
	Add(src *config.Source, task func(ctx context.Context, src *config.Source)) error
	Start(ctx context.Context)
	Stop()
}

// ProxyValidator checks if a proxy is working.
type ProxyValidator interface {
	Validate(ctx context.Context, proxy *config.Proxy, targetURL string) error
}

// HTTPClientFactory creates HTTP clients.
type HTTPClientFactory interface {
	GetClient(proxy *config.Proxy) (*http.Client, error)
}
