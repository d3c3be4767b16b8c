// Package notice fetches community notice feeds and tracks which notices have
// already been relayed.
package notice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"

	"github.com/haytac/neighbourhood-emoji/internal/config"
	"github.com/haytac/neighbourhood-emoji/pkg/interfaces"
)

const (
	maxFetchRetries   = 3
	initialRetryDelay = 2 * time.Second
	maxRetryDelay     = 30 * time.Second
	userAgent         = "NeighbourhoodEmoji/1.0"
)

// GoFeedFetcher implements FeedFetcher using gofeed.
type GoFeedFetcher struct {
	clientFactory interfaces.HTTPClientFactory
	retryDelay    time.Duration
}

// NewGoFeedFetcher creates a new GoFeedFetcher.
func NewGoFeedFetcher(clientFactory interfaces.HTTPClientFactory) *GoFeedFetcher {
	return &GoFeedFetcher{clientFactory: clientFactory, retryDelay: initialRetryDelay}
}

// Fetch retrieves a feed with retries. A 304 answer yields a result with a nil Feed
// and the validators passed in.
func (f *GoFeedFetcher) Fetch(ctx context.Context, url, etag, lastModified string, proxy *config.Proxy) (*interfaces.FetchResult, error) {
	httpClient, err := f.clientFactory.GetClient(proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to get HTTP client for %s: %w", url, err)
	}

	var lastErr error
	delay := f.retryDelay
	for attempt := 0; attempt <= maxFetchRetries; attempt++ {
		if attempt > 0 {
			log.Warn().Str("feed_url", url).Int("attempt", attempt).Dur("delay", delay).Err(lastErr).Msg("Retrying fetch after error")
			select {
			case <-time.After(delay):
				delay = min(delay*2, maxRetryDelay)
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch context cancelled during retry backoff for %s: %w", url, ctx.Err())
			}
		}

		result, retry, err := f.fetchOnce(ctx, httpClient, url, etag, lastModified)
		if err == nil {
			return result, nil
		}
		lastErr = fmt.Errorf("attempt %d: %w", attempt, err)
		if !retry {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("all %d fetch attempts failed for %s: %w", maxFetchRetries+1, url, lastErr)
}

// fetchOnce performs a single request. retry reports whether the failure is transient.
func (f *GoFeedFetcher) fetchOnce(ctx context.Context, client *http.Client, url, etag, lastModified string) (*interfaces.FetchResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		transient := !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		return nil, transient, fmt.Errorf("failed to fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		log.Debug().Str("feed_url", url).Msg("Feed not modified (304)")
		return &interfaces.FetchResult{NewEtag: etag, NewLastModified: lastModified}, false, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		clientErr := resp.StatusCode >= 400 && resp.StatusCode < 500
		return nil, !clientErr, fmt.Errorf("failed to fetch feed %s: status %d, body: %s", url, resp.StatusCode, string(body))
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to parse feed %s: %w", url, err)
	}
	return &interfaces.FetchResult{
		Feed:            feed,
		NewEtag:         resp.Header.Get("ETag"),
		NewLastModified: resp.Header.Get("Last-Modified"),
	}, false, nil
}
