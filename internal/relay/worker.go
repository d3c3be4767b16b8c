// Package relay fetches notice sources and forwards new notices to Telegram.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/haytac/neighbourhood-emoji/internal/config"
	"github.com/haytac/neighbourhood-emoji/internal/metrics"
	"github.com/haytac/neighbourhood-emoji/internal/notice"
	"github.com/haytac/neighbourhood-emoji/pkg/interfaces"
)

const processTimeout = 5 * time.Minute

// ErrNoBotToken is returned when a notice is due but no bot token is configured.
var ErrNoBotToken = errors.New("telegram bot token is not configured")

// Worker handles fetching and relaying a single source.
type Worker struct {
	cfg       *config.AppConfig
	tracker   *notice.Tracker
	fetcher   interfaces.FeedFetcher
	formatter interfaces.Formatter
	notifier  interfaces.Notifier

	runsMu sync.Mutex
	runs   map[string]*sync.Mutex // serializes relays of the same source
}

// NewWorker creates a new Worker.
func NewWorker(cfg *config.AppConfig, tracker *notice.Tracker, fetcher interfaces.FeedFetcher, formatter interfaces.Formatter, notifier interfaces.Notifier) *Worker {
	return &Worker{
		cfg:       cfg,
		tracker:   tracker,
		fetcher:   fetcher,
		formatter: formatter,
		notifier:  notifier,
		runs:      make(map[string]*sync.Mutex),
	}
}

// ProcessSource is the scheduler task for a source. The run is bounded by
// processTimeout and ends early when ctx is cancelled.
func (w *Worker) ProcessSource(ctx context.Context, src *config.Source) {
	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()
	if _, err := w.Relay(ctx, src); err != nil {
		log.Error().Err(err).Str("source", src.Name).Msg("Relay run failed")
	}
}

func (w *Worker) sourceLock(name string) *sync.Mutex {
	w.runsMu.Lock()
	defer w.runsMu.Unlock()
	mu, ok := w.runs[name]
	if !ok {
		mu = &sync.Mutex{}
		w.runs[name] = mu
	}
	return mu
}

// Relay fetches src and sends its new notices, returning how many were relayed.
// Concurrent calls for the same source run one after another.
func (w *Worker) Relay(ctx context.Context, src *config.Source) (int, error) {
	mu := w.sourceLock(src.Name)
	mu.Lock()
	defer mu.Unlock()

	metrics.ActiveRelayWorkers.Inc()
	defer metrics.ActiveRelayWorkers.Dec()

	l := log.With().Str("source", src.Name).Str("feed_url", src.URL).Logger()
	l.Info().Msg("Starting to process source")

	feedProxy := w.resolveProxy(src.Proxy, w.cfg.DefaultFeedProxy)
	etag, lastModified := w.tracker.Validators(src.Name)
	result, err := w.fetcher.Fetch(ctx, src.URL, etag, lastModified, feedProxy)
	if err != nil {
		metrics.NoticesProcessed.WithLabelValues(src.Name, "fetch_error").Inc()
		return 0, fmt.Errorf("fetching source %s: %w", src.Name, err)
	}
	w.tracker.RecordFetch(src.Name, result.NewEtag, result.NewLastModified)

	if result.Feed == nil {
		l.Info().Msg("Source not modified")
		metrics.FeedCacheEvents.WithLabelValues(src.Name, "not_modified").Inc()
		metrics.NoticesProcessed.WithLabelValues(src.Name, "not_modified").Inc()
		return 0, nil
	}
	metrics.FeedCacheEvents.WithLabelValues(src.Name, "fetched").Inc()

	items := w.tracker.NewItems(src.Name, result.Feed)
	if len(items) == 0 {
		l.Info().Msg("No new notices")
		metrics.NoticesProcessed.WithLabelValues(src.Name, "no_new_items").Inc()
		return 0, nil
	}
	l.Info().Int("new_notices", len(items)).Msg("New notices found")

	if !w.cfg.DryRun && w.cfg.Telegram.BotToken == "" {
		metrics.NoticesProcessed.WithLabelValues(src.Name, "config_error").Inc()
		return 0, ErrNoBotToken
	}

	profile := w.cfg.ProfileByName(src.Profile)
	tgProxy := w.resolveProxy(src.Proxy, w.cfg.DefaultTelegramProxy)

	relayed := 0
	for _, item := range items {
		il := l.With().Str("item_title", truncate(item.Title, 50)).Str("item_link", item.Link).Logger()
		itemCtx := il.WithContext(ctx)

		parts, err := w.formatter.FormatNotice(itemCtx, item, src, profile)
		if err != nil {
			// A notice that cannot be formatted now will not format on the next run either.
			il.Error().Err(err).Msg("Failed to format notice, skipping it")
			metrics.NoticesProcessed.WithLabelValues(src.Name, "format_error").Inc()
			w.tracker.MarkSeen(src.Name, item)
			continue
		}

		if w.cfg.DryRun {
			il.Info().Interface("formatted_parts", parts).Msg("[DRY RUN] Would send formatted notice")
		} else if err := w.notifier.Send(itemCtx, w.cfg.Telegram.BotToken, src.ChatID, parts, tgProxy); err != nil {
			// Stop here so the remaining notices are retried, in order, next run.
			metrics.NoticesProcessed.WithLabelValues(src.Name, "send_error").Inc()
			return relayed, fmt.Errorf("sending notice to %s: %w", w.notifier.Name(), err)
		}

		w.tracker.MarkSeen(src.Name, item)
		metrics.NoticesRelayed.WithLabelValues(src.Name).Inc()
		relayed++
	}

	l.Info().Int("notices_relayed", relayed).Msg("Finished processing source")
	metrics.NoticesProcessed.WithLabelValues(src.Name, "success").Inc()
	return relayed, nil
}

func (w *Worker) resolveProxy(name, fallback string) *config.Proxy {
	if name == "" {
		name = fallback
	}
	if name == "" {
		return nil
	}
	p := w.cfg.ProxyByName(name)
	if p == nil {
		log.Warn().Str("proxy_name", name).Msg("Proxy not found, connecting directly")
	}
	return p
}

// truncate shortens s to at most maxLength runes, ending in "..." when there is room.
func truncate(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:max(maxLength, 0)])
	}
	return string(runes[:maxLength-3]) + "..."
}
