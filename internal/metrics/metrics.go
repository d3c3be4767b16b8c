package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	// TokensDecoded counts emoji tokens resolved by the API and the relay.
	TokensDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbhd_emoji_tokens_decoded_total",
			Help: "Total number of emoji tokens decoded to glyphs.",
		},
		[]string{"result"}, // known, fallback
	)

	// APIRequests counts codec API requests.
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbhd_api_requests_total",
			Help: "Total number of emoji API requests.",
		},
		[]string{"endpoint", "status"},
	)

	// NoticesProcessed counts relay runs per source.
	NoticesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbhd_notices_processed_total",
			Help: "Total number of notice source relay runs.",
		},
		[]string{"source", "status"}, // success, fetch_error, no_new_items, ...
	)

	// NoticesRelayed counts notices delivered to a chat.
	NoticesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbhd_notices_relayed_total",
			Help: "Total number of notices relayed to Telegram.",
		},
		[]string{"source"},
	)

	// FeedCacheEvents counts conditional GET outcomes.
	FeedCacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbhd_feed_cache_events_total",
			Help: "Total number of notice feed cache events (fetched, not_modified).",
		},
		[]string{"source", "event"},
	)

	// TelegramAPICalls counts calls to the Telegram API.
	TelegramAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbhd_telegram_api_calls_total",
			Help: "Total number of Telegram API calls.",
		},
		[]string{"method", "status"},
	)

	// ActiveRelayWorkers reports relay runs in progress.
	ActiveRelayWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nbhd_active_relay_workers",
			Help: "Number of currently active notice relay goroutines.",
		},
	)
)

// ObserveDecoded records how one decoded token resolved.
func ObserveDecoded(_ string, known bool) {
	if known {
		TokensDecoded.WithLabelValues("known").Inc()
	} else {
		TokensDecoded.WithLabelValues("fallback").Inc()
	}
}

// Handler returns the router serving /metrics.
func Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// StartServer starts the Prometheus metrics HTTP server and stops it when ctx is done.
func StartServer(ctx context.Context, addr string) {
	if addr == "" {
		log.Info().Msg("Metrics server address not configured, Prometheus endpoint will not be available.")
		return
	}

	srv := &http.Server{Addr: addr, Handler: Handler(), ReadHeaderTimeout: 10 * time.Second}
	log.Info().Str("address", addr).Msg("Starting Prometheus metrics server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Prometheus metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
