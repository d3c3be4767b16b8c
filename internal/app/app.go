package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/haytac/neighbourhood-emoji/internal/config"
	"github.com/haytac/neighbourhood-emoji/internal/formatter"
	"github.com/haytac/neighbourhood-emoji/internal/httpapi"
	"github.com/haytac/neighbourhood-emoji/internal/metrics"
	"github.com/haytac/neighbourhood-emoji/internal/notice"
	"github.com/haytac/neighbourhood-emoji/internal/proxy"
	"github.com/haytac/neighbourhood-emoji/internal/relay"
	"github.com/haytac/neighbourhood-emoji/internal/scheduler"
	"github.com/haytac/neighbourhood-emoji/internal/telegram"
	"github.com/haytac/neighbourhood-emoji/pkg/interfaces"
)

// Application holds all dependencies for the app.
type Application struct {
	Config    *config.AppConfig
	Scheduler interfaces.Scheduler
	Worker    *relay.Worker
}

// NewApplication creates and initializes a new application instance.
func NewApplication(cfg *config.AppConfig) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Telegram.BotToken == "" && !cfg.DryRun && len(cfg.EnabledSources()) > 0 {
		log.Warn().Msg("Configuration 'telegram.bot_token' (or NBHD_TELEGRAM_BOT_TOKEN env var) is not set. Notices cannot be relayed.")
	}

	httpClientFactory := proxy.NewHTTPClientFactory()
	worker := relay.NewWorker(
		cfg,
		notice.NewTracker(cfg.SendBacklog),
		notice.NewGoFeedFetcher(httpClientFactory),
		formatter.NewDefaultFormatter(),
		telegram.NewClient(httpClientFactory, cfg.Telegram.APIEndpoint),
	)

	return &Application{
		Config:    cfg,
		Scheduler: scheduler.NewSourceScheduler(),
		Worker:    worker,
	}, nil
}

// Run starts the API server, the metrics server and, unless apiOnly is set, the
// notice relay. It returns when ctx is cancelled or a termination signal arrives.
func (app *Application) Run(ctx context.Context, apiOnly bool) error {
	log.Info().Msg("Starting application...")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, app.Config.MetricsPort)

	g, gctx := errgroup.WithContext(ctx)
	if app.Config.HTTPAddr != "" {
		g.Go(func() error {
			return httpapi.Serve(gctx, app.Config.HTTPAddr)
		})
	}

	if !apiOnly {
		sources := app.Config.EnabledSources()
		if len(sources) == 0 {
			log.Info().Msg("No enabled sources configured; only the emoji API is running.")
		}
		for _, src := range sources {
			if err := app.Scheduler.Add(src, app.Worker.ProcessSource); err != nil {
				log.Error().Err(err).Str("source", src.Name).Msg("Failed to add source to scheduler")
			}
		}
		app.Scheduler.Start(gctx)
		g.Go(func() error {
			<-gctx.Done()
			log.Info().Msg("Shutting down scheduler...")
			app.Scheduler.Stop()
			return nil
		})
	}

	<-gctx.Done()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Application stopped with error")
		return err
	}
	log.Info().Msg("Application shut down gracefully.")
	return nil
}
