package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"storewatch/internal/alerting"
	"storewatch/internal/classifier"
	"storewatch/internal/config"
	"storewatch/internal/domain"
	"storewatch/internal/extractor"
	"storewatch/internal/fetcher"
	"storewatch/internal/resolver"
	"storewatch/internal/storage"
	"storewatch/internal/stores"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher(onRotate func()) *fetcher.Fetcher {
	m := a.Config.Monitor
	return fetcher.New(fetcher.Options{
		Timeout:        m.RequestTimeout,
		Retries:        m.Retries,
		BlockedRetries: m.BlockedRetries,
		BackoffBase:    m.BackoffBase,
		PaceMin:        m.StorePaceMin,
		PaceMax:        m.StorePaceMax,
		OnRotate:       onRotate,
	}, a.Logger)
}

func (a *App) newPipeline() (*resolver.Resolver, *classifier.Classifier, *extractor.Extractor) {
	return resolver.New(a.Config.Monitor.LatLng), classifier.New(a.Logger), extractor.New(a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (storage.Store, func(), error) {
	store, err := storage.Open(ctx, a.Config.Database, a.Config.Location(), a.Logger)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func (a *App) loadStorefronts() ([]domain.Storefront, error) {
	return stores.Load(a.Config.Stores.File, a.Logger)
}

// CheckOptions configure a one-shot check cycle.
type CheckOptions struct {
	// URL restricts the cycle to a single storefront given on the command
	// line instead of the configured list.
	URL string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Recent bool
	Hourly bool
	Daily  bool
	Day    time.Time
}

// ExportOptions configure the uptime chart export.
type ExportOptions struct {
	Output string
	Day    time.Time
	Width  int
	Height int
}
