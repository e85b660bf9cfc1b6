package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storewatch/internal/obs"
	"storewatch/internal/scheduler"
	"storewatch/internal/service"
)

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	storefronts, err := a.loadStorefronts()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var metrics *obs.Metrics
	var metricsSrv *http.Server
	if a.Config.Metrics.Enabled {
		metrics = obs.NewMetrics()
		metricsSrv = obs.StartServer(a.Config.Metrics.Addr, metrics, store.Ping, a.Logger)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:        a.Config.Scheduler.Interval,
		AlignToStart:    a.Config.Scheduler.AlignToBucket,
		StartupDelay:    a.Config.Scheduler.StartupDelay,
		WindowStartHour: a.Config.Scheduler.WindowStartHour,
		WindowEndHour:   a.Config.Scheduler.WindowEndHour,
		Location:        a.Config.Location(),
	}, a.Logger)

	var onRotate func()
	if metrics != nil {
		onRotate = metrics.IdentityRotations.Inc
	}

	res, cls, ext := a.newPipeline()
	svc := service.New(storefronts, sched, res, a.newFetcher(onRotate), cls, ext, store, a.newNotifier(), metrics, service.Options{
		AlertsEnabled:    a.Config.Alerting.Enabled,
		BlockedThreshold: a.Config.Alerting.BlockedThreshold,
	}, a.Logger)

	a.Logger.Info().Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}
