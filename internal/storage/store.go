package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"storewatch/internal/config"
	"storewatch/internal/domain"
)

// ErrNotConfigured indicates the backing connection was not initialised.
var ErrNotConfigured = errors.New("storage: not configured")

// Store persists storefronts and check records and serves the aggregated
// uptime views. Both SQL dialects implement identical semantics: "today" is
// anchored to the target timezone, uptime is rounded integer percent, and
// storefronts without checks never appear in the daily view.
type Store interface {
	// UpsertStorefront gets or creates a storefront row by URL and returns
	// its id. The display name is refreshed on conflict.
	UpsertStorefront(ctx context.Context, sf domain.Storefront) (int64, error)

	// AppendCheck persists one immutable check record.
	AppendCheck(ctx context.Context, rec domain.CheckRecord) error

	// HourlySummary aggregates the given local day into per-hour online
	// percentages.
	HourlySummary(ctx context.Context, day time.Time) ([]domain.HourlyRow, error)

	// DailyUptime aggregates the given local day into per-storefront uptime,
	// ordered by uptime descending.
	DailyUptime(ctx context.Context, day time.Time) ([]domain.DailyRow, error)

	// RecentChecks lists the latest check records joined with their
	// storefront, newest first.
	RecentChecks(ctx context.Context, limit int) ([]CheckLog, error)

	Ping(ctx context.Context) error
	Close()
}

// Open selects the dialect from configuration.
func Open(ctx context.Context, cfg config.DatabaseConfig, loc *time.Location, logger zerolog.Logger) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return OpenPostgres(ctx, cfg, loc, logger)
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath, loc, logger)
	default:
		return nil, fmt.Errorf("database.driver %q is not supported", cfg.Driver)
	}
}

// localDay renders the aggregation day in the target timezone.
func localDay(day time.Time, loc *time.Location) string {
	return day.In(loc).Format("2006-01-02")
}

// zoneOffsetModifier renders the location's UTC offset as a SQLite datetime
// modifier, e.g. "+480 minutes" for Asia/Manila.
func zoneOffsetModifier(loc *time.Location, at time.Time) string {
	_, offsetSec := at.In(loc).Zone()
	return fmt.Sprintf("%+d minutes", offsetSec/60)
}
