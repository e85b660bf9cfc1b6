package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"storewatch/internal/storage"
)

// Show prints persisted checks or the aggregate uptime views.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	day := opts.Day
	if day.IsZero() {
		day = time.Now()
	}

	switch {
	case opts.Recent:
		return a.showRecent(ctx, store, opts.Limit)
	case opts.Hourly:
		return a.showHourly(ctx, store, day)
	case opts.Daily:
		return a.showDaily(ctx, store, day)
	default:
		if err := a.showDaily(ctx, store, day); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout)
		return a.showHourly(ctx, store, day)
	}
}

func (a *App) showRecent(ctx context.Context, store storage.Store, limit int) error {
	logs, err := store.RecentChecks(ctx, limit)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Fprintln(os.Stdout, "no checks recorded")
		return nil
	}

	loc := a.Config.Location()
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time\tStore\tPlatform\tStatus\tLatency\tOOS\tReason")
	for _, log := range logs {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%dms\t%d\t%s\n",
			log.CheckedAt.In(loc).Format("2006-01-02 15:04"),
			log.StoreName, log.Platform, log.Status, log.LatencyMS,
			len(log.OOSItems), sanitizeInline(log.Reason))
	}
	return writer.Flush()
}

func (a *App) showHourly(ctx context.Context, store storage.Store, day time.Time) error {
	rows, err := store.HourlySummary(ctx, day)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no checks recorded for that day")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Hour\tOnline%\tOffline%\tChecks")
	for _, row := range rows {
		fmt.Fprintf(writer, "%02d:00\t%d\t%d\t%d\n", row.Hour, row.OnlinePct, row.OfflinePct, row.DataPoints)
	}
	return writer.Flush()
}

func (a *App) showDaily(ctx context.Context, store storage.Store, day time.Time) error {
	rows, err := store.DailyUptime(ctx, day)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no checks recorded for that day")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Store\tPlatform\tUptime%\tOnline\tChecks")
	for _, row := range rows {
		fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%d\n",
			row.Name, row.Platform, row.UptimePct, row.OnlineChecks, row.TotalChecks)
	}
	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
