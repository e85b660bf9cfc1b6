package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
)

// Export renders the daily uptime view as a PNG bar chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Output == "" {
		opts.Output = a.Config.Export.Output
	}
	if opts.Width <= 0 {
		opts.Width = a.Config.Export.Width
	}
	if opts.Height <= 0 {
		opts.Height = a.Config.Export.Height
	}

	day := opts.Day
	if day.IsZero() {
		day = time.Now()
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	rows, err := store.DailyUptime(ctx, day)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		a.Logger.Info().Msg("no checks recorded for that day; nothing to export")
		return nil
	}

	bars := make([]chart.Value, 0, len(rows))
	for _, row := range rows {
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s (%s)", row.Name, row.Platform),
			Value: float64(row.UptimePct),
		})
	}

	graph := chart.BarChart{
		Title:    fmt.Sprintf("Storefront uptime %s", day.In(a.Config.Location()).Format("2006-01-02")),
		Width:    opts.Width,
		Height:   opts.Height,
		BarWidth: 48,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f%%")
			},
		},
		Bars: bars,
	}

	if err := ensureDir(opts.Output); err != nil {
		return err
	}
	file, err := os.Create(opts.Output)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := graph.Render(chart.PNG, file); err != nil {
		return err
	}

	a.Logger.Info().Str("path", opts.Output).Int("stores", len(bars)).Msg("uptime chart written")
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
