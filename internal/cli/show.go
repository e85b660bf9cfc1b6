package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storewatch/internal/app"
)

var (
	showLimit  int
	showRecent bool
	showHourly bool
	showDaily  bool
	showDay    string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display uptime views or recent checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		if countTrue(showRecent, showHourly, showDaily) > 1 {
			return fmt.Errorf("--recent, --hourly and --daily are mutually exclusive")
		}

		opts := app.ShowOptions{
			Limit:  showLimit,
			Recent: showRecent,
			Hourly: showHourly,
			Daily:  showDaily,
		}

		if showDay != "" {
			day, err := time.Parse("2006-01-02", showDay)
			if err != nil {
				return fmt.Errorf("invalid --day value: %w", err)
			}
			opts.Day = day
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func countTrue(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of checks to display with --recent")
	showCmd.Flags().BoolVar(&showRecent, "recent", false, "Show the most recent individual checks")
	showCmd.Flags().BoolVar(&showHourly, "hourly", false, "Show only per-hour online percentages for a day")
	showCmd.Flags().BoolVar(&showDaily, "daily", false, "Show only per-storefront uptime for a day")
	showCmd.Flags().StringVar(&showDay, "day", "", "Target day (YYYY-MM-DD, defaults to today)")
}
