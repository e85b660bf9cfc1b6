package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storewatch/internal/app"
)

var (
	exportOutput string
	exportDay    string
	exportWidth  int
	exportHeight int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export daily uptime as a PNG bar chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Output: exportOutput,
			Width:  exportWidth,
			Height: exportHeight,
		}

		if exportDay != "" {
			day, err := time.Parse("2006-01-02", exportDay)
			if err != nil {
				return fmt.Errorf("invalid --day value: %w", err)
			}
			opts.Day = day
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Path to write the PNG chart (defaults to config)")
	exportCmd.Flags().StringVar(&exportDay, "day", "", "Target day (YYYY-MM-DD, defaults to today)")
	exportCmd.Flags().IntVar(&exportWidth, "width", 0, "Chart width in pixels (defaults to config)")
	exportCmd.Flags().IntVar(&exportHeight, "height", 0, "Chart height in pixels (defaults to config)")
}
