package cli

import (
	"github.com/spf13/cobra"

	"storewatch/internal/app"
)

var checkURL string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single check cycle immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.CheckOptions{
			URL: checkURL,
		}
		return getApp().Check(cmd.Context(), opts)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkURL, "url", "", "Check a single storefront URL instead of the configured list")
}
