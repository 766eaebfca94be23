package cli

import (
	"github.com/spf13/cobra"

	"gearwatch/internal/app"
)

var scanDryRun bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Execute a single scan cycle immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ScanOptions{
			DryRun: scanDryRun,
		}
		return getApp().Scan(cmd.Context(), opts)
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "Extract prices without writing to the history store")
}
