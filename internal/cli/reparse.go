package cli

import (
	"github.com/spf13/cobra"

	"swapwatch/internal/app"
)

var (
	reparseDryRun  bool
	reparseWorkers int
)

var reparseCmd = &cobra.Command{
	Use:   "reparse <signature>...",
	Short: "Re-parse transactions through Shyft and store the trades",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ReparseOptions{
			Signatures: args,
			DryRun:     reparseDryRun,
			Workers:    reparseWorkers,
		}
		return getApp().Reparse(cmd.Context(), opts)
	},
}

func init() {
	reparseCmd.Flags().BoolVar(&reparseDryRun, "dry-run", false, "Parse without writing to storage")
	reparseCmd.Flags().IntVar(&reparseWorkers, "workers", 4, "Number of concurrent workers")
}
