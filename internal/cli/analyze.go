package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var analyzeToken string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print wallet co-activity for a token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeToken == "" {
			return errors.New("--token is required")
		}
		return getApp().Analyze(cmd.Context(), analyzeToken)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeToken, "token", "", "Token mint address")
}
