package cli

import (
	"github.com/spf13/cobra"

	"swapwatch/internal/app"
)

var (
	simulateToken string
	simulateSend  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "渲染指定代币的告警消息，可选发送",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Token: simulateToken,
			Send:  simulateSend,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateToken, "token", "", "代币 mint 地址")
	simulateCmd.Flags().BoolVar(&simulateSend, "send", false, "通过已配置的通道发送告警")
}
