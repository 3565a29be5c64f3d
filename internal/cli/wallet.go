package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var walletName string

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage tracked wallets",
}

var walletAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Track a wallet under a display name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AddWallet(cmd.Context(), args[0], walletName)
	},
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked wallets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListWallets(cmd.Context())
	},
}

var webhookID string

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage the Helius enhanced webhook",
}

var webhookRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a webhook watching every tracked wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SyncWebhook(cmd.Context(), "")
	},
}

var webhookUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Replace the watched addresses of an existing webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		id := webhookID
		if id == "" {
			id = getApp().Config.Helius.WebhookID
		}
		if id == "" {
			return errors.New("--id or helius.webhook_id is required")
		}
		return getApp().SyncWebhook(cmd.Context(), id)
	},
}

func init() {
	walletAddCmd.Flags().StringVar(&walletName, "name", "", "Display name used in alerts")
	walletCmd.AddCommand(walletAddCmd, walletListCmd)

	webhookUpdateCmd.Flags().StringVar(&webhookID, "id", "", "Webhook id (defaults to helius.webhook_id)")
	webhookCmd.AddCommand(webhookRegisterCmd, webhookUpdateCmd)
}
