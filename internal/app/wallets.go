package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gagliardetto/solana-go"

	"swapwatch/internal/storage"
)

// AddWallet registers or renames a tracked wallet.
func (a *App) AddWallet(ctx context.Context, address, name string) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("invalid wallet address %q: %w", address, err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("--name is required")
	}

	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if c.pg == nil {
		a.Logger.Warn().Msg("database.dsn not configured; the wallet will not outlive this process")
	}
	if err := c.store.UpsertWallet(ctx, storage.Wallet{Address: address, Name: name}); err != nil {
		return err
	}
	a.Logger.Info().Str("address", address).Str("name", name).Msg("wallet saved")
	return nil
}

// ListWallets prints the wallet directory.
func (a *App) ListWallets(ctx context.Context) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	wallets, err := c.store.ListWallets(ctx)
	if err != nil {
		return err
	}
	if len(wallets) == 0 {
		fmt.Fprintln(a.Out, "no wallets tracked")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Address\tName\tAdded (UTC)")
	for _, w := range wallets {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", w.Address, w.Name, w.CreatedAt.UTC().Format(time.RFC3339))
	}
	writer.Flush()
	return nil
}

// SyncWebhook creates the enhanced webhook, or updates webhookID when set, so
// that it watches every tracked wallet.
func (a *App) SyncWebhook(ctx context.Context, webhookID string) error {
	if a.Config.Helius.APIKey == "" {
		return errors.New("helius.api_key is required")
	}

	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	wallets, err := c.store.ListWallets(ctx)
	if err != nil {
		return err
	}
	addresses := make([]string, 0, len(wallets))
	for _, w := range wallets {
		addresses = append(addresses, w.Address)
	}

	client := a.newWebhookClient(c.http)
	if webhookID == "" {
		hook, err := client.Create(ctx, addresses)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "webhook created: %s\n", hook.WebhookID)
		return nil
	}

	hook, err := client.Update(ctx, webhookID, addresses)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "webhook updated: %s (%d addresses)\n", hook.WebhookID, len(addresses))
	return nil
}
