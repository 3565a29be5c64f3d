package app

import (
	"context"
	"errors"
	"fmt"
)

// SimulateAlert 为指定代币渲染一次告警，可选择真正发送。
// Alert criteria and the symbol cooldown are reported but not enforced.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if opts.Token == "" {
		return errors.New("--token is required")
	}

	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	snapshot, err := c.service.Snapshot(ctx, opts.Token)
	if err != nil {
		return err
	}
	if reason := c.service.CheckCriteria(snapshot); reason != "" {
		a.Logger.Warn().Str("reason", reason).Msg("token would not pass alert criteria")
	}

	alert, err := c.service.Compose(ctx, snapshot)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, alert.Text)

	if !opts.Send {
		return nil
	}
	if c.notifier == nil {
		return errors.New("alerting 未启用")
	}
	record, err := c.service.Deliver(ctx, alert, "simulated")
	if err != nil {
		return err
	}
	a.Logger.Info().Str("symbol", record.Symbol).Int("wallets", record.WalletCount).Msg("simulated alert sent")
	return nil
}
