package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"swapwatch/internal/analyzer"
	"swapwatch/internal/storage"
	"swapwatch/internal/trade"
)

// Show prints recent trades and alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	trades, err := c.store.ListRecentTrades(ctx, opts.Limit)
	if err != nil {
		return err
	}
	alerts, err := c.store.ListRecentAlerts(ctx, opts.Limit)
	if err != nil {
		return err
	}

	printTrades(a.Out, trades)
	fmt.Fprintln(a.Out)
	printAlerts(a.Out, alerts)
	return nil
}

// Analyze prints the wallet co-activity report for a token.
func (a *App) Analyze(ctx context.Context, token string) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := c.analyzer.Analyze(ctx, token)
	if err != nil {
		return err
	}
	printReport(a.Out, report)
	return nil
}

func printTrades(out io.Writer, trades []trade.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(out, "no trades found")
		return
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tAccount\tIn\tAmount In\tOut\tAmount Out\tSignature\tDescription")
	for _, t := range trades {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			time.Unix(t.Timestamp, 0).UTC().Format(time.RFC3339),
			shorten(t.Account),
			shorten(t.TokenInAddress),
			formatDecimal(t.TokenInAmount, 6),
			shorten(t.TokenOutAddress),
			formatDecimal(t.TokenOutAmount, 6),
			shorten(t.Signature),
			sanitizeInline(t.DescriptionOrEmpty()),
		)
	}
	writer.Flush()
}

func printAlerts(out io.Writer, alerts []storage.AlertRecord) {
	if len(alerts) == 0 {
		fmt.Fprintln(out, "no alerts found")
		return
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSymbol\tToken\tWallets\tMarket Cap\tMessage")
	for _, alert := range alerts {
		msgID := "-"
		if alert.MessageID != nil {
			msgID = fmt.Sprintf("%d", *alert.MessageID)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%d\t%s\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.Symbol,
			shorten(alert.TokenAddress),
			alert.WalletCount,
			formatDecimal(alert.MarketCapUSD, 0),
			msgID,
		)
	}
	writer.Flush()
}

func printReport(out io.Writer, report *analyzer.Report) {
	fmt.Fprintf(out, "token: %s\nsupply: %s\n\n", report.Token, formatDecimal(report.TotalSupply, 0))
	if len(report.Wallets) == 0 {
		fmt.Fprintln(out, "no wallets bought this token")
		return
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Wallet\tName\tSpent (USD)\tAvg Price\tEntry MC\tHolds%\tBuys\tSells\tLast Buy")
	for _, w := range report.Wallets {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			w.Account,
			w.WalletName,
			formatDecimal(w.TotalBuyCost, 2),
			w.AverageBuyPrice.String(),
			formatDecimal(w.AverageMarketCap, 0),
			formatDecimal(w.HoldsPercentage, 2),
			w.BuyCount,
			w.SellCount,
			w.BuyTime,
		)
	}
	writer.Flush()
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func shorten(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + ".." + addr[len(addr)-4:]
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
