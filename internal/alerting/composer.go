package alerting

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"swapwatch/internal/analyzer"
	"swapwatch/internal/fetcher"
)

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
	tenth    = decimal.RequireFromString("0.1")
	ten      = decimal.NewFromInt(10)
)

// Compose renders the Telegram HTML alert for a token and its wallet report.
func Compose(snapshot fetcher.TokenSnapshot, report *analyzer.Report, now time.Time) string {
	var b strings.Builder

	name := strings.TrimSpace(snapshot.Name)
	if name == "" {
		name = "Unknown"
	}
	fmt.Fprintf(&b, "🔔 <b>%s</b> ($%s)\n", html.EscapeString(name), html.EscapeString(snapshot.Symbol))
	fmt.Fprintf(&b, "<code>%s</code>\n\n", html.EscapeString(snapshot.Address))

	fmt.Fprintf(&b, "💰 MC: %s | Liq: %s\n", FormatUSD(snapshot.MarketCapUSD), FormatUSD(snapshot.LiquidityUSD))
	fmt.Fprintf(&b, "📊 Vol 24h: %s | 1h: %s\n", FormatUSD(snapshot.VolumeH24), FormatUSD(snapshot.VolumeH1))
	fmt.Fprintf(&b, "💵 Price: %s | 6h: %s\n", FormatPrice(snapshot.PriceUSD), FormatChange(snapshot.ChangeH6))
	fmt.Fprintf(&b, "⏰ Age: %s\n", pairAge(snapshot.CreatedAt, now))

	var links []string
	if snapshot.Website != "" {
		links = append(links, fmt.Sprintf(`<a href="%s">Website</a>`, html.EscapeString(snapshot.Website)))
	}
	if snapshot.Twitter != "" {
		links = append(links, fmt.Sprintf(`<a href="%s">Twitter</a>`, html.EscapeString(snapshot.Twitter)))
	}
	if len(links) > 0 {
		fmt.Fprintf(&b, "🔗 %s\n", strings.Join(links, " | "))
	}

	if report == nil || len(report.Wallets) == 0 {
		b.WriteString("\n👛 No tracked wallets")
		return b.String()
	}

	fmt.Fprintf(&b, "\n👛 Wallets (%d):\n", len(report.Wallets))
	for i, w := range report.Wallets {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• <b>%s</b> spent %s @ MC %s, %s, holds %s%%",
			html.EscapeString(walletLabel(w)),
			FormatUSD(w.TotalBuyCost),
			FormatUSD(w.AverageMarketCap),
			w.BuyTime,
			w.HoldsPercentage.StringFixed(2),
		)
	}
	return b.String()
}

// FormatUSD renders a dollar amount compactly: $950, $12.5K, $3.4M, $1.2B.
// Zero or negative values render as $0.
func FormatUSD(v decimal.Decimal) string {
	if !v.IsPositive() {
		return "$0"
	}
	switch {
	case v.GreaterThanOrEqual(billion):
		return "$" + v.Div(billion).Round(1).String() + "B"
	case v.GreaterThanOrEqual(million):
		return "$" + v.Div(million).Round(1).String() + "M"
	case v.GreaterThanOrEqual(thousand):
		return "$" + v.Div(thousand).Round(1).String() + "K"
	default:
		return "$" + v.Round(2).String()
	}
}

// FormatPrice keeps four significant digits for sub-dollar prices.
func FormatPrice(v decimal.Decimal) string {
	if !v.IsPositive() {
		return "$0"
	}
	if v.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return "$" + v.Round(4).String()
	}
	zeros := int32(0)
	for x := v; x.LessThan(tenth) && zeros < 18; zeros++ {
		x = x.Mul(ten)
	}
	return "$" + v.Round(zeros+4).String()
}

// FormatChange renders a signed percentage.
func FormatChange(v decimal.Decimal) string {
	s := v.Round(2).String()
	if v.IsPositive() {
		s = "+" + s
	}
	return s + "%"
}

func pairAge(createdAt, now time.Time) string {
	if createdAt.IsZero() {
		return "unknown"
	}
	return analyzer.FormatTimeAgo(createdAt.Unix(), now)
}

// walletLabel appends a shortened address to unnamed wallets.
func walletLabel(w analyzer.WalletAggregate) string {
	if w.WalletName != "" && w.WalletName != analyzer.UnknownWallet {
		return w.WalletName
	}
	if len(w.Account) > 8 {
		return fmt.Sprintf("%s (%s…%s)", analyzer.UnknownWallet, w.Account[:4], w.Account[len(w.Account)-4:])
	}
	return analyzer.UnknownWallet
}
