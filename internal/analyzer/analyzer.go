// Package analyzer aggregates recorded trades of a token into per-wallet
// co-activity statistics.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"swapwatch/internal/fetcher"
	"swapwatch/internal/trade"
)

// UnknownWallet names wallets missing from the directory.
const UnknownWallet = "Unknown"

var (
	defaultSupply = decimal.NewFromInt(1_000_000_000)
	hundred       = decimal.NewFromInt(100)
)

// TradeReader lists stored trades touching a token on either leg.
type TradeReader interface {
	ListTradesByToken(ctx context.Context, token string) ([]trade.Trade, error)
}

// WalletDirectory resolves display names for wallet addresses.
type WalletDirectory interface {
	WalletNames(ctx context.Context, addresses []string) (map[string]string, error)
}

// Options tune the analyzer.
type Options struct {
	DefaultSupply decimal.Decimal
	Now           func() time.Time
}

// WalletAggregate summarises one wallet's activity in a token.
type WalletAggregate struct {
	Account          string
	WalletName       string
	TotalBuyCost     decimal.Decimal
	AverageBuyPrice  decimal.Decimal
	AverageMarketCap decimal.Decimal
	HoldsPercentage  decimal.Decimal
	BoughtAmount     decimal.Decimal
	SoldAmount       decimal.Decimal
	LastBuyAt        time.Time
	BuyTime          string
	BuyCount         int
	SellCount        int
}

// Report is the result of one analysis pass. Wallets keep first-seen order.
type Report struct {
	Token       string
	TotalSupply decimal.Decimal
	Wallets     []WalletAggregate
	GeneratedAt time.Time
}

// Lookup returns the aggregate for account.
func (r *Report) Lookup(account string) (WalletAggregate, bool) {
	if r == nil {
		return WalletAggregate{}, false
	}
	for _, w := range r.Wallets {
		if w.Account == account {
			return w, true
		}
	}
	return WalletAggregate{}, false
}

// Analyzer computes wallet aggregates for a token.
type Analyzer struct {
	trades TradeReader
	prices fetcher.PriceOracle
	supply fetcher.SupplyProvider
	names  WalletDirectory
	opts   Options
	logger zerolog.Logger
}

// New constructs an Analyzer. supply and names may be nil.
func New(trades TradeReader, prices fetcher.PriceOracle, supply fetcher.SupplyProvider, names WalletDirectory, opts Options, logger zerolog.Logger) *Analyzer {
	if !opts.DefaultSupply.IsPositive() {
		opts.DefaultSupply = defaultSupply
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Analyzer{
		trades: trades,
		prices: prices,
		supply: supply,
		names:  names,
		opts:   opts,
		logger: logger.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze aggregates every stored trade of token per wallet. Only a trade
// store failure is returned; enrichment failures fall back to defaults.
func (a *Analyzer) Analyze(ctx context.Context, token string) (*Report, error) {
	var (
		trades []trade.Trade
		supply decimal.Decimal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := a.trades.ListTradesByToken(gctx, token)
		if err != nil {
			return fmt.Errorf("list trades for %s: %w", token, err)
		}
		trades = list
		return nil
	})
	g.Go(func() error {
		supply = a.totalSupply(gctx, token)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := a.opts.Now()
	report := &Report{Token: token, TotalSupply: supply, GeneratedAt: now}
	groups, order := groupByAccount(trades)
	priceCache := make(map[string]decimal.Decimal)

	for _, account := range order {
		agg, ok := a.aggregate(ctx, token, account, groups[account], supply, now, priceCache)
		if !ok {
			continue
		}
		report.Wallets = append(report.Wallets, agg)
	}

	a.attachNames(ctx, report)
	return report, nil
}

func (a *Analyzer) aggregate(ctx context.Context, token, account string, trades []trade.Trade, supply decimal.Decimal, now time.Time, priceCache map[string]decimal.Decimal) (WalletAggregate, bool) {
	agg := WalletAggregate{
		Account:      account,
		WalletName:   UnknownWallet,
		TotalBuyCost: decimal.Zero,
		BoughtAmount: decimal.Zero,
		SoldAmount:   decimal.Zero,
	}

	var lastBuy int64
	for _, t := range trades {
		switch t.Side(token) {
		case trade.SideBuy:
			price := a.spotPrice(ctx, t.TokenInAddress, priceCache)
			agg.TotalBuyCost = agg.TotalBuyCost.Add(price.Mul(t.TokenInAmount))
			agg.BoughtAmount = agg.BoughtAmount.Add(t.TokenOutAmount)
			if t.Timestamp > lastBuy {
				lastBuy = t.Timestamp
			}
			agg.BuyCount++
		case trade.SideSell:
			agg.SoldAmount = agg.SoldAmount.Add(t.TokenInAmount)
			agg.SellCount++
		}
	}
	if agg.BuyCount == 0 {
		return WalletAggregate{}, false
	}

	agg.HoldsPercentage = decimal.Zero
	agg.AverageBuyPrice = decimal.Zero
	if agg.BoughtAmount.IsPositive() {
		remaining := decimal.Max(decimal.Zero, agg.BoughtAmount.Sub(agg.SoldAmount))
		agg.HoldsPercentage = remaining.Div(agg.BoughtAmount).Mul(hundred)
		agg.AverageBuyPrice = agg.TotalBuyCost.Div(agg.BoughtAmount)
	}
	agg.AverageMarketCap = agg.AverageBuyPrice.Mul(supply)
	agg.LastBuyAt = time.Unix(lastBuy, 0).UTC()
	agg.BuyTime = FormatTimeAgo(lastBuy, now)
	return agg, true
}

func (a *Analyzer) spotPrice(ctx context.Context, asset string, cache map[string]decimal.Decimal) decimal.Decimal {
	if price, ok := cache[asset]; ok {
		return price
	}
	price, err := a.prices.SpotPriceUSD(ctx, asset)
	if err != nil {
		a.logger.Warn().Err(err).Str("asset", asset).Msg("price enrichment failed, counting as zero")
		price = decimal.Zero
	}
	cache[asset] = price
	return price
}

func (a *Analyzer) totalSupply(ctx context.Context, token string) decimal.Decimal {
	if a.supply == nil {
		return a.opts.DefaultSupply
	}
	supply, err := a.supply.TotalSupply(ctx, token)
	if err != nil || !supply.IsPositive() {
		a.logger.Warn().Err(err).Str("token", token).Str("default", a.opts.DefaultSupply.String()).Msg("supply enrichment failed, using default")
		return a.opts.DefaultSupply
	}
	return supply
}

func (a *Analyzer) attachNames(ctx context.Context, report *Report) {
	if a.names == nil || len(report.Wallets) == 0 {
		return
	}
	accounts := make([]string, 0, len(report.Wallets))
	for _, w := range report.Wallets {
		accounts = append(accounts, w.Account)
	}
	names, err := a.names.WalletNames(ctx, accounts)
	if err != nil {
		a.logger.Warn().Err(err).Msg("wallet name lookup failed")
		return
	}
	for i := range report.Wallets {
		if name := names[report.Wallets[i].Account]; name != "" {
			report.Wallets[i].WalletName = name
		}
	}
}

func groupByAccount(trades []trade.Trade) (map[string][]trade.Trade, []string) {
	groups := make(map[string][]trade.Trade)
	var order []string
	for _, t := range trades {
		if _, ok := groups[t.Account]; !ok {
			order = append(order, t.Account)
		}
		groups[t.Account] = append(groups[t.Account], t)
	}
	return groups, order
}

// FormatTimeAgo renders the distance between ts and now in the largest whole
// unit: seconds, minutes, hours or days.
func FormatTimeAgo(ts int64, now time.Time) string {
	diff := now.Unix() - ts
	if diff < 0 {
		diff = 0
	}
	const (
		minute = 60
		hour   = 60 * minute
		day    = 24 * hour
	)
	switch {
	case diff < minute:
		return fmt.Sprintf("%ds ago", diff)
	case diff < hour:
		return fmt.Sprintf("%dm ago", diff/minute)
	case diff < day:
		return fmt.Sprintf("%dh ago", diff/hour)
	default:
		return fmt.Sprintf("%dd ago", diff/day)
	}
}
