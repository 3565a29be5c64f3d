package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"swapwatch/internal/trade"
)

// ErrNotFound is returned when a provider has no data for a token.
var ErrNotFound = errors.New("token not found")

// PriceOracle prices one unit of an asset in USD.
type PriceOracle interface {
	SpotPriceUSD(ctx context.Context, asset string) (decimal.Decimal, error)
}

// MarketSnapshotProvider returns the market view of a token's main pair.
type MarketSnapshotProvider interface {
	Lookup(ctx context.Context, chain, token string) (*TokenSnapshot, error)
}

// SupplyProvider reports the circulating supply of a mint, decimal scaled.
type SupplyProvider interface {
	TotalSupply(ctx context.Context, token string) (decimal.Decimal, error)
}

// TxParser turns a transaction signature into a canonical trade using an
// external parsing service.
type TxParser interface {
	ParseTrade(ctx context.Context, signature string) (trade.Trade, error)
}

// TokenSnapshot is the market data used to qualify and render an alert.
type TokenSnapshot struct {
	Name         string
	Symbol       string
	Address      string
	Chain        string
	DexID        string
	PairAddress  string
	URL          string
	ImageURL     string
	PriceUSD     decimal.Decimal
	PriceNative  decimal.Decimal
	LiquidityUSD decimal.Decimal
	MarketCapUSD decimal.Decimal
	FDV          decimal.Decimal
	VolumeH24    decimal.Decimal
	VolumeH6     decimal.Decimal
	VolumeH1     decimal.Decimal
	VolumeM5     decimal.Decimal
	ChangeH1     decimal.Decimal
	ChangeH6     decimal.Decimal
	ChangeH24    decimal.Decimal
	CreatedAt    time.Time
	Website      string
	Twitter      string
}

// Age returns how long the pair has existed, or zero when unknown.
func (s TokenSnapshot) Age(now time.Time) time.Duration {
	if s.CreatedAt.IsZero() {
		return 0
	}
	age := now.Sub(s.CreatedAt)
	if age < 0 {
		return 0
	}
	return age
}
