package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	NativeMint = "So11111111111111111111111111111111111111112"
	USDCMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMint   = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// PricesOptions configure the price oracle.
type PricesOptions struct {
	Chain       string
	NativeMint  string
	StableMints []string
	NativeTTL   time.Duration
	Now         func() time.Time
}

// Prices resolves USD prices: stables are pegged at 1, the native asset is
// cached, and everything else is read from the market snapshot.
type Prices struct {
	market MarketSnapshotProvider
	opts   PricesOptions
	stable map[string]struct{}
	logger zerolog.Logger

	mu          sync.Mutex
	nativePrice decimal.Decimal
	nativeAt    time.Time
}

// NewPrices constructs a price oracle over a snapshot provider.
func NewPrices(market MarketSnapshotProvider, opts PricesOptions, logger zerolog.Logger) *Prices {
	if opts.Chain == "" {
		opts.Chain = "solana"
	}
	if opts.NativeMint == "" {
		opts.NativeMint = NativeMint
	}
	if opts.StableMints == nil {
		opts.StableMints = []string{USDCMint}
	}
	if opts.NativeTTL <= 0 {
		opts.NativeTTL = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	stable := make(map[string]struct{}, len(opts.StableMints))
	for _, mint := range opts.StableMints {
		stable[mint] = struct{}{}
	}

	return &Prices{
		market: market,
		opts:   opts,
		stable: stable,
		logger: logger.With().Str("component", "price_oracle").Logger(),
	}
}

// SpotPriceUSD returns the USD price of one unit of asset.
func (p *Prices) SpotPriceUSD(ctx context.Context, asset string) (decimal.Decimal, error) {
	if p.IsStable(asset) {
		return decimal.NewFromInt(1), nil
	}
	if asset == p.opts.NativeMint {
		return p.NativePrice(ctx)
	}

	snapshot, err := p.market.Lookup(ctx, p.opts.Chain, asset)
	if err != nil {
		return decimal.Zero, err
	}
	return snapshot.PriceUSD, nil
}

// IsStable reports whether asset is pegged to USD.
func (p *Prices) IsStable(asset string) bool {
	_, ok := p.stable[asset]
	return ok
}

// IsQuote reports whether asset is the native mint or a stable.
func (p *Prices) IsQuote(asset string) bool {
	return asset == p.opts.NativeMint || p.IsStable(asset)
}

// NativePrice returns the cached native price, refreshing it once the TTL
// elapses. A failed refresh serves the stale value when one exists.
func (p *Prices) NativePrice(ctx context.Context) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.opts.Now()
	if !p.nativeAt.IsZero() && now.Sub(p.nativeAt) < p.opts.NativeTTL {
		return p.nativePrice, nil
	}

	price, err := p.fetchNative(ctx)
	if err != nil {
		if !p.nativeAt.IsZero() {
			p.logger.Warn().Err(err).Str("stale_price", p.nativePrice.String()).Msg("native price refresh failed, serving cached value")
			return p.nativePrice, nil
		}
		return decimal.Zero, err
	}

	p.nativePrice = price
	p.nativeAt = now
	return price, nil
}

// Refresh fetches the native price and resets the cache window. On failure
// the cached value is left untouched.
func (p *Prices) Refresh(ctx context.Context) error {
	price, err := p.fetchNative(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.nativePrice = price
	p.nativeAt = p.opts.Now()
	p.mu.Unlock()
	return nil
}

func (p *Prices) fetchNative(ctx context.Context) (decimal.Decimal, error) {
	snapshot, err := p.market.Lookup(ctx, p.opts.Chain, p.opts.NativeMint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("native price: %w", err)
	}
	if !snapshot.PriceUSD.IsPositive() {
		return decimal.Zero, errors.New("native price: non-positive price")
	}
	return snapshot.PriceUSD, nil
}

var _ PriceOracle = (*Prices)(nil)
