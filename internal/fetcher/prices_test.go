package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMarket struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	err    error
	calls  map[string]int
}

func newStubMarket() *stubMarket {
	return &stubMarket{prices: map[string]decimal.Decimal{}, calls: map[string]int{}}
}

func (s *stubMarket) Lookup(_ context.Context, _ string, token string) (*TokenSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[token]++
	if s.err != nil {
		return nil, s.err
	}
	price, ok := s.prices[token]
	if !ok {
		return nil, ErrNotFound
	}
	return &TokenSnapshot{Address: token, PriceUSD: price}, nil
}

func TestPricesStableAndToken(t *testing.T) {
	market := newStubMarket()
	market.prices["Tok"] = decimal.RequireFromString("0.25")
	prices := NewPrices(market, PricesOptions{}, noopLogger())

	price, err := prices.SpotPriceUSD(context.Background(), USDCMint)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(1)))
	assert.Zero(t, market.calls[USDCMint], "stables never hit the market")

	price, err = prices.SpotPriceUSD(context.Background(), "Tok")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("0.25")))

	_, err = prices.SpotPriceUSD(context.Background(), "Unknown")
	require.ErrorIs(t, err, ErrNotFound)

	assert.True(t, prices.IsQuote(NativeMint))
	assert.True(t, prices.IsQuote(USDCMint))
	assert.False(t, prices.IsQuote("Tok"))
}

func TestNativePriceCacheServesStale(t *testing.T) {
	market := newStubMarket()
	market.prices[NativeMint] = decimal.NewFromInt(150)

	now := time.Unix(1_700_000_000, 0)
	prices := NewPrices(market, PricesOptions{
		NativeTTL: 10 * time.Minute,
		Now:       func() time.Time { return now },
	}, noopLogger())
	ctx := context.Background()

	price, err := prices.SpotPriceUSD(ctx, NativeMint)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(150)))

	market.prices[NativeMint] = decimal.NewFromInt(160)
	now = now.Add(5 * time.Minute)
	price, err = prices.SpotPriceUSD(ctx, NativeMint)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(150)), "within ttl the cached price is served")
	assert.Equal(t, 1, market.calls[NativeMint])

	market.err = errors.New("upstream down")
	now = now.Add(10 * time.Minute)
	price, err = prices.SpotPriceUSD(ctx, NativeMint)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(150)), "stale value on failure")

	market.err = nil
	price, err = prices.SpotPriceUSD(ctx, NativeMint)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(160)))
}

func TestNativePriceFailsWithoutCache(t *testing.T) {
	market := newStubMarket()
	market.err = errors.New("upstream down")
	prices := NewPrices(market, PricesOptions{}, noopLogger())

	_, err := prices.NativePrice(context.Background())
	require.Error(t, err)
}

func TestRefreshWarmsCache(t *testing.T) {
	market := newStubMarket()
	market.prices[NativeMint] = decimal.NewFromInt(140)
	prices := NewPrices(market, PricesOptions{}, noopLogger())

	require.NoError(t, prices.Refresh(context.Background()))
	price, err := prices.NativePrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(140)))
	assert.Equal(t, 1, market.calls[NativeMint])
}
