package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pairPayload = `[{
  "chainId": "solana",
  "dexId": "raydium",
  "url": "https://dexscreener.com/solana/pair1",
  "pairAddress": "pair1",
  "baseToken": {"address": "Tok111", "name": "Test <Token>", "symbol": "TST"},
  "quoteToken": {"address": "So11111111111111111111111111111111111111112", "name": "Wrapped SOL", "symbol": "SOL"},
  "priceNative": "0.0000012",
  "priceUsd": "0.000185",
  "volume": {"m5": 10, "h1": 1200.5, "h6": 5400, "h24": 98000},
  "priceChange": {"h1": -2.5, "h6": 12.3, "h24": 140},
  "liquidity": {"usd": 45000.75, "base": 1, "quote": 2},
  "fdv": 185000,
  "marketCap": 185000,
  "pairCreatedAt": 1718000000000,
  "info": {
    "websites": [{"label": "Website", "url": "https://tst.example"}],
    "socials": [{"type": "telegram", "url": "https://t.me/tst"}, {"type": "twitter", "url": "https://x.com/tst"}]
  }
}, {
  "chainId": "solana", "pairAddress": "pair2",
  "baseToken": {"address": "Tok111", "name": "ignored", "symbol": "IGN"}
}]`

func TestDexScreenerLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/v1/solana/Tok111", r.URL.Path)
		_, _ = w.Write([]byte(pairPayload))
	}))
	defer srv.Close()

	ds := NewDexScreener(testHTTPClient(), DexScreenerOptions{BaseURL: srv.URL}, noopLogger())
	snap, err := ds.Lookup(context.Background(), "solana", "Tok111")
	require.NoError(t, err)

	assert.Equal(t, "Test <Token>", snap.Name)
	assert.Equal(t, "TST", snap.Symbol)
	assert.Equal(t, "pair1", snap.PairAddress)
	assert.True(t, snap.PriceUSD.Equal(decimal.RequireFromString("0.000185")))
	assert.True(t, snap.LiquidityUSD.Equal(decimal.RequireFromString("45000.75")))
	assert.True(t, snap.MarketCapUSD.Equal(decimal.NewFromInt(185000)))
	assert.True(t, snap.VolumeH1.Equal(decimal.RequireFromString("1200.5")))
	assert.True(t, snap.ChangeH6.Equal(decimal.RequireFromString("12.3")))
	assert.Equal(t, time.Unix(1718000000, 0).UTC(), snap.CreatedAt)
	assert.Equal(t, "https://tst.example", snap.Website)
	assert.Equal(t, "https://x.com/tst", snap.Twitter)
}

func TestDexScreenerEmptyListIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ds := NewDexScreener(testHTTPClient(), DexScreenerOptions{BaseURL: srv.URL}, noopLogger())
	_, err := ds.Lookup(context.Background(), "solana", "Missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDexScreenerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ds := NewDexScreener(testHTTPClient(), DexScreenerOptions{BaseURL: srv.URL}, noopLogger())
	_, err := ds.Lookup(context.Background(), "solana", "Tok111")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSnapshotAge(t *testing.T) {
	now := time.Unix(1_718_003_600, 0)
	assert.Equal(t, time.Duration(0), TokenSnapshot{}.Age(now))
	assert.Equal(t, time.Hour, TokenSnapshot{CreatedAt: time.Unix(1_718_000_000, 0)}.Age(now))
	assert.Equal(t, time.Duration(0), TokenSnapshot{CreatedAt: now.Add(time.Minute)}.Age(now))
}
