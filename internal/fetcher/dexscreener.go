package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"swapwatch/internal/httpx"
)

// DexScreenerOptions parameterise the DexScreener client.
type DexScreenerOptions struct {
	BaseURL           string
	RequestsPerMinute int
}

// DexScreener reads token pairs from the public DexScreener API.
type DexScreener struct {
	http    *httpx.Client
	limiter *rate.Limiter
	baseURL string
	logger  zerolog.Logger
}

// NewDexScreener constructs a DexScreener client.
func NewDexScreener(client *httpx.Client, opts DexScreenerOptions, logger zerolog.Logger) *DexScreener {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.dexscreener.com"
	}
	perMinute := opts.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 300
	}

	return &DexScreener{
		http:    client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), max(1, perMinute/60)),
		baseURL: baseURL,
		logger:  logger.With().Str("component", "dexscreener").Logger(),
	}
}

// Lookup returns the snapshot of the first pair listed for token.
func (d *DexScreener) Lookup(ctx context.Context, chain, token string) (*TokenSnapshot, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token address", ErrNotFound)
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("dexscreener rate limit: %w", err)
	}

	endpoint := fmt.Sprintf("%s/tokens/v1/%s/%s", d.baseURL, url.PathEscape(chain), url.PathEscape(token))
	var pairs []dexPair
	if err := d.http.GetJSON(ctx, endpoint, nil, &pairs); err != nil {
		if httpx.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, token)
		}
		return nil, fmt.Errorf("dexscreener lookup %s: %w", token, err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, token)
	}

	snapshot := pairs[0].snapshot()
	d.logger.Debug().
		Str("token", token).
		Str("symbol", snapshot.Symbol).
		Str("price_usd", snapshot.PriceUSD.String()).
		Msg("snapshot fetched")
	return snapshot, nil
}

type dexPair struct {
	ChainID     string          `json:"chainId"`
	DexID       string          `json:"dexId"`
	URL         string          `json:"url"`
	PairAddress string          `json:"pairAddress"`
	BaseToken   dexToken        `json:"baseToken"`
	QuoteToken  dexToken        `json:"quoteToken"`
	PriceNative decimal.Decimal `json:"priceNative"`
	PriceUSD    decimal.Decimal `json:"priceUsd"`
	Volume      dexWindows      `json:"volume"`
	PriceChange dexWindows      `json:"priceChange"`
	Liquidity   struct {
		USD decimal.Decimal `json:"usd"`
	} `json:"liquidity"`
	FDV           decimal.Decimal `json:"fdv"`
	MarketCap     decimal.Decimal `json:"marketCap"`
	PairCreatedAt int64           `json:"pairCreatedAt"`
	Info          *struct {
		ImageURL string `json:"imageUrl"`
		Websites []struct {
			Label string `json:"label"`
			URL   string `json:"url"`
		} `json:"websites"`
		Socials []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"socials"`
	} `json:"info"`
}

type dexToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type dexWindows struct {
	M5  decimal.Decimal `json:"m5"`
	H1  decimal.Decimal `json:"h1"`
	H6  decimal.Decimal `json:"h6"`
	H24 decimal.Decimal `json:"h24"`
}

func (p dexPair) snapshot() *TokenSnapshot {
	s := &TokenSnapshot{
		Name:         p.BaseToken.Name,
		Symbol:       p.BaseToken.Symbol,
		Address:      p.BaseToken.Address,
		Chain:        p.ChainID,
		DexID:        p.DexID,
		PairAddress:  p.PairAddress,
		URL:          p.URL,
		PriceUSD:     p.PriceUSD,
		PriceNative:  p.PriceNative,
		LiquidityUSD: p.Liquidity.USD,
		MarketCapUSD: p.MarketCap,
		FDV:          p.FDV,
		VolumeH24:    p.Volume.H24,
		VolumeH6:     p.Volume.H6,
		VolumeH1:     p.Volume.H1,
		VolumeM5:     p.Volume.M5,
		ChangeH1:     p.PriceChange.H1,
		ChangeH6:     p.PriceChange.H6,
		ChangeH24:    p.PriceChange.H24,
	}
	if p.PairCreatedAt > 0 {
		s.CreatedAt = time.UnixMilli(p.PairCreatedAt).UTC()
	}
	if p.Info != nil {
		s.ImageURL = p.Info.ImageURL
		if len(p.Info.Websites) > 0 {
			s.Website = p.Info.Websites[0].URL
		}
		for _, social := range p.Info.Socials {
			if social.Type == "twitter" {
				s.Twitter = social.URL
				break
			}
		}
	}
	return s
}

var _ MarketSnapshotProvider = (*DexScreener)(nil)
