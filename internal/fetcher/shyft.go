package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"swapwatch/internal/httpx"
	"swapwatch/internal/trade"
)

// ShyftOptions parameterise the Shyft transaction parser.
type ShyftOptions struct {
	BaseURL string
	APIKey  string
	Network string
}

// Shyft resolves swaps through the Shyft parsed-transaction endpoint.
type Shyft struct {
	http   *httpx.Client
	opts   ShyftOptions
	logger zerolog.Logger
}

// NewShyft constructs a Shyft parser.
func NewShyft(client *httpx.Client, opts ShyftOptions, logger zerolog.Logger) *Shyft {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.shyft.to/sol/v1"
	}
	if opts.Network == "" {
		opts.Network = "mainnet-beta"
	}
	return &Shyft{
		http:   client,
		opts:   opts,
		logger: logger.With().Str("component", "shyft_parser").Logger(),
	}
}

// ParseTrade fetches the parsed transaction and builds a trade from its first
// swap action.
func (s *Shyft) ParseTrade(ctx context.Context, signature string) (trade.Trade, error) {
	query := url.Values{}
	query.Set("network", s.opts.Network)
	query.Set("txn_signature", signature)
	endpoint := s.opts.BaseURL + "/transaction/parsed?" + query.Encode()

	var resp shyftResponse
	if err := s.http.GetJSON(ctx, endpoint, map[string]string{"x-api-key": s.opts.APIKey}, &resp); err != nil {
		s.logger.Warn().Err(err).Str("signature", signature).Msg("parse request failed")
		return trade.Trade{}, fmt.Errorf("%w: %w", trade.ErrParseUnavailable, err)
	}
	if !resp.Success || resp.Result == nil {
		return trade.Trade{}, fmt.Errorf("%w: %s", trade.ErrParseUnavailable, strings.TrimSpace(resp.Message))
	}

	executedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(resp.Result.Timestamp))
	if err != nil {
		return trade.Trade{}, fmt.Errorf("%w: timestamp %q: %w", trade.ErrParseUnavailable, resp.Result.Timestamp, err)
	}

	for _, action := range resp.Result.Actions {
		swapped := action.Info.TokensSwapped
		if swapped == nil {
			continue
		}

		out := trade.Trade{
			Account:         action.Info.Swapper,
			TokenInAddress:  swapped.In.TokenAddress,
			TokenInAmount:   swapped.In.Amount,
			TokenOutAddress: swapped.Out.TokenAddress,
			TokenOutAmount:  swapped.Out.Amount,
			Timestamp:       executedAt.Unix(),
			Signature:       signature,
		}
		if err := out.Validate(); err != nil {
			return trade.Trade{}, fmt.Errorf("signature %s: %w", signature, err)
		}
		return out, nil
	}
	return trade.Trade{}, fmt.Errorf("%w: %s", trade.ErrNoSwapAction, signature)
}

type shyftResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Result  *shyftResult `json:"result"`
}

type shyftResult struct {
	Timestamp  string        `json:"timestamp"`
	FeePayer   string        `json:"fee_payer"`
	Signatures []string      `json:"signatures"`
	Type       string        `json:"type"`
	Status     string        `json:"status"`
	Actions    []shyftAction `json:"actions"`
}

type shyftAction struct {
	Type string `json:"type"`
	Info struct {
		Swapper       string              `json:"swapper"`
		TokensSwapped *shyftTokensSwapped `json:"tokens_swapped"`
	} `json:"info"`
}

type shyftTokensSwapped struct {
	In  shyftLeg `json:"in"`
	Out shyftLeg `json:"out"`
}

type shyftLeg struct {
	TokenAddress string          `json:"token_address"`
	Symbol       string          `json:"symbol"`
	Amount       decimal.Decimal `json:"amount"`
}

var _ TxParser = (*Shyft)(nil)
