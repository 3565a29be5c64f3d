package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"swapwatch/internal/trade"
)

// SupplyOptions parameterise the RPC supply lookup.
type SupplyOptions struct {
	RPCURL  string
	Timeout time.Duration
	// Retry policy shared with the HTTP client. Timeout applies per attempt.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Supply reads mint supply over Solana JSON-RPC.
type Supply struct {
	client *rpc.Client
	opts   SupplyOptions
	logger zerolog.Logger
}

// NewSupply builds a supply provider. The RPC URL is required.
func NewSupply(opts SupplyOptions, logger zerolog.Logger) (*Supply, error) {
	if strings.TrimSpace(opts.RPCURL) == "" {
		return nil, errors.New("solana rpc url not configured")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 300 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 5 * time.Second
	}
	return &Supply{
		client: rpc.New(opts.RPCURL),
		opts:   opts,
		logger: logger.With().Str("component", "supply_fetcher").Logger(),
	}, nil
}

// TotalSupply returns the decimal scaled supply of the mint.
func (s *Supply) TotalSupply(ctx context.Context, token string) (decimal.Decimal, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.InitialInterval
	policy.MaxInterval = s.opts.MaxInterval
	policy.MaxElapsedTime = 0

	attempt := 0
	var out *rpc.GetTokenSupplyResult
	operation := func() error {
		attempt++
		mint, err := solana.PublicKeyFromBase58(token)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("invalid mint %q: %w", token, err))
		}

		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		res, err := s.client.GetTokenSupply(callCtx, mint, rpc.CommitmentConfirmed)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			s.logger.Debug().Err(err).Int("attempt", attempt).Str("mint", token).Msg("get token supply failed")
			return fmt.Errorf("get token supply %s: %w", token, err)
		}
		out = res
		return nil
	}

	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.opts.MaxRetries)), ctx)
	if err := backoff.Retry(operation, retry); err != nil {
		return decimal.Zero, err
	}
	if out == nil || out.Value == nil {
		return decimal.Zero, fmt.Errorf("%w: supply of %s", ErrNotFound, token)
	}

	if ui := strings.TrimSpace(out.Value.UiAmountString); ui != "" {
		if supply, err := decimal.NewFromString(ui); err == nil {
			return supply, nil
		}
	}
	return trade.NormalizeAmount(out.Value.Amount, int32(out.Value.Decimals)), nil
}

var _ SupplyProvider = (*Supply)(nil)
