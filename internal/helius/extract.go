package helius

import (
	"errors"
	"fmt"

	"github.com/AlekSi/pointer"
	"github.com/shopspring/decimal"

	"swapwatch/internal/trade"
)

var errNoSwapEvent = errors.New("transaction has no swap event")

// ExtractSwap builds a canonical trade from the structured swap sub-event.
// Only the first input leg and the first output leg are considered.
func ExtractSwap(tx EnhancedTransaction, nativeMint string) (trade.Trade, error) {
	swap := tx.Events.Swap
	if swap == nil {
		return trade.Trade{}, fmt.Errorf("%w: %w", trade.ErrIncompleteSwapData, errNoSwapEvent)
	}

	out := trade.Trade{
		Timestamp: tx.Timestamp,
		Signature: tx.Signature,
	}

	if amount, ok := nativeLeg(swap.NativeInput); ok {
		out.Account = tx.FeePayer
		out.TokenInAddress = nativeMint
		out.TokenInAmount = amount
	} else if len(swap.TokenInputs) > 0 {
		leg := swap.TokenInputs[0]
		out.Account = tx.FeePayer
		out.TokenInAddress = leg.Mint
		out.TokenInAmount = trade.NormalizeAmount(string(leg.RawTokenAmount.TokenAmount), leg.RawTokenAmount.Decimals)
	}

	if amount, ok := nativeLeg(swap.NativeOutput); ok {
		out.TokenOutAddress = nativeMint
		out.TokenOutAmount = amount
	} else if len(swap.TokenOutputs) > 0 {
		leg := swap.TokenOutputs[0]
		out.TokenOutAddress = leg.Mint
		out.TokenOutAmount = trade.NormalizeAmount(string(leg.RawTokenAmount.TokenAmount), leg.RawTokenAmount.Decimals)
	}

	if tx.Description != "" {
		out.Description = pointer.ToString(tx.Description)
	}

	if err := out.Validate(); err != nil {
		return trade.Trade{}, fmt.Errorf("signature %s: %w", tx.Signature, err)
	}
	return out, nil
}

// nativeLeg returns the SOL-scaled amount when the leg is present and non-zero.
func nativeLeg(leg *NativeAmount) (decimal.Decimal, bool) {
	if leg == nil || leg.Amount == "" {
		return decimal.Zero, false
	}
	amount := trade.NormalizeAmount(string(leg.Amount), trade.NativeDecimals)
	if amount.IsZero() {
		return decimal.Zero, false
	}
	return amount, true
}
