package trade

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the lamport exponent of SOL.
const NativeDecimals = 9

// NormalizeAmount scales a raw integer amount down by 10^decimals.
// Unparseable input normalizes to zero so the validation gate rejects it.
func NormalizeAmount(raw string, decimals int32) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	if decimals < 0 {
		decimals = 0
	}
	return amount.Shift(-decimals)
}
