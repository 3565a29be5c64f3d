package trade

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrIncompleteSwapData indicates an extraction produced a partial trade.
	ErrIncompleteSwapData = errors.New("incomplete swap data")
	// ErrParseUnavailable indicates the external parser returned nothing usable.
	ErrParseUnavailable = errors.New("transaction parse unavailable")
	// ErrNoSwapAction indicates a parsed transaction carries no swap action.
	ErrNoSwapAction = errors.New("no swap action in transaction")
)

// Side classifies a trade relative to one token.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
	SideNone Side = "none"
)

// Trade is the canonical record of one asset-for-asset exchange by one wallet.
type Trade struct {
	Account         string
	TokenInAddress  string
	TokenInAmount   decimal.Decimal
	TokenOutAddress string
	TokenOutAmount  decimal.Decimal
	Timestamp       int64
	Description     *string
	Signature       string
}

// Validate rejects trades with any empty or zero leg.
func (t Trade) Validate() error {
	var missing []string
	if t.Account == "" {
		missing = append(missing, "account")
	}
	if t.TokenInAddress == "" {
		missing = append(missing, "token_in_address")
	}
	if !t.TokenInAmount.IsPositive() {
		missing = append(missing, "token_in_amount")
	}
	if t.TokenOutAddress == "" {
		missing = append(missing, "token_out_address")
	}
	if !t.TokenOutAmount.IsPositive() {
		missing = append(missing, "token_out_amount")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteSwapData, strings.Join(missing, ", "))
	}
	return nil
}

// Side reports whether the trade bought or sold token.
func (t Trade) Side(token string) Side {
	switch token {
	case t.TokenOutAddress:
		return SideBuy
	case t.TokenInAddress:
		return SideSell
	default:
		return SideNone
	}
}

// DescriptionOrEmpty dereferences the nullable description.
func (t Trade) DescriptionOrEmpty() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}
