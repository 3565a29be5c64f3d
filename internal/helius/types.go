package helius

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"

	"swapwatch/internal/classifier"
)

// Amount keeps the literal text of a JSON string or number so large integers
// never pass through float64.
type Amount string

// UnmarshalJSON accepts "123", 123 and null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// EnhancedTransaction is one element of an enhanced webhook payload.
type EnhancedTransaction struct {
	Description      string           `json:"description"`
	Type             string           `json:"type"`
	Source           string           `json:"source"`
	Fee              int64            `json:"fee"`
	FeePayer         string           `json:"feePayer"`
	Signature        string           `json:"signature"`
	Slot             int64            `json:"slot"`
	Timestamp        int64            `json:"timestamp"`
	NativeTransfers  []NativeTransfer `json:"nativeTransfers"`
	TokenTransfers   []TokenTransfer  `json:"tokenTransfers"`
	AccountData      []AccountData    `json:"accountData"`
	TransactionError json.RawMessage  `json:"transactionError,omitempty"`
	Events           Events           `json:"events"`
}

// NativeTransfer is a SOL movement between accounts, in lamports.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          Amount `json:"amount"`
}

// TokenTransfer is an SPL movement, already scaled by the provider.
type TokenTransfer struct {
	FromUserAccount  string          `json:"fromUserAccount"`
	ToUserAccount    string          `json:"toUserAccount"`
	FromTokenAccount string          `json:"fromTokenAccount"`
	ToTokenAccount   string          `json:"toTokenAccount"`
	TokenAmount      decimal.Decimal `json:"tokenAmount"`
	Mint             string          `json:"mint"`
	TokenStandard    string          `json:"tokenStandard"`
}

// AccountData lists balance changes for one touched account.
type AccountData struct {
	Account             string               `json:"account"`
	NativeBalanceChange int64                `json:"nativeBalanceChange"`
	TokenBalanceChanges []TokenBalanceChange `json:"tokenBalanceChanges"`
}

// TokenBalanceChange is a raw SPL balance delta.
type TokenBalanceChange struct {
	UserAccount    string         `json:"userAccount"`
	TokenAccount   string         `json:"tokenAccount"`
	Mint           string         `json:"mint"`
	RawTokenAmount RawTokenAmount `json:"rawTokenAmount"`
}

// RawTokenAmount is an unscaled integer amount with its decimal exponent.
type RawTokenAmount struct {
	TokenAmount Amount `json:"tokenAmount"`
	Decimals    int32  `json:"decimals"`
}

// Events carries the structured sub-events Helius recognised.
type Events struct {
	Swap *SwapEvent `json:"swap,omitempty"`
}

// SwapEvent is the structured swap sub-event.
type SwapEvent struct {
	NativeInput  *NativeAmount  `json:"nativeInput"`
	NativeOutput *NativeAmount  `json:"nativeOutput"`
	TokenInputs  []SwapToken    `json:"tokenInputs"`
	TokenOutputs []SwapToken    `json:"tokenOutputs"`
	TokenFees    []SwapToken    `json:"tokenFees"`
	NativeFees   []NativeAmount `json:"nativeFees"`
	InnerSwaps   []InnerSwap    `json:"innerSwaps"`
}

// NativeAmount is a lamport amount tied to an account.
type NativeAmount struct {
	Account string `json:"account"`
	Amount  Amount `json:"amount"`
}

// SwapToken is one token leg of a swap event.
type SwapToken struct {
	UserAccount    string         `json:"userAccount"`
	TokenAccount   string         `json:"tokenAccount"`
	Mint           string         `json:"mint"`
	RawTokenAmount RawTokenAmount `json:"rawTokenAmount"`
}

// InnerSwap is one hop of a routed swap.
type InnerSwap struct {
	TokenInputs  []TokenTransfer  `json:"tokenInputs"`
	TokenOutputs []TokenTransfer  `json:"tokenOutputs"`
	TokenFees    []TokenTransfer  `json:"tokenFees"`
	NativeFees   []NativeTransfer `json:"nativeFees"`
	ProgramInfo  *ProgramInfo     `json:"programInfo"`
}

// ProgramInfo identifies the program used by an inner swap.
type ProgramInfo struct {
	Source          string `json:"source"`
	Account         string `json:"account"`
	ProgramName     string `json:"programName"`
	InstructionName string `json:"instructionName"`
}

// TouchedAccounts returns the accounts listed in accountData, in payload order.
func (tx EnhancedTransaction) TouchedAccounts() []string {
	accounts := make([]string, 0, len(tx.AccountData))
	for _, acc := range tx.AccountData {
		accounts = append(accounts, acc.Account)
	}
	return accounts
}

// Meta returns the fields the classifier inspects.
func (tx EnhancedTransaction) Meta() classifier.Meta {
	return classifier.Meta{
		Source:   tx.Source,
		Type:     tx.Type,
		Accounts: tx.TouchedAccounts(),
	}
}

// HasSwapEvent reports whether the structured swap sub-event is present.
func (tx EnhancedTransaction) HasSwapEvent() bool {
	return tx.Events.Swap != nil
}
