package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is an entry of the tracked wallet directory.
type Wallet struct {
	Address   string
	Name      string
	CreatedAt time.Time
}

// AlertRecord captures an emitted alert for auditing.
type AlertRecord struct {
	ID           int64
	TokenAddress string
	Symbol       string
	Signature    string
	MessageID    *int64
	WalletCount  int
	MarketCapUSD decimal.Decimal
	CreatedAt    time.Time
}
