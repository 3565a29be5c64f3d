package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"swapwatch/internal/trade"
)

// MemoryStore is an in-process Repository used when no database is
// configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	trades  []trade.Trade
	bySig   map[string]int
	wallets []Wallet
	alerts  []AlertRecord
	nextID  int64
	now     func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySig: make(map[string]int),
		now:   time.Now,
	}
}

// InsertTrade stores t unless its signature is already present.
func (m *MemoryStore) InsertTrade(_ context.Context, t trade.Trade) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bySig[t.Signature]; ok {
		return false, nil
	}
	m.bySig[t.Signature] = len(m.trades)
	m.trades = append(m.trades, t)
	return true, nil
}

// ListTradesByToken lists trades touching token, oldest first. Ties keep
// insertion order.
func (m *MemoryStore) ListTradesByToken(_ context.Context, token string) ([]trade.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]trade.Trade, 0)
	for _, t := range m.trades {
		if t.TokenInAddress == token || t.TokenOutAddress == token {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// ListRecentTrades lists the newest trades first.
func (m *MemoryStore) ListRecentTrades(_ context.Context, limit int) ([]trade.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]trade.Trade, len(m.trades))
	for i := range m.trades {
		out[i] = m.trades[len(m.trades)-1-i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetTrade loads one trade by signature.
func (m *MemoryStore) GetTrade(_ context.Context, signature string) (trade.Trade, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.bySig[signature]
	if !ok {
		return trade.Trade{}, false, nil
	}
	return m.trades[idx], true, nil
}

// CountTrades counts stored trades.
func (m *MemoryStore) CountTrades(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.trades)), nil
}

// WalletNames resolves names for the given addresses.
func (m *MemoryStore) WalletNames(_ context.Context, addresses []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		wanted[addr] = struct{}{}
	}
	names := make(map[string]string, len(addresses))
	for _, w := range m.wallets {
		if _, ok := wanted[w.Address]; ok {
			names[w.Address] = w.Name
		}
	}
	return names, nil
}

// UpsertWallet adds a wallet or renames an existing one.
func (m *MemoryStore) UpsertWallet(_ context.Context, wallet Wallet) error {
	if wallet.Address == "" {
		return errors.New("wallet address is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.wallets {
		if m.wallets[i].Address == wallet.Address {
			m.wallets[i].Name = wallet.Name
			return nil
		}
	}
	wallet.CreatedAt = m.now()
	m.wallets = append(m.wallets, wallet)
	return nil
}

// ListWallets lists the wallet directory in insertion order.
func (m *MemoryStore) ListWallets(_ context.Context) ([]Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Wallet(nil), m.wallets...), nil
}

// InsertAlert records an alert and assigns its id.
func (m *MemoryStore) InsertAlert(_ context.Context, alert AlertRecord) (AlertRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	alert.ID = m.nextID
	alert.CreatedAt = m.now()
	m.alerts = append(m.alerts, alert)
	return alert, nil
}

// ListRecentAlerts lists the newest alerts first.
func (m *MemoryStore) ListRecentAlerts(_ context.Context, limit int) ([]AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = normalizeLimit(limit)
	out := make([]AlertRecord, 0, min(limit, len(m.alerts)))
	for i := len(m.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.alerts[i])
	}
	return out, nil
}

// DeleteAlertsBefore deletes alerts created before olderThan.
func (m *MemoryStore) DeleteAlertsBefore(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.alerts[:0]
	var removed int64
	for _, a := range m.alerts {
		if a.CreatedAt.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	m.alerts = kept
	return removed, nil
}

var _ Repository = (*MemoryStore)(nil)
