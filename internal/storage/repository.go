package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"swapwatch/internal/trade"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertTradeSQL = `INSERT INTO trades (
        signature,
        account,
        token_in_address,
        token_in_amount,
        token_out_address,
        token_out_amount,
        ts,
        description
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (signature) DO NOTHING;`

	tradeColumns = `signature,
        account,
        token_in_address,
        token_in_amount::text,
        token_out_address,
        token_out_amount::text,
        ts,
        description`

	listTradesByTokenSQL = `SELECT ` + tradeColumns + `
    FROM trades
    WHERE token_in_address = $1
       OR token_out_address = $1
    ORDER BY ts ASC, created_at ASC, signature ASC;`

	listRecentTradesSQL = `SELECT ` + tradeColumns + `
    FROM trades
    ORDER BY ts DESC, created_at DESC
    LIMIT $1;`

	getTradeSQL = `SELECT ` + tradeColumns + `
    FROM trades
    WHERE signature = $1;`

	countTradesSQL = `SELECT COUNT(*) FROM trades;`

	walletNamesSQL = `SELECT address, name FROM wallets WHERE address = ANY($1);`

	upsertWalletSQL = `INSERT INTO wallets (address, name)
    VALUES ($1, $2)
    ON CONFLICT (address) DO UPDATE
    SET name = EXCLUDED.name;`

	listWalletsSQL = `SELECT address, name, created_at FROM wallets ORDER BY created_at, address;`

	insertAlertSQL = `INSERT INTO alerts (
        token_address,
        symbol,
        signature,
        message_id,
        wallet_count,
        market_cap_usd
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id, token_address, symbol, signature, message_id, wallet_count, market_cap_usd::text, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        token_address,
        symbol,
        signature,
        message_id,
        wallet_count,
        market_cap_usd::text,
        created_at
    FROM alerts
    ORDER BY created_at DESC, id DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`
)

// TradeStore persists canonical trades.
type TradeStore interface {
	InsertTrade(ctx context.Context, t trade.Trade) (bool, error)
	ListTradesByToken(ctx context.Context, token string) ([]trade.Trade, error)
	ListRecentTrades(ctx context.Context, limit int) ([]trade.Trade, error)
	GetTrade(ctx context.Context, signature string) (trade.Trade, bool, error)
	CountTrades(ctx context.Context) (int64, error)
}

// WalletStore is the tracked wallet directory.
type WalletStore interface {
	WalletNames(ctx context.Context, addresses []string) (map[string]string, error)
	UpsertWallet(ctx context.Context, wallet Wallet) error
	ListWallets(ctx context.Context) ([]Wallet, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// Repository aggregates every persistence concern.
type Repository interface {
	TradeStore
	WalletStore
	AlertStore
}

// Store is the PostgreSQL Repository.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertTrade stores t unless its signature is already present. It reports
// whether a row was written.
func (s *Store) InsertTrade(ctx context.Context, t trade.Trade) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	if err := t.Validate(); err != nil {
		return false, err
	}

	var description interface{}
	if t.Description != nil {
		description = *t.Description
	}

	cmdTag, execErr := pool.Exec(ctx, insertTradeSQL,
		t.Signature,
		t.Account,
		t.TokenInAddress,
		t.TokenInAmount.String(),
		t.TokenOutAddress,
		t.TokenOutAmount.String(),
		t.Timestamp,
		description,
	)
	if execErr != nil {
		return false, fmt.Errorf("insert trade: %w", execErr)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// ListTradesByToken lists trades touching token on either leg, oldest first.
func (s *Store) ListTradesByToken(ctx context.Context, token string) ([]trade.Trade, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listTradesByTokenSQL, token)
	if queryErr != nil {
		return nil, fmt.Errorf("list trades by token: %w", queryErr)
	}
	return collectTrades(rows)
}

// ListRecentTrades lists the most recent trades, newest first.
func (s *Store) ListRecentTrades(ctx context.Context, limit int) ([]trade.Trade, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentTradesSQL, normalizeLimit(limit))
	if queryErr != nil {
		return nil, fmt.Errorf("list recent trades: %w", queryErr)
	}
	return collectTrades(rows)
}

// GetTrade loads one trade by signature.
func (s *Store) GetTrade(ctx context.Context, signature string) (trade.Trade, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return trade.Trade{}, false, err
	}

	rows, queryErr := pool.Query(ctx, getTradeSQL, signature)
	if queryErr != nil {
		return trade.Trade{}, false, fmt.Errorf("get trade: %w", queryErr)
	}
	trades, err := collectTrades(rows)
	if err != nil {
		return trade.Trade{}, false, err
	}
	if len(trades) == 0 {
		return trade.Trade{}, false, nil
	}
	return trades[0], true, nil
}

// CountTrades counts stored trades.
func (s *Store) CountTrades(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countTradesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count trades: %w", scanErr)
	}
	return count, nil
}

// WalletNames resolves names for the given addresses. Unknown addresses are
// absent from the result.
func (s *Store) WalletNames(ctx context.Context, addresses []string) (map[string]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(addresses))
	if len(addresses) == 0 {
		return names, nil
	}

	rows, queryErr := pool.Query(ctx, walletNamesSQL, addresses)
	if queryErr != nil {
		return nil, fmt.Errorf("wallet names: %w", queryErr)
	}
	defer rows.Close()

	for rows.Next() {
		var address, name string
		if err := rows.Scan(&address, &name); err != nil {
			return nil, err
		}
		names[address] = name
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return names, nil
}

// UpsertWallet adds a wallet or renames an existing one.
func (s *Store) UpsertWallet(ctx context.Context, wallet Wallet) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if wallet.Address == "" {
		return errors.New("wallet address is required")
	}
	if _, execErr := pool.Exec(ctx, upsertWalletSQL, wallet.Address, wallet.Name); execErr != nil {
		return fmt.Errorf("upsert wallet: %w", execErr)
	}
	return nil
}

// ListWallets lists the wallet directory in insertion order.
func (s *Store) ListWallets(ctx context.Context) ([]Wallet, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listWalletsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list wallets: %w", queryErr)
	}
	defer rows.Close()

	wallets := make([]Wallet, 0)
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(&w.Address, &w.Name, &w.CreatedAt); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return wallets, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	var messageID interface{}
	if alert.MessageID != nil {
		messageID = *alert.MessageID
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.TokenAddress,
		alert.Symbol,
		alert.Signature,
		messageID,
		alert.WalletCount,
		alert.MarketCapUSD.String(),
	)

	rec, scanErr := scanAlert(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	limit = normalizeLimit(limit)
	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts and reports how many were removed.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete alerts before: %w", execErr)
	}
	return cmdTag.RowsAffected(), nil
}

// DefaultListLimit applies when a listing is requested with a non-positive limit.
const DefaultListLimit = 20

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func collectTrades(rows pgx.Rows) ([]trade.Trade, error) {
	defer rows.Close()

	trades := make([]trade.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return trades, nil
}

func scanTrade(rows pgx.Rows) (trade.Trade, error) {
	var (
		t           trade.Trade
		inStr       string
		outStr      string
		description sql.NullString
	)

	if err := rows.Scan(
		&t.Signature,
		&t.Account,
		&t.TokenInAddress,
		&inStr,
		&t.TokenOutAddress,
		&outStr,
		&t.Timestamp,
		&description,
	); err != nil {
		return trade.Trade{}, err
	}

	var err error
	t.TokenInAmount, err = decimal.NewFromString(inStr)
	if err != nil {
		return trade.Trade{}, fmt.Errorf("parse token_in_amount: %w", err)
	}
	t.TokenOutAmount, err = decimal.NewFromString(outStr)
	if err != nil {
		return trade.Trade{}, fmt.Errorf("parse token_out_amount: %w", err)
	}
	if description.Valid {
		desc := description.String
		t.Description = &desc
	}
	return t, nil
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var (
		rec       AlertRecord
		messageID sql.NullInt64
		mcStr     string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.TokenAddress,
		&rec.Symbol,
		&rec.Signature,
		&messageID,
		&rec.WalletCount,
		&mcStr,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	mc, err := decimal.NewFromString(mcStr)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("parse market cap: %w", err)
	}
	rec.MarketCapUSD = mc
	if messageID.Valid {
		value := messageID.Int64
		rec.MessageID = &value
	}
	return rec, nil
}

var _ Repository = (*Store)(nil)
