package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapwatch/internal/alerting"
	"swapwatch/internal/analyzer"
	"swapwatch/internal/fetcher"
	"swapwatch/internal/helius"
	"swapwatch/internal/metrics"
	"swapwatch/internal/storage"
	"swapwatch/internal/symbolcache"
	"swapwatch/internal/trade"
)

const (
	tokenMint = "TokenMint111111111111111111111111111111111"
	jupiter   = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
)

var testNow = time.Unix(1_718_000_600, 0)

type fakeMarket struct {
	mu        sync.Mutex
	snapshots map[string]*fetcher.TokenSnapshot
	calls     int
}

func (f *fakeMarket) Lookup(_ context.Context, _ string, token string) (*fetcher.TokenSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	snap, ok := f.snapshots[token]
	if !ok {
		return nil, fetcher.ErrNotFound
	}
	return snap, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []alerting.Message
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, msg alerting.Message) (alerting.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return alerting.SendResult{}, f.err
	}
	f.sent = append(f.sent, msg)
	return alerting.SendResult{OK: true, MessageID: int64(100 + len(f.sent))}, nil
}

type fakeParser struct {
	trade trade.Trade
	err   error
	calls int
}

func (f *fakeParser) ParseTrade(_ context.Context, _ string) (trade.Trade, error) {
	f.calls++
	return f.trade, f.err
}

type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) InsertTrade(context.Context, trade.Trade) (bool, error) {
	return false, errors.New("connection refused")
}

type harness struct {
	svc      *Service
	store    *storage.MemoryStore
	market   *fakeMarket
	notifier *fakeNotifier
	parser   *fakeParser
	metrics  *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := storage.NewMemoryStore()
	market := &fakeMarket{snapshots: map[string]*fetcher.TokenSnapshot{
		fetcher.NativeMint: {Address: fetcher.NativeMint, Symbol: "SOL", PriceUSD: decimal.NewFromInt(150)},
		tokenMint: {
			Name:         "Token",
			Symbol:       "TOK",
			Address:      tokenMint,
			PriceUSD:     decimal.RequireFromString("0.0006"),
			LiquidityUSD: decimal.NewFromInt(80_000),
			MarketCapUSD: decimal.NewFromInt(600_000),
			CreatedAt:    testNow.Add(-2 * time.Hour),
		},
	}}
	now := func() time.Time { return testNow }
	prices := fetcher.NewPrices(market, fetcher.PricesOptions{Now: now}, zerolog.Nop())
	notifier := &fakeNotifier{}
	parser := &fakeParser{}
	m := metrics.NewMetrics(prometheus.NewRegistry())

	svc := New(Deps{
		Parser:   parser,
		Store:    store,
		Market:   market,
		Quotes:   prices,
		Dedup:    symbolcache.NewMemory(symbolcache.DefaultTTL, symbolcache.WithClock(now)),
		Analyzer: analyzer.New(store, prices, nil, store, analyzer.Options{Now: now}, zerolog.Nop()),
		Notifier: notifier,
		Metrics:  m,
	}, Options{
		MinLiquidityUSD: decimal.NewFromInt(10_000),
		MaxMarketCapUSD: decimal.NewFromInt(5_000_000),
		MaxPairAge:      24 * time.Hour,
		Now:             now,
	}, zerolog.Nop())

	return &harness{svc: svc, store: store, market: market, notifier: notifier, parser: parser, metrics: m}
}

func swapTx(signature, wallet string) helius.EnhancedTransaction {
	return helius.EnhancedTransaction{
		Type:        "SWAP",
		Source:      "JUPITER",
		FeePayer:    wallet,
		Signature:   signature,
		Timestamp:   testNow.Add(-time.Minute).Unix(),
		AccountData: []helius.AccountData{{Account: wallet}, {Account: jupiter}},
		Events: helius.Events{Swap: &helius.SwapEvent{
			NativeInput: &helius.NativeAmount{Account: wallet, Amount: "2000000000"},
			TokenOutputs: []helius.SwapToken{{
				UserAccount:    wallet,
				Mint:           tokenMint,
				RawTokenAmount: helius.RawTokenAmount{TokenAmount: "1000000000", Decimals: 6},
			}},
		}},
	}
}

func TestHandleTransactionStoresAndAlerts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.UpsertWallet(ctx, storage.Wallet{Address: "WalletA", Name: "alpha"}))

	out, err := h.svc.HandleTransaction(ctx, swapTx("sig-1", "WalletA"))
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, out.Status)
	require.NotNil(t, out.Trade)
	assert.True(t, out.Trade.TokenInAmount.Equal(decimal.NewFromInt(2)))

	stored, ok, err := h.store.GetTrade(ctx, "sig-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "WalletA", stored.Account)

	require.Len(t, h.notifier.sent, 1)
	assert.Contains(t, h.notifier.sent[0].Text, "TOK")
	assert.Contains(t, h.notifier.sent[0].Text, "alpha")

	alerts, err := h.store.ListRecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "TOK", alerts[0].Symbol)
	assert.Equal(t, "sig-1", alerts[0].Signature)
	require.NotNil(t, alerts[0].MessageID)
	assert.Equal(t, int64(101), *alerts[0].MessageID)
	assert.Equal(t, 1, alerts[0].WalletCount)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TradesStored))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.AlertsSent))
}

func TestHandleTransactionDedupSuppressesSecondAlert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.HandleTransaction(ctx, swapTx("sig-1", "WalletA"))
	require.NoError(t, err)
	out, err := h.svc.HandleTransaction(ctx, swapTx("sig-2", "WalletB"))
	require.NoError(t, err)

	assert.Equal(t, StatusProcessed, out.Status, "the trade is still stored")
	count, err := h.store.CountTrades(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Len(t, h.notifier.sent, 1)
}

func TestHandleTransactionExcludesLaunchPool(t *testing.T) {
	h := newHarness(t)
	tx := swapTx("sig-pump", "WalletA")
	tx.Source = "PUMP_FUN"

	out, err := h.svc.HandleTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Status: StatusSkipped, Reason: "launch_pool_source"}, out)

	count, err := h.store.CountTrades(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TradeOutcomes.WithLabelValues(StatusSkipped, "launch_pool_source")))
}

func TestHandleTransactionIncompleteSwapIsSkipped(t *testing.T) {
	h := newHarness(t)
	tx := swapTx("sig-zero", "WalletA")
	tx.Events.Swap.TokenOutputs[0].RawTokenAmount.TokenAmount = "0"

	out, err := h.svc.HandleTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, out.Status)
	assert.Equal(t, ReasonIncompleteSwapData, out.Reason)

	count, err := h.store.CountTrades(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, h.notifier.sent)
}

func TestHandleTransactionFallsBackToParser(t *testing.T) {
	h := newHarness(t)
	h.parser.trade = trade.Trade{
		Account:         "WalletC",
		TokenInAddress:  tokenMint,
		TokenInAmount:   decimal.NewFromInt(500),
		TokenOutAddress: fetcher.NativeMint,
		TokenOutAmount:  decimal.RequireFromString("0.4"),
		Timestamp:       testNow.Unix(),
		Signature:       "sig-parsed",
	}
	tx := helius.EnhancedTransaction{Type: "SWAP", Source: "RAYDIUM", Signature: "sig-parsed"}

	out, err := h.svc.HandleTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, out.Status)
	assert.Equal(t, 1, h.parser.calls)
	assert.Empty(t, h.notifier.sent, "sells into the native mint never alert")
}

func TestHandleTransactionParserFailures(t *testing.T) {
	cases := map[error]string{
		trade.ErrParseUnavailable: ReasonParseUnavailable,
		trade.ErrNoSwapAction:     ReasonNoSwapAction,
	}
	for perr, reason := range cases {
		h := newHarness(t)
		h.parser.err = perr
		out, err := h.svc.HandleTransaction(context.Background(), helius.EnhancedTransaction{Type: "SWAP", Signature: "sig"})
		require.NoError(t, err)
		assert.Equal(t, reason, out.Reason)
	}
}

func TestHandleTransactionDuplicateSignature(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.HandleTransaction(ctx, swapTx("sig-1", "WalletA"))
	require.NoError(t, err)
	out, err := h.svc.HandleTransaction(ctx, swapTx("sig-1", "WalletA"))
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, out.Status)
	assert.True(t, out.Skipped())
}

func TestHandleTransactionStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.svc.deps.Store = failingStore{MemoryStore: h.store}

	_, err := h.svc.HandleTransaction(context.Background(), swapTx("sig-1", "WalletA"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestHandleTransactionNotifierFailureKeepsTrade(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = alerting.ErrNotificationFailed
	ctx := context.Background()

	out, err := h.svc.HandleTransaction(ctx, swapTx("sig-1", "WalletA"))
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, out.Status)

	count, err := h.store.CountTrades(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	alerts, err := h.store.ListRecentAlerts(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.AlertsFailed))
}

func TestCheckCriteria(t *testing.T) {
	h := newHarness(t)
	base := fetcher.TokenSnapshot{
		LiquidityUSD: decimal.NewFromInt(50_000),
		MarketCapUSD: decimal.NewFromInt(1_000_000),
		CreatedAt:    testNow.Add(-time.Hour),
	}

	assert.Empty(t, h.svc.CheckCriteria(&base))

	low := base
	low.LiquidityUSD = decimal.NewFromInt(500)
	assert.Equal(t, CriteriaLiquidity, h.svc.CheckCriteria(&low))

	big := base
	big.MarketCapUSD = decimal.NewFromInt(50_000_000)
	assert.Equal(t, CriteriaMarketCapHi, h.svc.CheckCriteria(&big))

	old := base
	old.CreatedAt = testNow.Add(-48 * time.Hour)
	assert.Equal(t, CriteriaPairAge, h.svc.CheckCriteria(&old))

	unknownAge := base
	unknownAge.CreatedAt = time.Time{}
	assert.Empty(t, h.svc.CheckCriteria(&unknownAge))
}
