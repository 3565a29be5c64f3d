package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapwatch/internal/alerting"
	"swapwatch/internal/analyzer"
	"swapwatch/internal/config"
	"swapwatch/internal/storage"
	"swapwatch/internal/trade"
)

const tok = "TokenMint111111111111111111111111111111111"

func sig(b byte) string {
	return base58.Encode(bytes.Repeat([]byte{b}, 64))
}

func sampleTrades() []trade.Trade {
	desc := "swap, with comma"
	return []trade.Trade{
		{Account: "A", TokenInAddress: "SOL", TokenInAmount: decimal.NewFromInt(1), TokenOutAddress: tok, TokenOutAmount: decimal.NewFromInt(100), Timestamp: 1_700_000_000, Signature: "s1", Description: &desc},
		{Account: "B", TokenInAddress: "SOL", TokenInAmount: decimal.NewFromInt(2), TokenOutAddress: tok, TokenOutAmount: decimal.NewFromInt(250), Timestamp: 1_700_000_060, Signature: "s2"},
		{Account: "A", TokenInAddress: tok, TokenInAmount: decimal.NewFromInt(40), TokenOutAddress: "SOL", TokenOutAmount: decimal.RequireFromString("0.5"), Timestamp: 1_700_000_120, Signature: "s3"},
	}
}

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	chdir(t, t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	var out bytes.Buffer
	a := NewApp(cfg, zerolog.Nop())
	a.Out = &out
	return a, &out
}

func TestCumulativeFlow(t *testing.T) {
	points := cumulativeFlow(tok, sampleTrades())
	require.Len(t, points, 3)
	assert.True(t, points[1].Bought.Equal(decimal.NewFromInt(350)))
	assert.True(t, points[1].Sold.IsZero())
	assert.True(t, points[2].Sold.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, time.Unix(1_700_000_120, 0).UTC(), points[2].At)
}

func TestDownsamplePoints(t *testing.T) {
	points := make([]flowPoint, 10)
	for i := range points {
		points[i] = flowPoint{At: time.Unix(int64(i), 0)}
	}
	got := downsamplePoints(points, 4)
	require.Len(t, got, 4)
	assert.Equal(t, points[0].At, got[0].At)
	assert.Equal(t, points[9].At, got[3].At)

	assert.Len(t, downsamplePoints(points, 50), 10)
}

func TestWriteTradesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "trades.csv")
	require.NoError(t, writeTradesCSV(path, tok, sampleTrades()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 4)
	assert.Equal(t, "side", rows[0][4])
	assert.Equal(t, "buy", rows[1][4])
	assert.Equal(t, "sell", rows[3][4])
	assert.Equal(t, "swap, with comma", rows[1][9])
}

func TestWriteFlowPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.png")
	require.NoError(t, writeFlowPNG(path, tok, cumulativeFlow(tok, sampleTrades())))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	require.Error(t, writeFlowPNG(path, tok, nil))
}

type fakeParser struct {
	mu     sync.Mutex
	trades map[string]trade.Trade
}

func (f *fakeParser) ParseTrade(_ context.Context, signature string) (trade.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trades[signature]
	if !ok {
		return trade.Trade{}, trade.ErrNoSwapAction
	}
	return t, nil
}

func TestReparse(t *testing.T) {
	parser := &fakeParser{trades: map[string]trade.Trade{}}
	for i, tr := range sampleTrades() {
		s := sig(byte(i + 1))
		tr.Signature = s
		parser.trades[s] = tr
	}
	store := storage.NewMemoryStore()
	ctx := context.Background()

	_, err := store.InsertTrade(ctx, parser.trades[sig(1)])
	require.NoError(t, err)

	opts := ReparseOptions{Signatures: []string{sig(1), sig(2), sig(3), sig(9)}, Workers: 2}
	res := reparse(ctx, parser, store, opts, zerolog.Nop())
	assert.Equal(t, ReparseResult{Stored: 2, Existing: 1, Failed: 1}, res)

	count, err := store.CountTrades(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestReparseDryRunWritesNothing(t *testing.T) {
	parser := &fakeParser{trades: map[string]trade.Trade{sig(1): sampleTrades()[0]}}
	res := reparse(context.Background(), parser, nil, ReparseOptions{Signatures: []string{sig(1)}}, zerolog.Nop())
	assert.Equal(t, ReparseResult{}, res)
}

func TestValidateSignature(t *testing.T) {
	require.NoError(t, validateSignature(sig(5)))
	require.Error(t, validateSignature("0OIl"))
	require.Error(t, validateSignature(base58.Encode([]byte("short"))))
}

func TestReparseRejectsBadSignatureBeforeWiring(t *testing.T) {
	a, _ := newTestApp(t)
	err := a.Reparse(context.Background(), ReparseOptions{Signatures: []string{"bad-0OIl"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base58")
}

func TestShowWithEmptyMemoryStore(t *testing.T) {
	a, out := newTestApp(t)
	require.NoError(t, a.Show(context.Background(), ShowOptions{Limit: 5}))
	assert.Contains(t, out.String(), "no trades found")
	assert.Contains(t, out.String(), "no alerts found")
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &analyzer.Report{
		Token:       tok,
		TotalSupply: decimal.NewFromInt(1_000_000_000),
		Wallets: []analyzer.WalletAggregate{{
			Account:         "WalletA",
			WalletName:      "alpha",
			TotalBuyCost:    decimal.NewFromInt(300),
			AverageBuyPrice: decimal.RequireFromString("0.001"),
			HoldsPercentage: decimal.RequireFromString("88.5"),
			BuyCount:        2,
			BuyTime:         "5m ago",
		}},
	})
	text := out.String()
	assert.Contains(t, text, "alpha")
	assert.Contains(t, text, "300.00")
	assert.Contains(t, text, "88.50")
	assert.Contains(t, text, "5m ago")
}

func TestPrintTradesSanitizesDescription(t *testing.T) {
	desc := "line one\nline two"
	var out bytes.Buffer
	printTrades(&out, []trade.Trade{{Account: "A", TokenInAddress: "X", TokenOutAddress: "Y", Signature: "s", Description: &desc}})
	assert.Contains(t, out.String(), "line one line two")
	assert.False(t, strings.Contains(out.String(), "one\nline"))
}

func TestAddWalletValidatesAddress(t *testing.T) {
	a, _ := newTestApp(t)
	err := a.AddWallet(context.Background(), "not-a-key", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid wallet address")
}

func TestTelegramNotifierDoesNotResendOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"ok":false,"description":"Internal Server Error"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	a, _ := newTestApp(t)
	a.Config.HTTP.MaxRetries = 3
	a.Config.HTTP.InitialInterval = time.Millisecond
	a.Config.Alerting.Enabled = true
	a.Config.Alerting.Telegram.Enabled = true
	a.Config.Alerting.Telegram.BotToken = "token"
	a.Config.Alerting.Telegram.ChatID = "chat"
	a.Config.Alerting.Telegram.APIBase = srv.URL

	notifier := a.newNotifier()
	require.IsType(t, &alerting.TelegramNotifier{}, notifier)

	_, err := notifier.Send(context.Background(), alerting.Message{Text: "x"})
	require.ErrorIs(t, err, alerting.ErrNotificationFailed)
	assert.Equal(t, int32(1), calls.Load())
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
