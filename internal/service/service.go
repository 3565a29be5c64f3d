package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"swapwatch/internal/alerting"
	"swapwatch/internal/analyzer"
	"swapwatch/internal/classifier"
	"swapwatch/internal/fetcher"
	"swapwatch/internal/helius"
	"swapwatch/internal/metrics"
	"swapwatch/internal/storage"
	"swapwatch/internal/symbolcache"
	"swapwatch/internal/trade"
)

// Outcome statuses.
const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusDuplicate = "duplicate"
)

// Skip reasons produced after classification.
const (
	ReasonIncompleteSwapData = "incomplete_swap_data"
	ReasonParseUnavailable   = "parse_unavailable"
	ReasonNoSwapAction       = "no_swap_action"
	ReasonNoSwapData         = "no_swap_data"
)

// Criteria rejection reasons.
const (
	CriteriaQuoteAsset   = "quote_asset"
	CriteriaLiquidity    = "liquidity_below_min"
	CriteriaMarketCapLow = "market_cap_below_min"
	CriteriaMarketCapHi  = "market_cap_above_max"
	CriteriaPairAge      = "pair_too_old"
)

// Outcome describes what happened to one inbound transaction.
type Outcome struct {
	Status string
	Reason string
	Trade  *trade.Trade
}

// Skipped reports whether the transaction was acknowledged without a new trade.
func (o Outcome) Skipped() bool {
	return o.Status != StatusProcessed
}

// QuoteChecker identifies quote assets (native and stables).
type QuoteChecker interface {
	IsQuote(asset string) bool
}

// ReportBuilder produces the wallet co-activity report for a token.
type ReportBuilder interface {
	Analyze(ctx context.Context, token string) (*analyzer.Report, error)
}

// Deps are the collaborators of the pipeline. Parser, Notifier and Metrics
// may be nil.
type Deps struct {
	Classifier *classifier.Classifier
	Parser     fetcher.TxParser
	Store      storage.Repository
	Market     fetcher.MarketSnapshotProvider
	Quotes     QuoteChecker
	Dedup      symbolcache.Cache
	Analyzer   ReportBuilder
	Notifier   alerting.Notifier
	Metrics    *metrics.Metrics
}

// Options tune alert criteria. Zero bounds are unbounded.
type Options struct {
	Chain           string
	NativeMint      string
	MinLiquidityUSD decimal.Decimal
	MinMarketCapUSD decimal.Decimal
	MaxMarketCapUSD decimal.Decimal
	MaxPairAge      time.Duration
	AlertTimeout    time.Duration
	Now             func() time.Time
}

// Alert is a composed, not yet delivered notification.
type Alert struct {
	Snapshot *fetcher.TokenSnapshot
	Report   *analyzer.Report
	Text     string
}

// Service turns inbound transactions into stored trades and alerts.
type Service struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
}

// New constructs the pipeline service.
func New(deps Deps, opts Options, logger zerolog.Logger) *Service {
	if opts.Chain == "" {
		opts.Chain = "solana"
	}
	if opts.NativeMint == "" {
		opts.NativeMint = fetcher.NativeMint
	}
	if opts.AlertTimeout <= 0 {
		opts.AlertTimeout = 20 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Classifier == nil {
		deps.Classifier = classifier.New(classifier.DefaultRules())
	}
	return &Service{
		deps:   deps,
		opts:   opts,
		logger: logger.With().Str("component", "service").Logger(),
	}
}

// HandleTransaction runs one enhanced transaction through the pipeline. Only
// store failures are returned as errors; everything else is an Outcome.
func (s *Service) HandleTransaction(ctx context.Context, tx helius.EnhancedTransaction) (Outcome, error) {
	log := s.logger.With().Str("signature", tx.Signature).Logger()

	decision := s.deps.Classifier.Classify(tx.Meta())
	if !decision.Include {
		log.Info().Str("source", tx.Source).Str("type", tx.Type).Str("reason", decision.Reason).Msg("transaction excluded")
		return s.skip(decision.Reason), nil
	}

	t, err := s.normalize(ctx, tx)
	if err != nil {
		reason := skipReason(err)
		log.Info().Err(err).Str("reason", reason).Msg("transaction not normalized")
		return s.skip(reason), nil
	}

	inserted, err := s.deps.Store.InsertTrade(ctx, t)
	if err != nil {
		s.deps.Metrics.RecordOutcome("error", "store")
		return Outcome{}, fmt.Errorf("store trade %s: %w", t.Signature, err)
	}
	if !inserted {
		log.Debug().Msg("trade already stored")
		s.deps.Metrics.RecordOutcome(StatusDuplicate, "")
		return Outcome{Status: StatusDuplicate, Trade: &t}, nil
	}
	s.deps.Metrics.RecordTradeStored()
	s.deps.Metrics.RecordOutcome(StatusProcessed, "")

	log.Info().
		Str("account", t.Account).
		Str("token_in", t.TokenInAddress).
		Str("amount_in", t.TokenInAmount.String()).
		Str("token_out", t.TokenOutAddress).
		Str("amount_out", t.TokenOutAmount.String()).
		Msg("trade stored")

	s.maybeAlert(ctx, t)
	return Outcome{Status: StatusProcessed, Trade: &t}, nil
}

func (s *Service) normalize(ctx context.Context, tx helius.EnhancedTransaction) (trade.Trade, error) {
	if tx.HasSwapEvent() {
		return helius.ExtractSwap(tx, s.opts.NativeMint)
	}
	if tx.Signature == "" || s.deps.Parser == nil {
		return trade.Trade{}, errNoSwapData
	}
	return s.deps.Parser.ParseTrade(ctx, tx.Signature)
}

var errNoSwapData = errors.New("transaction carries no swap data")

func skipReason(err error) string {
	switch {
	case errors.Is(err, trade.ErrIncompleteSwapData):
		return ReasonIncompleteSwapData
	case errors.Is(err, trade.ErrNoSwapAction):
		return ReasonNoSwapAction
	case errors.Is(err, trade.ErrParseUnavailable):
		return ReasonParseUnavailable
	default:
		return ReasonNoSwapData
	}
}

func (s *Service) skip(reason string) Outcome {
	s.deps.Metrics.RecordOutcome(StatusSkipped, reason)
	return Outcome{Status: StatusSkipped, Reason: reason}
}

// maybeAlert never fails the trade; every problem is logged and counted.
func (s *Service) maybeAlert(parent context.Context, t trade.Trade) {
	token := t.TokenOutAddress
	log := s.logger.With().Str("token", token).Str("signature", t.Signature).Logger()

	if s.deps.Quotes != nil && s.deps.Quotes.IsQuote(token) {
		log.Debug().Str("reason", CriteriaQuoteAsset).Msg("alert not considered")
		return
	}
	if s.deps.Market == nil || s.deps.Notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(parent, s.opts.AlertTimeout)
	defer cancel()

	snapshot, err := s.Snapshot(ctx, token)
	if err != nil {
		if errors.Is(err, fetcher.ErrNotFound) {
			log.Debug().Msg("no market data for token")
			return
		}
		log.Warn().Err(err).Msg("market snapshot unavailable")
		return
	}

	if reason := s.CheckCriteria(snapshot); reason != "" {
		log.Debug().Str("reason", reason).Str("symbol", snapshot.Symbol).Msg("alert criteria not met")
		return
	}

	if s.deps.Dedup != nil {
		seen, err := s.deps.Dedup.Exists(ctx, snapshot.Symbol)
		if err != nil {
			log.Warn().Err(err).Msg("symbol dedup check failed")
			return
		}
		if seen {
			log.Info().Str("symbol", snapshot.Symbol).Msg("symbol alerted recently")
			return
		}
	}

	alert, err := s.Compose(ctx, snapshot)
	if err != nil {
		s.deps.Metrics.RecordAlert(err)
		log.Warn().Err(err).Msg("compose alert failed")
		return
	}

	record, err := s.Deliver(ctx, alert, t.Signature)
	if err != nil {
		log.Error().Err(err).Msg("deliver alert failed")
		return
	}
	log.Info().
		Str("symbol", record.Symbol).
		Int("wallets", record.WalletCount).
		Msg("alert sent")
}

// Snapshot looks up market data for token.
func (s *Service) Snapshot(ctx context.Context, token string) (*fetcher.TokenSnapshot, error) {
	if s.deps.Market == nil {
		return nil, errors.New("market snapshot provider not configured")
	}
	snapshot, err := s.deps.Market.Lookup(ctx, s.opts.Chain, token)
	if err != nil {
		if !errors.Is(err, fetcher.ErrNotFound) {
			s.deps.Metrics.RecordEnrichmentError("market")
		}
		return nil, fmt.Errorf("lookup %s: %w", token, err)
	}
	return snapshot, nil
}

// CheckCriteria returns the first unmet alert criterion, or "" when the
// snapshot qualifies.
func (s *Service) CheckCriteria(snapshot *fetcher.TokenSnapshot) string {
	if snapshot.LiquidityUSD.LessThan(s.opts.MinLiquidityUSD) {
		return CriteriaLiquidity
	}
	if snapshot.MarketCapUSD.LessThan(s.opts.MinMarketCapUSD) {
		return CriteriaMarketCapLow
	}
	if s.opts.MaxMarketCapUSD.IsPositive() && snapshot.MarketCapUSD.GreaterThan(s.opts.MaxMarketCapUSD) {
		return CriteriaMarketCapHi
	}
	if s.opts.MaxPairAge > 0 && !snapshot.CreatedAt.IsZero() && snapshot.Age(s.opts.Now()) > s.opts.MaxPairAge {
		return CriteriaPairAge
	}
	return ""
}

// Compose analyzes wallet activity for the snapshot's token and renders the alert.
func (s *Service) Compose(ctx context.Context, snapshot *fetcher.TokenSnapshot) (*Alert, error) {
	if s.deps.Analyzer == nil {
		return nil, errors.New("analyzer not configured")
	}
	report, err := s.deps.Analyzer.Analyze(ctx, snapshot.Address)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", snapshot.Address, err)
	}
	return &Alert{
		Snapshot: snapshot,
		Report:   report,
		Text:     alerting.Compose(*snapshot, report, s.opts.Now()),
	}, nil
}

// Deliver sends the alert and records it. A failed audit write is logged but
// does not fail the delivery.
func (s *Service) Deliver(ctx context.Context, alert *Alert, signature string) (storage.AlertRecord, error) {
	if s.deps.Notifier == nil {
		return storage.AlertRecord{}, errors.New("notifier not configured")
	}
	res, err := s.deps.Notifier.Send(ctx, alerting.Message{Text: alert.Text})
	s.deps.Metrics.RecordAlert(err)
	if err != nil {
		return storage.AlertRecord{}, fmt.Errorf("send alert: %w", err)
	}

	record := storage.AlertRecord{
		TokenAddress: alert.Snapshot.Address,
		Symbol:       alert.Snapshot.Symbol,
		Signature:    signature,
		WalletCount:  len(alert.Report.Wallets),
		MarketCapUSD: alert.Snapshot.MarketCapUSD,
		CreatedAt:    s.opts.Now().UTC(),
	}
	if res.MessageID != 0 {
		record.MessageID = pointer.ToInt64(res.MessageID)
	}

	if s.deps.Store != nil {
		saved, err := s.deps.Store.InsertAlert(ctx, record)
		if err != nil {
			s.logger.Error().Err(err).Str("token", record.TokenAddress).Msg("failed to persist alert record")
			return record, nil
		}
		record = saved
	}
	return record, nil
}
