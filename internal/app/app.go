package app

import (
	"context"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"swapwatch/internal/alerting"
	"swapwatch/internal/analyzer"
	"swapwatch/internal/classifier"
	"swapwatch/internal/config"
	"swapwatch/internal/fetcher"
	"swapwatch/internal/helius"
	"swapwatch/internal/httpx"
	"swapwatch/internal/metrics"
	"swapwatch/internal/service"
	"swapwatch/internal/storage"
	"swapwatch/internal/symbolcache"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

// ExportOptions hold parameters for exporting a token's trade history.
type ExportOptions struct {
	Token     string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ReparseOptions configure re-parsing signatures through the transaction parser.
type ReparseOptions struct {
	Signatures []string
	DryRun     bool
	Workers    int
}

// SimulateOptions configure a one-off alert render.
type SimulateOptions struct {
	Token string
	Send  bool
}

// components is the fully wired runtime graph.
type components struct {
	http     *httpx.Client
	store    storage.Repository
	pg       *storage.Store
	prices   *fetcher.Prices
	market   fetcher.MarketSnapshotProvider
	parser   fetcher.TxParser
	dedup    symbolcache.Cache
	memDedup *symbolcache.Memory
	redis    *symbolcache.Redis
	analyzer *analyzer.Analyzer
	notifier alerting.Notifier
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	service  *service.Service
	closers  []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func (a *App) newHTTPClient() *httpx.Client {
	cfg := a.Config.HTTP
	return httpx.New(httpx.Options{
		Timeout:         cfg.Timeout,
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		UserAgent:       cfg.UserAgent,
	}, a.Logger)
}

// build wires every collaborator from config. Callers must Close the result.
func (a *App) build(ctx context.Context) (*components, error) {
	c := &components{http: a.newHTTPClient()}

	pg, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if pg != nil {
		c.pg = pg
		c.store = pg
		c.closers = append(c.closers, closeStore)
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; using in-memory store")
		c.store = storage.NewMemoryStore()
	}

	dex := fetcher.NewDexScreener(c.http, fetcher.DexScreenerOptions{
		BaseURL:           a.Config.DexScreener.BaseURL,
		RequestsPerMinute: a.Config.DexScreener.RequestsPerMinute,
	}, a.Logger)
	c.market = dex
	c.prices = fetcher.NewPrices(dex, fetcher.PricesOptions{
		Chain:       a.Config.Prices.Chain,
		NativeMint:  a.Config.Prices.NativeMint,
		StableMints: a.Config.Prices.StableMints,
		NativeTTL:   a.Config.Prices.NativeTTL,
	}, a.Logger)

	var supply fetcher.SupplyProvider
	if s, err := fetcher.NewSupply(fetcher.SupplyOptions{
		RPCURL:          a.Config.Solana.RPCURL,
		Timeout:         a.Config.Solana.Timeout,
		MaxRetries:      a.Config.HTTP.MaxRetries,
		InitialInterval: a.Config.HTTP.InitialInterval,
		MaxInterval:     a.Config.HTTP.MaxInterval,
	}, a.Logger); err != nil {
		a.Logger.Warn().Err(err).Msg("token supply lookups disabled")
	} else {
		supply = s
	}

	if a.Config.Shyft.APIKey != "" {
		c.parser = fetcher.NewShyft(c.http, fetcher.ShyftOptions{
			BaseURL: a.Config.Shyft.BaseURL,
			APIKey:  a.Config.Shyft.APIKey,
			Network: a.Config.Shyft.Network,
		}, a.Logger)
	}

	a.newDedup(c)

	c.analyzer = analyzer.New(c.store, c.prices, supply, c.store, analyzer.Options{}, a.Logger)
	c.notifier = a.newNotifier()

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.metrics = metrics.NewMetrics(c.registry)

	c.service = service.New(service.Deps{
		Classifier: classifier.New(a.Config.Classifier),
		Parser:     c.parser,
		Store:      c.store,
		Market:     c.market,
		Quotes:     c.prices,
		Dedup:      c.dedup,
		Analyzer:   c.analyzer,
		Notifier:   c.notifier,
		Metrics:    c.metrics,
	}, a.serviceOptions(), a.Logger)

	return c, nil
}

func (a *App) serviceOptions() service.Options {
	cfg := a.Config.Alerting
	return service.Options{
		Chain:           a.Config.Prices.Chain,
		NativeMint:      a.Config.Prices.NativeMint,
		MinLiquidityUSD: decimal.NewFromFloat(cfg.MinLiquidityUSD),
		MinMarketCapUSD: decimal.NewFromFloat(cfg.MinMarketCapUSD),
		MaxMarketCapUSD: decimal.NewFromFloat(cfg.MaxMarketCapUSD),
		MaxPairAge:      cfg.MaxPairAge,
		AlertTimeout:    cfg.Timeout,
	}
}

func (a *App) newDedup(c *components) {
	ttl := a.Config.Alerting.Cooldown
	if a.Config.Alerting.DedupBackend == config.DedupRedis {
		r := symbolcache.NewRedis(symbolcache.RedisOptions{
			Addr:     a.Config.Redis.Addr,
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
			TTL:      ttl,
		})
		c.redis = r
		c.dedup = r
		c.closers = append(c.closers, func() { _ = r.Close() })
		return
	}
	c.memDedup = symbolcache.NewMemory(ttl)
	c.dedup = c.memDedup
}

// newNotifier returns nil when alerting is disabled and a log-only notifier
// when Telegram is not configured. sendMessage is not idempotent, so the
// Telegram client never retries.
func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		client := httpx.New(httpx.Options{
			Timeout:    a.Config.HTTP.Timeout,
			MaxRetries: 0,
			UserAgent:  a.Config.HTTP.UserAgent,
		}, a.Logger)
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, client, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

func (a *App) newWebhookClient(client *httpx.Client) *helius.WebhookClient {
	cfg := a.Config.Helius
	return helius.NewWebhookClient(client, helius.WebhookOptions{
		APIURL:     cfg.APIURL,
		APIKey:     cfg.APIKey,
		WebhookURL: cfg.WebhookURL,
		AuthSecret: a.Config.Server.AuthSecret,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	if a.Config.Database.AutoMigrate {
		applied, err := storage.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if len(applied) > 0 {
			a.Logger.Info().Strs("migrations", applied).Msg("database migrated")
		}
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}
