package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"swapwatch/internal/classifier"
	"swapwatch/internal/logging"
)

// Dedup backends.
const (
	DedupMemory = "memory"
	DedupRedis  = "redis"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Helius      HeliusConfig      `mapstructure:"helius"`
	Shyft       ShyftConfig       `mapstructure:"shyft"`
	DexScreener DexScreenerConfig `mapstructure:"dexscreener"`
	Solana      SolanaConfig      `mapstructure:"solana"`
	Prices      PricesConfig      `mapstructure:"prices"`
	Classifier  classifier.Rules  `mapstructure:"classifier"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig covers the webhook listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AuthSecret      string        `mapstructure:"auth_secret"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN selects
// the in-memory store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HTTPConfig tunes the shared outbound client.
type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// HeliusConfig covers webhook registration.
type HeliusConfig struct {
	APIURL     string `mapstructure:"api_url"`
	APIKey     string `mapstructure:"api_key"`
	WebhookURL string `mapstructure:"webhook_url"`
	WebhookID  string `mapstructure:"webhook_id"`
}

type ShyftConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Network string `mapstructure:"network"`
}

type DexScreenerConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

type SolanaConfig struct {
	RPCURL  string        `mapstructure:"rpc_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PricesConfig configures the price oracle.
type PricesConfig struct {
	Chain       string        `mapstructure:"chain"`
	NativeMint  string        `mapstructure:"native_mint"`
	NativeTTL   time.Duration `mapstructure:"native_ttl"`
	StableMints []string      `mapstructure:"stable_mints"`
}

// AlertingConfig defines alert criteria and routing.
type AlertingConfig struct {
	Enabled         bool           `mapstructure:"enabled"`
	DedupBackend    string         `mapstructure:"dedup_backend"`
	Cooldown        time.Duration  `mapstructure:"cooldown"`
	Timeout         time.Duration  `mapstructure:"timeout"`
	MinLiquidityUSD float64        `mapstructure:"min_liquidity_usd"`
	MinMarketCapUSD float64        `mapstructure:"min_market_cap_usd"`
	MaxMarketCapUSD float64        `mapstructure:"max_market_cap_usd"`
	MaxPairAge      time.Duration  `mapstructure:"max_pair_age"`
	Retention       time.Duration  `mapstructure:"retention"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// SchedulerConfig governs housekeeping cadence.
type SchedulerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	PriceInterval time.Duration `mapstructure:"price_interval"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWAPWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "swapwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.auth_secret", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("http.timeout", "10s")
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.initial_interval", "500ms")
	v.SetDefault("http.max_interval", "5s")
	v.SetDefault("http.user_agent", "swapwatch/1.0")

	v.SetDefault("helius.api_url", "https://api.helius.xyz")
	v.SetDefault("helius.api_key", "")
	v.SetDefault("helius.webhook_url", "")
	v.SetDefault("helius.webhook_id", "")

	v.SetDefault("shyft.base_url", "https://api.shyft.to/sol/v1")
	v.SetDefault("shyft.api_key", "")
	v.SetDefault("shyft.network", "mainnet-beta")

	v.SetDefault("dexscreener.base_url", "https://api.dexscreener.com")
	v.SetDefault("dexscreener.requests_per_minute", 300)

	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.timeout", "10s")

	v.SetDefault("prices.chain", "solana")
	v.SetDefault("prices.native_mint", "So11111111111111111111111111111111111111112")
	v.SetDefault("prices.native_ttl", "10m")
	v.SetDefault("prices.stable_mints", []string{"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"})

	rules := classifier.DefaultRules()
	v.SetDefault("classifier.launch_pool_sources", rules.LaunchPoolSources)
	v.SetDefault("classifier.transfer_types", rules.TransferTypes)
	v.SetDefault("classifier.denied_accounts", rules.DeniedAccounts)
	v.SetDefault("classifier.required_programs", rules.RequiredPrograms)
	v.SetDefault("classifier.require_all_programs", false)

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.dedup_backend", DedupMemory)
	v.SetDefault("alerting.cooldown", "72h")
	v.SetDefault("alerting.timeout", "20s")
	v.SetDefault("alerting.min_liquidity_usd", 10000.0)
	v.SetDefault("alerting.min_market_cap_usd", 0.0)
	v.SetDefault("alerting.max_market_cap_usd", 0.0)
	v.SetDefault("alerting.max_pair_age", "0s")
	v.SetDefault("alerting.retention", "720h")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.price_interval", "5m")
	v.SetDefault("scheduler.prune_interval", "1h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Prices.NativeTTL <= 0 {
		return fmt.Errorf("prices.native_ttl must be greater than zero")
	}
	if c.Alerting.Cooldown <= 0 {
		return fmt.Errorf("alerting.cooldown must be greater than zero")
	}
	if c.Alerting.Timeout <= 0 {
		return fmt.Errorf("alerting.timeout must be greater than zero")
	}
	if c.Alerting.MinLiquidityUSD < 0 || c.Alerting.MinMarketCapUSD < 0 || c.Alerting.MaxMarketCapUSD < 0 {
		return fmt.Errorf("alerting thresholds cannot be negative")
	}
	if c.Alerting.MaxMarketCapUSD > 0 && c.Alerting.MaxMarketCapUSD < c.Alerting.MinMarketCapUSD {
		return fmt.Errorf("alerting.max_market_cap_usd must not be below alerting.min_market_cap_usd")
	}
	switch c.Alerting.DedupBackend {
	case DedupMemory:
	case DedupRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when alerting.dedup_backend is redis")
		}
	default:
		return fmt.Errorf("alerting.dedup_backend must be %q or %q, got %q", DedupMemory, DedupRedis, c.Alerting.DedupBackend)
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	if c.Scheduler.Enabled && (c.Scheduler.PriceInterval <= 0 || c.Scheduler.PruneInterval <= 0) {
		return fmt.Errorf("scheduler intervals must be greater than zero")
	}
	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	return nil
}

// ValidateServe checks settings only the webhook server needs.
func (c *Config) ValidateServe() error {
	if c.Server.AuthSecret == "" {
		return fmt.Errorf("server.auth_secret is required to serve webhooks")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
