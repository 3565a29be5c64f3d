package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapwatch/internal/classifier"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "swapwatch", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 72*time.Hour, cfg.Alerting.Cooldown)
	assert.Equal(t, 20*time.Second, cfg.Alerting.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Prices.NativeTTL)
	assert.Equal(t, 300, cfg.DexScreener.RequestsPerMinute)
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.Equal(t, DedupMemory, cfg.Alerting.DedupBackend)
	assert.Equal(t, classifier.DefaultRules(), cfg.Classifier)
	assert.Error(t, cfg.ValidateServe(), "serving requires a shared secret")
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  auth_secret: from-file
alerting:
  cooldown: 24h
  max_market_cap_usd: 5000000
classifier:
  require_all_programs: true
`), 0o600))

	t.Setenv("SWAPWATCH_ALERTING_MIN_LIQUIDITY_USD", "2500")
	t.Setenv("SWAPWATCH_PRICES_STABLE_MINTS", "MintA,MintB")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Server.AuthSecret)
	assert.Equal(t, 24*time.Hour, cfg.Alerting.Cooldown)
	assert.Equal(t, 5_000_000.0, cfg.Alerting.MaxMarketCapUSD)
	assert.Equal(t, 2500.0, cfg.Alerting.MinLiquidityUSD)
	assert.Equal(t, []string{"MintA", "MintB"}, cfg.Prices.StableMints)
	assert.True(t, cfg.Classifier.RequireAllPrograms)
	assert.NoError(t, cfg.ValidateServe())
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"telegram without token": func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.ChatID = "42"
		},
		"redis dedup without addr": func(c *Config) { c.Alerting.DedupBackend = DedupRedis },
		"unknown dedup backend":    func(c *Config) { c.Alerting.DedupBackend = "memcached" },
		"inverted market cap":      func(c *Config) { c.Alerting.MinMarketCapUSD, c.Alerting.MaxMarketCapUSD = 10, 5 },
		"zero cooldown":            func(c *Config) { c.Alerting.Cooldown = 0 },
		"bad denied account":       func(c *Config) { c.Classifier.DeniedAccounts = []string{"0OIl"} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := *base
			cfg.Classifier.DeniedAccounts = append([]string(nil), base.Classifier.DeniedAccounts...)
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
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
