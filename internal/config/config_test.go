package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-trade-engine/internal/risk"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadDefaults tests that a missing env file yields the defaults
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, exchange.NamePaper, cfg.Exchange.Name)
	assert.Equal(t, risk.DefaultPolicy(), cfg.Risk)
	assert.Equal(t, 0.95, cfg.Backtest.Allocation)
	assert.Equal(t, []string{"BTCUSDT"}, cfg.Trading.Symbols)
}

// TestLoadEnvFile tests overrides from a dotenv file
func TestLoadEnvFile(t *testing.T) {
	keys := []string{"EXCHANGE_NAME", "EXCHANGE_API_KEY", "EXCHANGE_SECRET", "EXCHANGE_CATEGORY",
		"RISK_MAX_PCT_PER_TRADE", "TRADING_SYMBOLS", "TRADING_POLL_INTERVAL", "BACKTEST_COMMISSION"}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	path := writeFile(t, "test.env", `EXCHANGE_NAME=bybit
EXCHANGE_API_KEY=key
EXCHANGE_SECRET=secret
EXCHANGE_CATEGORY=linear
RISK_MAX_PCT_PER_TRADE=2.5
TRADING_SYMBOLS=BTCUSDT, ETHUSDT
TRADING_POLL_INTERVAL=30s
BACKTEST_COMMISSION=0.0005
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Exchange.Bybit)
	assert.Equal(t, "key", cfg.Exchange.Bybit.APIKey)
	assert.Equal(t, "linear", cfg.Exchange.Bybit.Category)
	assert.Equal(t, 2.5, cfg.Risk.MaxRiskPctPerTrade)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, 30*time.Second, cfg.Trading.PollInterval)
	assert.Equal(t, 0.0005, cfg.Backtest.Commission)
}

// TestValidate tests rejection of inconsistent settings
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bybit without keys", func(c *Config) { c.Exchange = exchange.ExchangeConfig{Name: "bybit", Bybit: &exchange.BybitConfig{}} }},
		{"unknown exchange", func(c *Config) { c.Exchange.Name = "kraken" }},
		{"bad risk", func(c *Config) { c.Risk.StopLossPct = 1.5 }},
		{"no symbols", func(c *Config) { c.Trading.Symbols = nil }},
		{"zero capital", func(c *Config) { c.Backtest.InitialCapital = 0 }},
		{"allocation above one", func(c *Config) { c.Backtest.Allocation = 1.2 }},
		{"negative commission", func(c *Config) { c.Backtest.Commission = -0.1 }},
		{"telegram without chat", func(c *Config) { c.Notifications.TelegramToken = "token" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

// TestLoadFile tests YAML and JSON config files
func TestLoadFile(t *testing.T) {
	yamlPath := writeFile(t, "trader.yaml", `
exchange:
  name: paper
  paper:
    initial_balance: 5000
risk:
  max_risk_pct_per_trade: 2
  stop_loss_pct: 0.03
  buffer_pct: 0.002
  take_profit_pct: 0.06
trading:
  symbols: [ETHUSDT]
  interval: 15m
  poll_interval: 1m
`)
	cfg, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, cfg.Exchange.Paper.InitialBalance)
	assert.Equal(t, 0.03, cfg.Risk.StopLossPct)
	assert.Equal(t, "15m", cfg.Trading.Interval)
	assert.Equal(t, time.Minute, cfg.Trading.PollInterval)
	assert.Equal(t, 10000.0, cfg.Backtest.InitialCapital)

	jsonPath := writeFile(t, "trader.json", `{"trading": {"symbols": ["SOLUSDT"], "poll_interval": 5000000000}}`)
	cfg, err = LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"SOLUSDT"}, cfg.Trading.Symbols)

	_, err = LoadFile(writeFile(t, "bad.yaml", "risk:\n  stop_loss_pct: 2\n"))
	assert.Error(t, err)
}

// TestLoadRiskPolicyFile tests partial overlays on the default policy
func TestLoadRiskPolicyFile(t *testing.T) {
	path := writeFile(t, "policy.yaml", "max_risk_pct_per_trade: 0.5\nbuffer_pct: 0.005\n")

	policy, err := LoadRiskPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, policy.MaxRiskPctPerTrade)
	assert.Equal(t, 0.005, policy.BufferPct)
	assert.Equal(t, 0.02, policy.StopLossPct)

	_, err = LoadRiskPolicyFile(writeFile(t, "neg.yaml", "max_risk_pct_per_trade: -1\n"))
	assert.Error(t, err)

	_, err = LoadRiskPolicyFile(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}
