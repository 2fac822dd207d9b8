package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-trade-engine/internal/risk"
)

// Config is the runtime configuration shared by the trader and backtest commands
type Config struct {
	Environment string `yaml:"environment" json:"environment"`
	LogDir      string `yaml:"log_dir" json:"log_dir"`

	Exchange exchange.ExchangeConfig `yaml:"exchange" json:"exchange"`
	Risk     risk.Policy             `yaml:"risk" json:"risk"`
	Trading  TradingConfig           `yaml:"trading" json:"trading"`
	Backtest BacktestConfig          `yaml:"backtest" json:"backtest"`

	Monitoring    MonitoringConfig    `yaml:"monitoring" json:"monitoring"`
	Notifications NotificationsConfig `yaml:"notifications" json:"notifications"`
}

// TradingConfig holds the live session parameters
type TradingConfig struct {
	Symbols      []string      `yaml:"symbols" json:"symbols"`
	Interval     string        `yaml:"interval" json:"interval"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	Stream       bool          `yaml:"stream" json:"stream"`
}

// BacktestConfig holds the simulated account parameters
type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"`
	Commission     float64 `yaml:"commission" json:"commission"`
	Allocation     float64 `yaml:"allocation" json:"allocation"`
}

// MonitoringConfig holds the HTTP ports for metrics and health
type MonitoringConfig struct {
	PrometheusPort int `yaml:"prometheus_port" json:"prometheus_port"`
	HealthPort     int `yaml:"health_port" json:"health_port"`
}

// NotificationsConfig holds the Telegram alert credentials. Alerts are off
// when the token is empty.
type NotificationsConfig struct {
	TelegramToken  string `yaml:"telegram_token" json:"-"`
	TelegramChatID string `yaml:"telegram_chat_id" json:"telegram_chat_id"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Environment: "development",
		LogDir:      "logs",
		Exchange:    exchange.ExchangeConfig{Name: exchange.NamePaper},
		Risk:        risk.DefaultPolicy(),
		Trading: TradingConfig{
			Symbols:      []string{"BTCUSDT"},
			Interval:     "1h",
			PollInterval: time.Minute,
		},
		Backtest: BacktestConfig{
			InitialCapital: 10000,
			Commission:     0.001,
			Allocation:     0.95,
		},
		Monitoring: MonitoringConfig{PrometheusPort: 8080, HealthPort: 8081},
	}
}

// Load reads envFile (a missing file is not an error), overlays environment
// variables on the defaults and validates the result.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg := Default()
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables that are set
func (c *Config) ApplyEnv() {
	c.Environment = getEnv("ENV", c.Environment)
	c.LogDir = getEnv("LOG_DIR", c.LogDir)

	c.Exchange.Name = getEnv("EXCHANGE_NAME", c.Exchange.Name)
	if strings.EqualFold(c.Exchange.Name, exchange.NameBybit) {
		if c.Exchange.Bybit == nil {
			c.Exchange.Bybit = &exchange.BybitConfig{}
		}
		b := c.Exchange.Bybit
		b.APIKey = getEnv("EXCHANGE_API_KEY", b.APIKey)
		b.APISecret = getEnv("EXCHANGE_SECRET", b.APISecret)
		b.Testnet = getEnvBool("EXCHANGE_TESTNET", b.Testnet)
		b.Demo = getEnvBool("EXCHANGE_DEMO", b.Demo)
		b.Category = getEnv("EXCHANGE_CATEGORY", b.Category)
	}

	c.Risk.MaxRiskPctPerTrade = getEnvFloat("RISK_MAX_PCT_PER_TRADE", c.Risk.MaxRiskPctPerTrade)
	c.Risk.StopLossPct = getEnvFloat("RISK_STOP_LOSS_PCT", c.Risk.StopLossPct)
	c.Risk.BufferPct = getEnvFloat("RISK_BUFFER_PCT", c.Risk.BufferPct)
	c.Risk.TakeProfitPct = getEnvFloat("RISK_TAKE_PROFIT_PCT", c.Risk.TakeProfitPct)

	c.Trading.Symbols = getEnvList("TRADING_SYMBOLS", c.Trading.Symbols)
	c.Trading.Interval = getEnv("TRADING_INTERVAL", c.Trading.Interval)
	c.Trading.PollInterval = getEnvDuration("TRADING_POLL_INTERVAL", c.Trading.PollInterval)
	c.Trading.Stream = getEnvBool("TRADING_STREAM", c.Trading.Stream)

	c.Backtest.InitialCapital = getEnvFloat("BACKTEST_INITIAL_CAPITAL", c.Backtest.InitialCapital)
	c.Backtest.Commission = getEnvFloat("BACKTEST_COMMISSION", c.Backtest.Commission)
	c.Backtest.Allocation = getEnvFloat("BACKTEST_ALLOCATION", c.Backtest.Allocation)

	c.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", c.Monitoring.PrometheusPort)
	c.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", c.Monitoring.HealthPort)

	c.Notifications.TelegramToken = getEnv("TELEGRAM_TOKEN", c.Notifications.TelegramToken)
	c.Notifications.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.Notifications.TelegramChatID)
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := exchange.ValidateConfig(c.Exchange); err != nil {
		return fmt.Errorf("exchange: %w", err)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("at least one trading symbol is required")
	}
	if c.Trading.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be greater than 0")
	}
	if c.Backtest.Commission < 0 || c.Backtest.Commission >= 1 {
		return fmt.Errorf("commission must be in [0, 1)")
	}
	if c.Backtest.Allocation <= 0 || c.Backtest.Allocation > 1 {
		return fmt.Errorf("allocation must be in (0, 1]")
	}
	if c.Notifications.TelegramToken != "" && c.Notifications.TelegramChatID == "" {
		return fmt.Errorf("telegram chat id is required when a telegram token is set")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
