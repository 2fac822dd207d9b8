package exchange

import (
	"fmt"
	"strings"
)

// Supported exchange names
const (
	NameBybit = "bybit"
	NamePaper = "paper"
)

// ExchangeConfig holds configuration for creating exchange instances
type ExchangeConfig struct {
	Name  string       `json:"name" yaml:"name"`                       // bybit or paper
	Bybit *BybitConfig `json:"bybit,omitempty" yaml:"bybit,omitempty"` // Bybit-specific config
	Paper *PaperConfig `json:"paper,omitempty" yaml:"paper,omitempty"` // simulated venue config
}

// BybitConfig holds Bybit-specific configuration
type BybitConfig struct {
	APIKey     string `json:"api_key" yaml:"api_key"`
	APISecret  string `json:"api_secret" yaml:"api_secret"`
	Testnet    bool   `json:"testnet" yaml:"testnet"`
	Demo       bool   `json:"demo" yaml:"demo"`
	Category   string `json:"category" yaml:"category"` // spot, linear or inverse
	PingSymbol string `json:"ping_symbol" yaml:"ping_symbol"`
}

// PaperConfig holds settings for the in-memory paper exchange
type PaperConfig struct {
	QuoteAsset     string  `json:"quote_asset" yaml:"quote_asset"`
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance"`
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
}

// SupportedExchanges returns the list of supported exchange names
func SupportedExchanges() []string {
	return []string{NameBybit, NamePaper}
}

// ValidateConfig validates the exchange configuration
func ValidateConfig(config ExchangeConfig) error {
	if strings.TrimSpace(config.Name) == "" {
		return NewError(CodeInvalidConfig, "Exchange name is required")
	}

	switch strings.ToLower(strings.TrimSpace(config.Name)) {
	case NameBybit:
		return validateBybitConfig(config.Bybit)
	case NamePaper:
		return validatePaperConfig(config.Paper)
	default:
		return NewError(CodeUnsupportedExchange,
			fmt.Sprintf("Exchange '%s' is not supported", config.Name),
			fmt.Sprintf("Supported exchanges: %v", SupportedExchanges()))
	}
}

func validateBybitConfig(config *BybitConfig) error {
	if config == nil {
		return NewError(CodeInvalidConfig, "Bybit configuration is required")
	}
	if config.APIKey == "" {
		return NewError(CodeInvalidConfig, "Bybit API key is required",
			"Set EXCHANGE_API_KEY environment variable or provide in config")
	}
	if config.APISecret == "" {
		return NewError(CodeInvalidConfig, "Bybit API secret is required",
			"Set EXCHANGE_SECRET environment variable or provide in config")
	}
	if config.Testnet && config.Demo {
		return NewError(CodeInvalidConfig, "Cannot use both testnet and demo mode simultaneously",
			"Choose either testnet OR demo mode, not both")
	}
	switch config.Category {
	case "", "spot", "linear", "inverse":
	default:
		return NewError(CodeInvalidConfig, fmt.Sprintf("Unknown Bybit category '%s'", config.Category))
	}
	return nil
}

// A nil paper config means defaults.
func validatePaperConfig(config *PaperConfig) error {
	if config == nil {
		return nil
	}
	if config.InitialBalance < 0 {
		return NewError(CodeInvalidConfig, "Paper initial balance cannot be negative")
	}
	if config.CommissionRate < 0 || config.CommissionRate >= 1 {
		return NewError(CodeInvalidConfig, "Paper commission rate must be in [0, 1)")
	}
	return nil
}
