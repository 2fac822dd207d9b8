package adapters

import (
	"fmt"
	"strings"

	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange"
	"github.com/ducminhle1904/crypto-trade-engine/internal/exchange/paper"
)

// Factory creates exchange instances based on configuration. It lives here
// rather than in the exchange package because the concrete adapters import
// exchange.
type Factory struct{}

// NewFactory creates a new exchange factory instance
func NewFactory() *Factory {
	return &Factory{}
}

// CreateExchange creates an exchange instance based on the provided configuration
func (f *Factory) CreateExchange(config exchange.ExchangeConfig) (exchange.Exchange, error) {
	if err := exchange.ValidateConfig(config); err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(config.Name)) {
	case exchange.NameBybit:
		adapter, err := NewBybitAdapter(config.Bybit)
		if err != nil {
			return nil, exchange.NewError(exchange.CodeInvalidConfig, "Failed to create Bybit adapter", err.Error())
		}
		return adapter, nil
	case exchange.NamePaper:
		return paper.New(paperConfig(config.Paper)), nil
	default:
		return nil, exchange.NewError(exchange.CodeUnsupportedExchange,
			fmt.Sprintf("Exchange '%s' is not supported", config.Name))
	}
}

// GetSupportedExchanges returns a list of supported exchange names
func (f *Factory) GetSupportedExchanges() []string {
	return exchange.SupportedExchanges()
}

func paperConfig(c *exchange.PaperConfig) paper.Config {
	cfg := paper.DefaultConfig()
	if c == nil {
		return cfg
	}
	if c.QuoteAsset != "" {
		cfg.QuoteAsset = c.QuoteAsset
	}
	if c.InitialBalance > 0 {
		cfg.InitialBalance = c.InitialBalance
	}
	cfg.CommissionRate = c.CommissionRate
	return cfg
}
