package bybit

import (
	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// DemoURL is the Bybit demo trading REST endpoint.
const DemoURL = "https://api-demo.bybit.com"

// Client wraps the Bybit API client with additional functionality
type Client struct {
	httpClient        *bybit_api.Client
	instrumentManager *InstrumentManager
	category          string
	testnet           bool
	demo              bool
}

// Config holds the configuration for the Bybit client
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool   // Demo trading environment
	Category  string // spot, linear or inverse; defaults to spot
}

// NewClient creates a new Bybit client
func NewClient(config Config) *Client {
	var baseURL string
	if config.Demo {
		baseURL = DemoURL
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	category := config.Category
	if category == "" {
		category = "spot"
	}

	c := &Client{
		httpClient: httpClient,
		category:   category,
		testnet:    config.Testnet,
		demo:       config.Demo,
	}
	c.instrumentManager = NewInstrumentManager(c)
	return c
}

// Category returns the product category requests default to
func (c *Client) Category() string {
	return c.category
}

// Instruments returns the instrument cache
func (c *Client) Instruments() *InstrumentManager {
	return c.instrumentManager
}

// IsTestnet returns whether the client is configured for testnet
func (c *Client) IsTestnet() bool {
	return c.testnet
}

// IsDemo returns whether the client is configured for demo trading
func (c *Client) IsDemo() bool {
	return c.demo
}

// GetEnvironment returns a string describing the current environment
func (c *Client) GetEnvironment() string {
	if c.demo {
		return "demo"
	} else if c.testnet {
		return "testnet"
	}
	return "mainnet"
}

func (c *Client) categoryOr(category string) string {
	if category == "" {
		return c.category
	}
	return category
}
