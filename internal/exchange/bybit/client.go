package bybit

import (
	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// DemoURL is Bybit's demo trading endpoint (paper trading on live data)
const DemoURL = "https://api-demo.bybit.com"

// Config holds the configuration for the Bybit venue
type Config struct {
	APIKey      string
	APISecret   string
	Testnet     bool
	Demo        bool
	Category    string // "spot" or "linear"
	QuoteCoin   string // balance coin, e.g. "USDT"
	AccountType string // "UNIFIED"
}

// Client implements exchange.Venue on top of the official Bybit SDK
type Client struct {
	httpClient *bybit_api.Client
	config     Config
}

// NewClient creates a new Bybit client
func NewClient(config Config) *Client {
	if config.Category == "" {
		config.Category = "spot"
	}
	if config.QuoteCoin == "" {
		config.QuoteCoin = "USDT"
	}
	if config.AccountType == "" {
		config.AccountType = "UNIFIED"
	}

	var baseURL string
	switch {
	case config.Demo:
		baseURL = DemoURL
	case config.Testnet:
		baseURL = bybit_api.TESTNET
	default:
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Client{httpClient: httpClient, config: config}
}

// Name returns the venue name
func (c *Client) Name() string {
	return "bybit"
}

// Environment returns "demo", "testnet" or "mainnet"
func (c *Client) Environment() string {
	switch {
	case c.config.Demo:
		return "demo"
	case c.config.Testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}
