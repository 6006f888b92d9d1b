package exchange

import (
	"context"

	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

// AccountQuery reads account state from the venue
type AccountQuery interface {
	GetEquity(ctx context.Context) (float64, error)
	GetAvailableBalance(ctx context.Context) (float64, error)
	GetHeldQuantity(ctx context.Context, symbol string) (int64, error)
}

// OrderVenue submits market orders
type OrderVenue interface {
	PlaceMarketOrder(ctx context.Context, req OrderRequest) (*types.Fill, error)
}

// MarketData provides candles and last prices
type MarketData interface {
	GetKlines(ctx context.Context, symbol string, interval Interval, limit int) ([]types.OHLCV, error)
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)
}

// Venue is the full brokerage boundary used by the bot
type Venue interface {
	AccountQuery
	OrderVenue
	MarketData

	Name() string
	Environment() string
}

// Interval is a candle interval in the venue's notation
type Interval string

const (
	Interval1m  Interval = "1"
	Interval5m  Interval = "5"
	Interval15m Interval = "15"
	Interval1h  Interval = "60"
	Interval1d  Interval = "D"
)

// OrderRequest is a single market order attempt. OrderLinkID is reused across
// retries so the venue can deduplicate.
type OrderRequest struct {
	Symbol      string
	Action      types.OrderAction
	Quantity    int64
	Price       float64 // reference price used when the venue does not report one
	OrderLinkID string
}
