package paper

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ducminhle1904/intraday-risk-bot/internal/errors"
	"github.com/ducminhle1904/intraday-risk-bot/internal/exchange"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

// Venue is an in-memory venue that fills market orders at the last known
// price. It backs dry-run mode and the bot's tests.
type Venue struct {
	mu       sync.Mutex
	cash     float64
	holdings map[string]int64
	prices   map[string]float64
	candles  map[string][]types.OHLCV
	fills    []types.Fill
	attempts int
	failures []error
	seq      int
}

// NewVenue creates a paper account holding startingCash
func NewVenue(startingCash float64) *Venue {
	return &Venue{
		cash:     startingCash,
		holdings: make(map[string]int64),
		prices:   make(map[string]float64),
		candles:  make(map[string][]types.OHLCV),
	}
}

// Name returns the venue name
func (v *Venue) Name() string {
	return "paper"
}

// Environment returns "paper"
func (v *Venue) Environment() string {
	return "paper"
}

// SetPrice sets the last traded price for symbol
func (v *Venue) SetPrice(symbol string, price float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prices[symbol] = price
}

// SetCandles replaces the candle history for symbol and moves the last price
// to the final close
func (v *Venue) SetCandles(symbol string, candles []types.OHLCV) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.candles[symbol] = append([]types.OHLCV(nil), candles...)
	if n := len(candles); n > 0 {
		v.prices[symbol] = candles[n-1].Close
	}
}

// SetHolding seeds a position
func (v *Venue) SetHolding(symbol string, quantity int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.holdings[symbol] = quantity
}

// FailNext makes the next len(errs) order attempts return those errors in order
func (v *Venue) FailNext(errs ...error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failures = append(v.failures, errs...)
}

// Fills returns every filled order
func (v *Venue) Fills() []types.Fill {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]types.Fill(nil), v.fills...)
}

// Attempts returns the number of order attempts, failed ones included
func (v *Venue) Attempts() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.attempts
}

// Cash returns the uninvested balance
func (v *Venue) Cash() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cash
}

// GetEquity returns cash plus holdings marked at the last price
func (v *Venue) GetEquity(ctx context.Context) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	equity := v.cash
	for symbol, qty := range v.holdings {
		equity += float64(qty) * v.prices[symbol]
	}
	return equity, nil
}

// GetAvailableBalance returns the uninvested balance
func (v *Venue) GetAvailableBalance(ctx context.Context) (float64, error) {
	return v.Cash(), nil
}

// GetHeldQuantity returns the held quantity for symbol
func (v *Venue) GetHeldQuantity(ctx context.Context, symbol string) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.holdings[symbol], nil
}

// GetKlines returns up to limit of the most recent candles
func (v *Venue) GetKlines(ctx context.Context, symbol string, interval exchange.Interval, limit int) ([]types.OHLCV, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	candles := v.candles[symbol]
	if len(candles) == 0 {
		return nil, errors.NewDataUnavailable("paper", "get_klines", fmt.Sprintf("no candles for %s", symbol))
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return append([]types.OHLCV(nil), candles...), nil
}

// GetLatestPrice returns the last price for symbol
func (v *Venue) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	price, ok := v.prices[symbol]
	if !ok || price <= 0 {
		return 0, errors.NewDataUnavailable("paper", "get_ticker", fmt.Sprintf("no price for %s", symbol))
	}
	return price, nil
}

// PlaceMarketOrder fills immediately at the last price, or at the request's
// reference price when no market price is known
func (v *Venue) PlaceMarketOrder(ctx context.Context, req exchange.OrderRequest) (*types.Fill, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.attempts++
	if len(v.failures) > 0 {
		err := v.failures[0]
		v.failures = v.failures[1:]
		if err != nil {
			return nil, err
		}
	}

	if req.Quantity <= 0 {
		return nil, errors.NewOrderRejected("paper", "place_order", fmt.Errorf("invalid quantity %d", req.Quantity))
	}
	price := v.prices[req.Symbol]
	if price <= 0 {
		price = req.Price
	}
	if price <= 0 || math.IsNaN(price) {
		return nil, errors.NewOrderRejected("paper", "place_order", fmt.Errorf("no price for %s", req.Symbol))
	}

	cost := float64(req.Quantity) * price
	switch req.Action {
	case types.ActionBuy:
		if cost > v.cash {
			return nil, errors.NewOrderRejected("paper", "place_order",
				fmt.Errorf("insufficient balance: need %.2f, have %.2f", cost, v.cash))
		}
		v.cash -= cost
		v.holdings[req.Symbol] += req.Quantity
	case types.ActionSell:
		if req.Quantity > v.holdings[req.Symbol] {
			return nil, errors.NewOrderRejected("paper", "place_order",
				fmt.Errorf("insufficient position: sell %d, hold %d", req.Quantity, v.holdings[req.Symbol]))
		}
		v.cash += cost
		v.holdings[req.Symbol] -= req.Quantity
	default:
		return nil, errors.NewOrderRejected("paper", "place_order", fmt.Errorf("unknown action %q", req.Action))
	}

	v.seq++
	fill := types.Fill{
		OrderID:     fmt.Sprintf("paper-%d", v.seq),
		OrderLinkID: req.OrderLinkID,
		Symbol:      req.Symbol,
		Action:      req.Action,
		Quantity:    req.Quantity,
		Price:       price,
	}
	v.fills = append(v.fills, fill)
	return &fill, nil
}
