package types

import "time"

// OHLCV is a single candle returned by the venue.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Closes extracts the close prices in chronological order
func Closes(candles []OHLCV) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

// Balance is the available cash on the trading account
type Balance struct {
	Asset     string
	Available float64
	Equity    float64
}
