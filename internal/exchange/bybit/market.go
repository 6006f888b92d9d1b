package bybit

import (
	"context"
	"fmt"
	"sort"

	"github.com/ducminhle1904/intraday-risk-bot/internal/errors"
	"github.com/ducminhle1904/intraday-risk-bot/internal/exchange"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

// GetKlines fetches candles in chronological order
func (c *Client) GetKlines(ctx context.Context, symbol string, interval exchange.Interval, limit int) ([]types.OHLCV, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	params := map[string]interface{}{
		"category": c.config.Category,
		"symbol":   symbol,
		"interval": string(interval),
		"limit":    limit,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, errors.NewVenueUnavailable("bybit", "get_klines", err)
	}
	return parseKlineResponse(result)
}

func parseKlineResponse(response interface{}) ([]types.OHLCV, error) {
	var klineResult struct {
		Symbol   string     `json:"symbol"`
		Category string     `json:"category"`
		List     [][]string `json:"list"`
	}
	if err := decodeResult("get_klines", response, &klineResult); err != nil {
		return nil, err
	}

	klines := make([]types.OHLCV, 0, len(klineResult.List))
	for _, item := range klineResult.List {
		if len(item) < 6 {
			continue
		}
		// [startTime, open, high, low, close, volume, turnover]
		klines = append(klines, types.OHLCV{
			Timestamp: parseTimestamp(item[0]),
			Open:      parseFloat64(item[1]),
			High:      parseFloat64(item[2]),
			Low:       parseFloat64(item[3]),
			Close:     parseFloat64(item[4]),
			Volume:    parseFloat64(item[5]),
		})
	}

	// Bybit returns newest first
	sort.Slice(klines, func(i, j int) bool { return klines[i].Timestamp.Before(klines[j].Timestamp) })
	return klines, nil
}

// GetLatestPrice gets the last traded price for a symbol
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": c.config.Category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return 0, errors.NewVenueUnavailable("bybit", "get_ticker", err)
	}
	return parseLatestPriceResponse(result, symbol)
}

func parseLatestPriceResponse(response interface{}, symbol string) (float64, error) {
	var tickerResult struct {
		Category string `json:"category"`
		List     []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := decodeResult("get_ticker", response, &tickerResult); err != nil {
		return 0, err
	}

	for _, t := range tickerResult.List {
		if t.Symbol == symbol {
			if price := parseFloat64(t.LastPrice); price > 0 {
				return price, nil
			}
		}
	}
	return 0, errors.NewDataUnavailable("bybit", "get_ticker", fmt.Sprintf("no ticker data for %s", symbol))
}
