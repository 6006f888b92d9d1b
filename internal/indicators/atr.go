package indicators

import (
	"fmt"
	"math"

	"github.com/ducminhle1904/intraday-risk-bot/internal/errors"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

// DefaultATRPeriod is the standard Wilder period
const DefaultATRPeriod = 14

// ATR is the Average True Range with Wilder's smoothing
type ATR struct {
	period int
}

// NewATR creates an ATR indicator; non-positive periods use the default
func NewATR(period int) *ATR {
	if period <= 0 {
		period = DefaultATRPeriod
	}
	return &ATR{period: period}
}

// GetRequiredPeriods returns the minimum number of candles needed
func (a *ATR) GetRequiredPeriods() int {
	return a.period + 1 // extra candle for the first previous close
}

// Calculate returns the ATR of the whole series. The first value is the
// simple mean of the first period true ranges, then Wilder-smoothed.
func (a *ATR) Calculate(data []types.OHLCV) (float64, error) {
	if len(data) < a.GetRequiredPeriods() {
		return 0, errors.NewDataUnavailable("indicators", "atr",
			fmt.Sprintf("need %d candles, have %d", a.GetRequiredPeriods(), len(data)))
	}

	var sum float64
	for i := 1; i <= a.period; i++ {
		sum += TrueRange(data[i], data[i-1].Close)
	}
	atr := sum / float64(a.period)

	n := float64(a.period)
	for i := a.period + 1; i < len(data); i++ {
		atr = (atr*(n-1) + TrueRange(data[i], data[i-1].Close)) / n
	}

	if math.IsNaN(atr) || atr < 0 {
		return 0, errors.NewDataUnavailable("indicators", "atr", "invalid candle data")
	}
	return atr, nil
}

// TrueRange = max(High-Low, |High-PrevClose|, |Low-PrevClose|)
func TrueRange(current types.OHLCV, prevClose float64) float64 {
	hl := current.High - current.Low
	hc := math.Abs(current.High - prevClose)
	lc := math.Abs(current.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}
