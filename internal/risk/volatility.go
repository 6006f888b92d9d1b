package risk

import (
	"fmt"
	"math"
)

// TradingDaysPerYear annualizes daily return volatility
const TradingDaysPerYear = 252

// VolatilityConfig controls realized volatility estimation
type VolatilityConfig struct {
	Window           int     `json:"window" yaml:"window"`                       // returns used for the estimate
	MinHistory       int     `json:"min_history" yaml:"min_history"`             // returns required before estimating
	TargetVolatility float64 `json:"target_volatility" yaml:"target_volatility"` // annualized, e.g. 0.25
}

// DefaultVolatilityConfig returns the default estimation window and target
func DefaultVolatilityConfig() VolatilityConfig {
	return VolatilityConfig{
		Window:           20,
		MinHistory:       20,
		TargetVolatility: 0.25,
	}
}

// VolatilityScaler converts realized volatility into a position scale factor.
// It holds no mutable state.
type VolatilityScaler struct {
	config VolatilityConfig
}

// NewVolatilityScaler creates a scaler; zero fields fall back to defaults
func NewVolatilityScaler(config VolatilityConfig) *VolatilityScaler {
	def := DefaultVolatilityConfig()
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.MinHistory <= 0 {
		config.MinHistory = def.MinHistory
	}
	if config.TargetVolatility <= 0 {
		config.TargetVolatility = def.TargetVolatility
	}
	return &VolatilityScaler{config: config}
}

// Estimate returns annualized volatility of log returns, or nil until
// MinHistory returns are available.
func (v *VolatilityScaler) Estimate(prices []float64) *float64 {
	returns, ok := logReturns(prices)
	if !ok || len(returns) < v.config.MinHistory || len(returns) < 2 {
		return nil
	}
	if len(returns) > v.config.Window {
		returns = returns[len(returns)-v.config.Window:]
	}

	annual := stdDev(returns) * math.Sqrt(TradingDaysPerYear)
	return &annual
}

// Scale maps an annualized volatility onto [MinScaleFactor, 1.0]. Missing data
// never blocks a trade, it only leaves the size unscaled.
func (v *VolatilityScaler) Scale(annualVol *float64) ScalingResult {
	if annualVol == nil {
		return ScalingResult{Factor: 1.0, Reason: "insufficient price history, no volatility scaling"}
	}
	if *annualVol <= 0 || math.IsNaN(*annualVol) {
		return ScalingResult{Factor: 1.0, Reason: "zero realized volatility, no volatility scaling"}
	}

	factor := clampScale(v.config.TargetVolatility / *annualVol)
	return ScalingResult{
		Factor: factor,
		Reason: fmt.Sprintf("realized vol %.1f%% vs target %.1f%% -> scale %.2f", *annualVol*100, v.config.TargetVolatility*100, factor),
	}
}

// ScaleFor estimates and scales in one call
func (v *VolatilityScaler) ScaleFor(prices []float64) ScalingResult {
	return v.Scale(v.Estimate(prices))
}

// logReturns fails on non-positive prices so bad ticks never produce a volatility
func logReturns(prices []float64) ([]float64, bool) {
	if len(prices) < 2 {
		return nil, false
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i] <= 0 || prices[i-1] <= 0 {
			return nil, false
		}
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}
	return returns, true
}

// stdDev is the sample standard deviation
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
