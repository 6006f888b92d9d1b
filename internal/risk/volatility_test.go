package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alternatingPrices builds n prices bouncing between a and b
func alternatingPrices(a, b float64, n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		if i%2 == 0 {
			prices[i] = a
		} else {
			prices[i] = b
		}
	}
	return prices
}

// TestEstimateRequiresMinHistory tests that the estimate is undefined below the minimum history
func TestEstimateRequiresMinHistory(t *testing.T) {
	v := NewVolatilityScaler(DefaultVolatilityConfig())

	assert.Nil(t, v.Estimate(nil))
	assert.Nil(t, v.Estimate([]float64{100}))
	assert.Nil(t, v.Estimate(alternatingPrices(100, 102, 20))) // 19 returns
	assert.NotNil(t, v.Estimate(alternatingPrices(100, 102, 21)))
}

func TestEstimateAnnualizesLogReturns(t *testing.T) {
	v := NewVolatilityScaler(DefaultVolatilityConfig())

	est := v.Estimate(alternatingPrices(100, 102, 21))
	require.NotNil(t, est)

	r := math.Log(1.02)
	expected := r * math.Sqrt(20.0/19.0) * math.Sqrt(252)
	assert.InDelta(t, expected, *est, 1e-9)
}

func TestEstimateUsesTrailingWindow(t *testing.T) {
	v := NewVolatilityScaler(VolatilityConfig{Window: 20, MinHistory: 20, TargetVolatility: 0.25})

	// wild early history followed by a calm window
	prices := append(alternatingPrices(100, 150, 30), alternatingPrices(100, 102, 21)...)
	calm := v.Estimate(alternatingPrices(100, 102, 21))
	windowed := v.Estimate(prices)
	require.NotNil(t, calm)
	require.NotNil(t, windowed)
	assert.InDelta(t, *calm, *windowed, 1e-9)
}

func TestEstimateRejectsNonPositivePrices(t *testing.T) {
	v := NewVolatilityScaler(DefaultVolatilityConfig())
	prices := alternatingPrices(100, 102, 25)
	prices[10] = 0
	assert.Nil(t, v.Estimate(prices))
}

// TestScale tests clamping of the inverse volatility factor
func TestScale(t *testing.T) {
	v := NewVolatilityScaler(DefaultVolatilityConfig())
	f := func(x float64) *float64 { return &x }

	tests := []struct {
		name     string
		vol      *float64
		expected float64
	}{
		{"missing data is neutral", nil, 1.0},
		{"zero vol is neutral", f(0), 1.0},
		{"below target caps at one", f(0.10), 1.0},
		{"at target", f(0.25), 1.0},
		{"double target halves", f(0.50), 0.5},
		{"extreme vol floors", f(10), MinScaleFactor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Scale(tt.vol)
			assert.InDelta(t, tt.expected, got.Factor, 1e-9)
			assert.NotEmpty(t, got.Reason)
		})
	}
}
