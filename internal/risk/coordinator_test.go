package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator() *PositionRiskCoordinator {
	return NewPositionRiskCoordinator(DefaultConfig(), nil)
}

// TestHalfKellyScenario tests the reference half-Kelly decision without scaling data
func TestHalfKellyScenario(t *testing.T) {
	c := newTestCoordinator()

	rec, err := c.CalculatePosition(SizingRequest{
		Symbol:          "ASML",
		Price:           1100,
		Equity:          80000,
		Stats:           TradeStats{WinRate: 0.55, AvgWin: 1200, AvgLoss: 900},
		RiskPerTradePct: 1,
		Method:          MethodAuto,
	})
	require.NoError(t, err)

	assert.Equal(t, MethodHalfKelly, rec.Method)
	assert.Equal(t, 7, rec.Shares)
	assert.Equal(t, 7, rec.MaxAllowedShares)
	assert.Equal(t, 1.0, rec.VolatilityScale)
	assert.Equal(t, 1.0, rec.CorrelationScale)
	assert.InDelta(t, 7700.0, rec.PositionValue, 1e-9)
	assert.NotContains(t, rec.Warnings, CappedWarning)
	assert.True(t, rec.Approved)
	assert.NotEmpty(t, rec.Reasoning)
}

// TestCeilingCapsLargerBase tests the min-based ceiling and the capped warning
func TestCeilingCapsLargerBase(t *testing.T) {
	c := newTestCoordinator()

	rec, err := c.CalculatePosition(SizingRequest{
		Symbol:          "ASML",
		Price:           1100,
		Equity:          80000,
		RiskPerTradePct: 20, // fixed risk would give 14 shares
		Method:          MethodFixedRisk,
	})
	require.NoError(t, err)

	assert.Equal(t, 7, rec.MaxAllowedShares)
	assert.Equal(t, 7, rec.Shares)
	assert.Contains(t, rec.Warnings, CappedWarning)
	assert.True(t, rec.Approved, "capping alone must not reject")
}

// TestCeilingUsesMinimum tests that shares never exceed the smaller of the two equity ceilings
func TestCeilingUsesMinimum(t *testing.T) {
	c := newTestCoordinator()

	prices := []float64{3, 17.5, 99.99, 250, 1100, 4999}
	equities := []float64{5000, 25000, 80000, 1_000_000}
	for _, price := range prices {
		for _, equity := range equities {
			rec, err := c.CalculatePosition(SizingRequest{
				Symbol:          "TEST",
				Price:           price,
				Equity:          equity,
				Stats:           TradeStats{WinRate: 0.9, AvgWin: 5, AvgLoss: 1},
				RiskPerTradePct: 50,
			})
			require.NoError(t, err)

			minCeiling := math.Min(equity*0.25, equity*0.10)
			value := float64(rec.Shares) * price
			assert.LessOrEqual(t, value, minCeiling+1e-6, "price=%v equity=%v", price, equity)
			assert.LessOrEqual(t, rec.Shares, rec.MaxAllowedShares)
			assert.Equal(t, int(math.Floor(minCeiling/price)), rec.MaxAllowedShares)
		}
	}
}

// TestFixedRiskFallback tests that missing stats and ATR resolve to exact fixed-fractional sizing
func TestFixedRiskFallback(t *testing.T) {
	c := newTestCoordinator()

	rec, err := c.CalculatePosition(SizingRequest{
		Symbol:          "KO",
		Price:           62.5,
		Equity:          100000,
		Stats:           TradeStats{WinRate: 0, AvgWin: 100, AvgLoss: 50},
		ATR:             0,
		RiskPerTradePct: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, MethodFixedRisk, rec.Method)
	assert.Equal(t, int(math.Floor(100000*2.0/100/62.5)), rec.Shares)
	assert.Equal(t, 32, rec.Shares)
}

func TestVolatilityAndCorrelationScaling(t *testing.T) {
	guard := NewCorrelationGuard(DefaultCorrelationConfig())
	guard.SetCorrelation("AMD", "NVDA", 0.65) // scale 0.55
	c := NewPositionRiskCoordinator(DefaultConfig(), guard)

	// realized vol ~0.64 annualized vs 0.25 target -> ~0.39
	history := alternatingPrices(100, 104, 21)
	rec, err := c.CalculatePosition(SizingRequest{
		Symbol:          "AMD",
		Price:           10,
		Equity:          100000,
		ATR:             0.5,
		RiskPerTradePct: 1,
		PriceHistory:    history,
		Portfolio:       []PositionInfo{{Symbol: "NVDA", Value: 5000, Sector: "semis"}},
		Sector:          "semis",
	})
	require.NoError(t, err)

	assert.Equal(t, MethodATR, rec.Method) // 1000 / (0.5*2) = 1000 base
	assert.Less(t, rec.VolatilityScale, 1.0)
	assert.InDelta(t, 0.55, rec.CorrelationScale, 1e-9)

	afterVol := int(math.Round(1000 * rec.VolatilityScale))
	expected := int(math.Round(float64(afterVol) * 0.55))
	assert.Equal(t, expected, rec.Shares)
	assert.True(t, rec.Approved)
}

func TestScaledSharesFloorAtOne(t *testing.T) {
	assert.Equal(t, 1, scaleShares(1, MinScaleFactor))
	assert.Equal(t, 0, scaleShares(0, 0.5))
	assert.Equal(t, 5, scaleShares(10, 0.5))
}

func TestConcentrationRejects(t *testing.T) {
	c := newTestCoordinator()

	rec, err := c.CalculatePosition(SizingRequest{
		Symbol:          "AAPL",
		Price:           100,
		Equity:          100000,
		RiskPerTradePct: 5,
		Portfolio:       []PositionInfo{{Symbol: "AAPL", Value: 30000, Sector: "tech"}},
		Sector:          "tech",
	})
	require.NoError(t, err)

	assert.False(t, rec.Approved)
	found := false
	for _, w := range rec.Warnings {
		if isBlockingWarning(w) {
			found = true
		}
	}
	assert.True(t, found)
}

// TestQuickHelpersAgreeWithPipeline tests WouldApprove and GetMaxPositionSize against step four
func TestQuickHelpersAgreeWithPipeline(t *testing.T) {
	c := newTestCoordinator()

	assert.Equal(t, 7, c.GetMaxPositionSize(1100, 80000))
	assert.Equal(t, 0, c.GetMaxPositionSize(0, 80000))
	assert.Equal(t, 0, c.GetMaxPositionSize(1100, 0))

	for _, price := range []float64{7.25, 55, 1100} {
		for _, equity := range []float64{10000, 80000} {
			max := c.GetMaxPositionSize(price, equity)
			if max > 0 {
				assert.True(t, c.WouldApprove("X", max, price, equity))
			}
			assert.False(t, c.WouldApprove("X", max+1, price, equity))

			rec, err := c.CalculatePosition(SizingRequest{Symbol: "X", Price: price, Equity: equity, RiskPerTradePct: 100})
			require.NoError(t, err)
			assert.Equal(t, max, rec.MaxAllowedShares)
		}
	}

	// 9% position passes the 10% ceiling; 12% passes 25% but must fail the minimum
	assert.True(t, c.WouldApprove("X", 90, 100, 100000))
	assert.False(t, c.WouldApprove("X", 120, 100, 100000))
}

func TestCalculatePositionRejectsInvalidInput(t *testing.T) {
	c := newTestCoordinator()
	_, err := c.CalculatePosition(SizingRequest{Symbol: "X", Price: 0, Equity: 1000})
	assert.Error(t, err)
	_, err = c.CalculatePosition(SizingRequest{Symbol: "X", Price: 10, Equity: -1})
	assert.Error(t, err)
}
