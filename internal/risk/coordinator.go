package risk

import (
	"fmt"
	"math"
)

// Config holds every sizing and concentration parameter
type Config struct {
	MaxSinglePositionPct float64           `json:"max_single_position_pct" yaml:"max_single_position_pct"`
	MaxPerTradeRiskPct   float64           `json:"max_per_trade_risk_pct" yaml:"max_per_trade_risk_pct"`
	Sizer                SizerConfig       `json:"sizer" yaml:"sizer"`
	Volatility           VolatilityConfig  `json:"volatility" yaml:"volatility"`
	Correlation          CorrelationConfig `json:"correlation" yaml:"correlation"`
}

// DefaultConfig returns the default ceilings (25% single position, 10% per trade)
func DefaultConfig() Config {
	return Config{
		MaxSinglePositionPct: 0.25,
		MaxPerTradeRiskPct:   0.10,
		Sizer:                DefaultSizerConfig(),
		Volatility:           DefaultVolatilityConfig(),
		Correlation:          DefaultCorrelationConfig(),
	}
}

// CappedWarning is attached whenever the hard ceiling reduces the share count
const CappedWarning = "Position capped due to concentration limits"

// PositionRiskCoordinator composes the sizer, the volatility scaler and the
// correlation guard into a single approval decision.
type PositionRiskCoordinator struct {
	config      Config
	sizer       *PositionSizer
	volatility  *VolatilityScaler
	correlation *CorrelationGuard
}

// NewPositionRiskCoordinator wires the three sizing components. The guard is
// passed in so callers can keep feeding it correlations.
func NewPositionRiskCoordinator(config Config, guard *CorrelationGuard) *PositionRiskCoordinator {
	def := DefaultConfig()
	if config.MaxSinglePositionPct <= 0 {
		config.MaxSinglePositionPct = def.MaxSinglePositionPct
	}
	if config.MaxPerTradeRiskPct <= 0 {
		config.MaxPerTradeRiskPct = def.MaxPerTradeRiskPct
	}
	if guard == nil {
		guard = NewCorrelationGuard(config.Correlation)
	}

	vol := NewVolatilityScaler(config.Volatility)
	return &PositionRiskCoordinator{
		config:      config,
		sizer:       NewPositionSizer(config.Sizer, vol),
		volatility:  vol,
		correlation: guard,
	}
}

// Correlation exposes the guard so the trading loop can update the matrix
func (c *PositionRiskCoordinator) Correlation() *CorrelationGuard {
	return c.correlation
}

// CalculatePosition runs the sizing pipeline. The step order is fixed:
// base size, volatility scale, correlation scale, hard ceiling, concentration check.
func (c *PositionRiskCoordinator) CalculatePosition(req SizingRequest) (PositionRecommendation, error) {
	if err := req.Validate(); err != nil {
		return PositionRecommendation{}, fmt.Errorf("invalid sizing request: %w", err)
	}

	rec := PositionRecommendation{Symbol: req.Symbol}

	// 1. base shares
	method, why := c.sizer.Resolve(req)
	base, sizing := c.sizer.Size(req, method)
	rec.Method = method
	rec.Reasoning = append(rec.Reasoning, why, sizing)

	// 2. volatility scaling
	volScale := c.volatility.ScaleFor(req.PriceHistory)
	rec.VolatilityScale = volScale.Factor
	rec.Reasoning = append(rec.Reasoning, volScale.Reason)
	shares := scaleShares(base, volScale.Factor)

	// 3. correlation scaling
	portfolio := normalizeWeights(req.Portfolio, req.Equity)
	corrScale := c.correlation.ScaleFor(req.Symbol, portfolioSymbols(portfolio))
	rec.CorrelationScale = corrScale.Factor
	rec.Reasoning = append(rec.Reasoning, corrScale.Reason)
	shares = scaleShares(shares, corrScale.Factor)

	// 4. hard ceiling
	rec.MaxAllowedShares = c.GetMaxPositionSize(req.Price, req.Equity)

	// 5. cap
	if shares > rec.MaxAllowedShares {
		rec.Reasoning = append(rec.Reasoning, fmt.Sprintf("capped from %d to %d shares", shares, rec.MaxAllowedShares))
		rec.Warnings = append(rec.Warnings, CappedWarning)
		shares = rec.MaxAllowedShares
	}
	rec.Shares = shares
	rec.PositionValue = float64(shares) * req.Price
	rec.PositionPct = rec.PositionValue / req.Equity

	// 6. concentration
	rec.Warnings = append(rec.Warnings,
		c.correlation.CheckConcentrationLimits(req.Symbol, req.Sector, rec.PositionPct, portfolio)...)

	// 7. approval
	rec.Approved = true
	for _, w := range rec.Warnings {
		if isBlockingWarning(w) {
			rec.Approved = false
			break
		}
	}

	return rec, nil
}

// WouldApprove is a cheap pre-check against the hard ceilings only
func (c *PositionRiskCoordinator) WouldApprove(symbol string, shares int, price, equity float64) bool {
	if symbol == "" || shares <= 0 {
		return false
	}
	return shares <= c.GetMaxPositionSize(price, equity)
}

// GetMaxPositionSize returns floor(min(single-position, per-trade) * equity / price)
func (c *PositionRiskCoordinator) GetMaxPositionSize(price, equity float64) int {
	if price <= 0 || equity <= 0 {
		return 0
	}
	ceiling := math.Min(equity*c.config.MaxSinglePositionPct, equity*c.config.MaxPerTradeRiskPct)
	return floorShares(ceiling / price)
}

// scaleShares rounds the scaled size and keeps at least one share when the input was positive
func scaleShares(shares int, factor float64) int {
	if shares <= 0 {
		return 0
	}
	scaled := int(math.Round(float64(shares) * factor))
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}

func normalizeWeights(positions []PositionInfo, equity float64) []PositionInfo {
	out := make([]PositionInfo, len(positions))
	for i, p := range positions {
		if p.Weight == 0 && equity > 0 {
			p.Weight = p.Value / equity
		}
		out[i] = p
	}
	return out
}

func portfolioSymbols(positions []PositionInfo) []string {
	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}
	return symbols
}
