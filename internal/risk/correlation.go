package risk

import (
	"fmt"
	"math"
	"sync"
)

// CorrelationConfig holds diversification and concentration ceilings
type CorrelationConfig struct {
	Threshold          float64 `json:"threshold" yaml:"threshold"`                     // average correlation below which no penalty applies
	MaxSymbolWeight    float64 `json:"max_symbol_weight" yaml:"max_symbol_weight"`     // post-trade weight ceiling per symbol
	MaxSectorWeight    float64 `json:"max_sector_weight" yaml:"max_sector_weight"`     // post-trade weight ceiling per sector
	CriticalMultiplier float64 `json:"critical_multiplier" yaml:"critical_multiplier"` // ceiling multiple reported as critical
	WarnFraction       float64 `json:"warn_fraction" yaml:"warn_fraction"`             // fraction of a ceiling that triggers an advisory
}

// DefaultCorrelationConfig returns the default diversification settings
func DefaultCorrelationConfig() CorrelationConfig {
	return CorrelationConfig{
		Threshold:          0.3,
		MaxSymbolWeight:    0.25,
		MaxSectorWeight:    0.40,
		CriticalMultiplier: 1.5,
		WarnFraction:       0.8,
	}
}

type symbolPair struct{ a, b string }

func newPair(a, b string) symbolPair {
	if a > b {
		a, b = b, a
	}
	return symbolPair{a: a, b: b}
}

// CorrelationGuard tracks pairwise correlations and checks concentration limits.
// Portfolio snapshots are passed in per call; only the matrix is shared.
type CorrelationGuard struct {
	config CorrelationConfig

	mu     sync.RWMutex
	matrix map[symbolPair]float64
}

// NewCorrelationGuard creates a guard with an empty correlation matrix
func NewCorrelationGuard(config CorrelationConfig) *CorrelationGuard {
	def := DefaultCorrelationConfig()
	if config.Threshold <= 0 || config.Threshold >= 1 {
		config.Threshold = def.Threshold
	}
	if config.MaxSymbolWeight <= 0 {
		config.MaxSymbolWeight = def.MaxSymbolWeight
	}
	if config.MaxSectorWeight <= 0 {
		config.MaxSectorWeight = def.MaxSectorWeight
	}
	if config.CriticalMultiplier <= 1 {
		config.CriticalMultiplier = def.CriticalMultiplier
	}
	if config.WarnFraction <= 0 || config.WarnFraction >= 1 {
		config.WarnFraction = def.WarnFraction
	}
	return &CorrelationGuard{
		config: config,
		matrix: make(map[symbolPair]float64),
	}
}

// SetCorrelation stores a correlation for a pair, clamped to [-1, 1]
func (g *CorrelationGuard) SetCorrelation(a, b string, rho float64) {
	if a == b || math.IsNaN(rho) {
		return
	}
	rho = math.Max(-1, math.Min(1, rho))

	g.mu.Lock()
	defer g.mu.Unlock()
	g.matrix[newPair(a, b)] = rho
}

// Correlation returns the stored correlation for a pair
func (g *CorrelationGuard) Correlation(a, b string) (float64, bool) {
	if a == b {
		return 1.0, true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	rho, ok := g.matrix[newPair(a, b)]
	return rho, ok
}

// UpdateFromPrices computes the Pearson correlation of log returns over the
// common tail of two price series and stores it.
func (g *CorrelationGuard) UpdateFromPrices(a string, pricesA []float64, b string, pricesB []float64) (float64, bool) {
	ra, okA := logReturns(pricesA)
	rb, okB := logReturns(pricesB)
	if !okA || !okB {
		return 0, false
	}

	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	rho, ok := pearson(ra[len(ra)-n:], rb[len(rb)-n:])
	if !ok {
		return 0, false
	}
	g.SetCorrelation(a, b, rho)
	return rho, true
}

// AverageCorrelation averages the known correlations between the candidate
// and existing symbols. Unknown pairs are skipped; no data yields 0.
func (g *CorrelationGuard) AverageCorrelation(candidate string, existing []string) float64 {
	sum, n := 0.0, 0
	for _, sym := range existing {
		if sym == candidate {
			continue
		}
		if rho, ok := g.Correlation(candidate, sym); ok {
			sum += rho
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// CorrelationScaling is non-increasing in avgCorrelation: 1.0 up to the
// threshold, then linear down to MinScaleFactor at perfect correlation.
func (g *CorrelationGuard) CorrelationScaling(avgCorrelation float64) float64 {
	if math.IsNaN(avgCorrelation) || avgCorrelation <= g.config.Threshold {
		return 1.0
	}
	excess := (math.Min(avgCorrelation, 1) - g.config.Threshold) / (1 - g.config.Threshold)
	return clampScale(1 - excess*(1-MinScaleFactor))
}

// ScaleFor combines AverageCorrelation and CorrelationScaling
func (g *CorrelationGuard) ScaleFor(candidate string, existing []string) ScalingResult {
	avg := g.AverageCorrelation(candidate, existing)
	factor := g.CorrelationScaling(avg)
	if factor == 1.0 {
		return ScalingResult{Factor: 1.0, Reason: fmt.Sprintf("avg correlation %.2f, no diversification penalty", avg)}
	}
	return ScalingResult{Factor: factor, Reason: fmt.Sprintf("avg correlation %.2f -> scale %.2f", avg, factor)}
}

// CheckConcentrationLimits compares the post-trade weight of symbol and of its
// sector against the ceilings. proposedWeight is the weight added by the trade.
func (g *CorrelationGuard) CheckConcentrationLimits(symbol, sector string, proposedWeight float64, existing []PositionInfo) []string {
	symbolWeight := proposedWeight
	sectorWeight := proposedWeight
	for _, p := range existing {
		if p.Symbol == symbol {
			symbolWeight += p.Weight
		}
		if sector != "" && p.Sector == sector {
			sectorWeight += p.Weight
		}
	}

	var warnings []string
	if w := g.checkCeiling(symbol, "single-position", symbolWeight, g.config.MaxSymbolWeight); w != "" {
		warnings = append(warnings, w)
	}
	if sector != "" {
		if w := g.checkCeiling("sector "+sector, "sector", sectorWeight, g.config.MaxSectorWeight); w != "" {
			warnings = append(warnings, w)
		}
	}
	return warnings
}

func (g *CorrelationGuard) checkCeiling(subject, limit string, weight, ceiling float64) string {
	switch {
	case weight > ceiling*g.config.CriticalMultiplier:
		return fmt.Sprintf("critical: %s weight %.1f%% exceeds max %s limit %.1f%%", subject, weight*100, limit, ceiling*100)
	case weight > ceiling:
		return fmt.Sprintf("%s weight %.1f%% exceeds max %s limit %.1f%%", subject, weight*100, limit, ceiling*100)
	case weight > ceiling*g.config.WarnFraction:
		return fmt.Sprintf("%s weight %.1f%% approaching %s limit %.1f%%", subject, weight*100, limit, ceiling*100)
	}
	return ""
}

func pearson(a, b []float64) (float64, bool) {
	n := len(a)
	if n < 3 || len(b) != n {
		return 0, false
	}
	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varA*varB), true
}
