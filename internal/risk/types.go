package risk

import (
	"fmt"
	"strings"
)

// MinScaleFactor is the floor for every volatility and correlation scale factor
const MinScaleFactor = 0.1

// SizingMethod selects the formula used to compute base shares
type SizingMethod string

const (
	MethodAuto             SizingMethod = "AUTO"
	MethodKelly            SizingMethod = "KELLY"
	MethodHalfKelly        SizingMethod = "HALF_KELLY"
	MethodATR              SizingMethod = "ATR"
	MethodFixedRisk        SizingMethod = "FIXED_RISK"
	MethodVolatilityTarget SizingMethod = "VOLATILITY_TARGET"
)

// ParseSizingMethod parses a method name, accepting lower case and an empty string for AUTO
func ParseSizingMethod(s string) (SizingMethod, error) {
	switch m := SizingMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return MethodAuto, nil
	case MethodAuto, MethodKelly, MethodHalfKelly, MethodATR, MethodFixedRisk, MethodVolatilityTarget:
		return m, nil
	default:
		return "", fmt.Errorf("unknown sizing method %q", s)
	}
}

// TradeStats summarizes closed trades for Kelly sizing
type TradeStats struct {
	WinRate float64 `json:"win_rate"`
	AvgWin  float64 `json:"avg_win"`
	AvgLoss float64 `json:"avg_loss"` // positive magnitude
	Trades  int     `json:"trades"`
}

// Present reports whether the statistics can drive a Kelly fraction
func (s TradeStats) Present() bool {
	return s.WinRate > 0 && s.AvgWin > 0 && s.AvgLoss > 0
}

// PositionInfo is a read-only snapshot of an existing holding
type PositionInfo struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"` // fraction of equity; derived from Value when zero
	Sector string  `json:"sector,omitempty"`
}

// SizingRequest carries everything needed for one sizing decision
type SizingRequest struct {
	Symbol          string
	Price           float64
	Equity          float64
	Stats           TradeStats
	ATR             float64
	RiskPerTradePct float64 // percent of equity, e.g. 1.0
	PriceHistory    []float64
	Portfolio       []PositionInfo
	Sector          string
	Method          SizingMethod
}

// Validate checks the inputs every sizing formula relies on
func (r SizingRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if r.Price <= 0 {
		return fmt.Errorf("price must be greater than 0, got %v", r.Price)
	}
	if r.Equity <= 0 {
		return fmt.Errorf("equity must be greater than 0, got %v", r.Equity)
	}
	if r.RiskPerTradePct < 0 {
		return fmt.Errorf("risk per trade must not be negative")
	}
	return nil
}

// ScalingResult is a multiplicative adjustment in [MinScaleFactor, 1.0]
type ScalingResult struct {
	Factor float64
	Reason string
}

// PositionRecommendation is the outcome of one sizing decision
type PositionRecommendation struct {
	Symbol           string       `json:"symbol"`
	Shares           int          `json:"shares"`
	MaxAllowedShares int          `json:"max_allowed_shares"`
	PositionValue    float64      `json:"position_value"`
	PositionPct      float64      `json:"position_pct"`
	Method           SizingMethod `json:"method"`
	VolatilityScale  float64      `json:"volatility_scale"`
	CorrelationScale float64      `json:"correlation_scale"`
	Reasoning        []string     `json:"reasoning"`
	Warnings         []string     `json:"warnings"`
	Approved         bool         `json:"approved"`
}

// Blocking markers; any warning containing one of these rejects the trade
const (
	markerCritical   = "critical"
	markerExceedsMax = "exceeds max"
)

func isBlockingWarning(w string) bool {
	lw := strings.ToLower(w)
	return strings.Contains(lw, markerCritical) || strings.Contains(lw, markerExceedsMax)
}

func clampScale(f float64) float64 {
	if f < MinScaleFactor {
		return MinScaleFactor
	}
	if f > 1.0 {
		return 1.0
	}
	return f
}
