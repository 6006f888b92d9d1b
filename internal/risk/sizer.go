package risk

import (
	"fmt"
	"math"
)

// SelectionRule is one row of the AUTO method decision table
type SelectionRule struct {
	Method  SizingMethod
	Reason  string
	Applies func(req SizingRequest) bool
}

// AutoSelectionRules is evaluated top to bottom; the first matching rule wins.
// The order prefers the most statistically informed method.
var AutoSelectionRules = []SelectionRule{
	{
		Method:  MethodHalfKelly,
		Reason:  "trade statistics available",
		Applies: func(req SizingRequest) bool { return req.Stats.Present() },
	},
	{
		Method:  MethodATR,
		Reason:  "ATR available",
		Applies: func(req SizingRequest) bool { return req.ATR > 0 },
	},
	{
		Method:  MethodFixedRisk,
		Reason:  "no statistics or ATR, fixed-fractional",
		Applies: func(SizingRequest) bool { return true },
	},
}

// SizerConfig holds the sizing formula parameters
type SizerConfig struct {
	ATRStopMultiplier float64 `json:"atr_stop_multiplier" yaml:"atr_stop_multiplier"`
}

// DefaultSizerConfig returns a 2x ATR stop
func DefaultSizerConfig() SizerConfig {
	return SizerConfig{ATRStopMultiplier: 2.0}
}

// PositionSizer computes base share counts. It is a pure function of its inputs.
type PositionSizer struct {
	config     SizerConfig
	volatility *VolatilityScaler
	rules      []SelectionRule
}

// NewPositionSizer creates a sizer using the default AUTO rule table
func NewPositionSizer(config SizerConfig, volatility *VolatilityScaler) *PositionSizer {
	if config.ATRStopMultiplier <= 0 {
		config.ATRStopMultiplier = DefaultSizerConfig().ATRStopMultiplier
	}
	if volatility == nil {
		volatility = NewVolatilityScaler(DefaultVolatilityConfig())
	}
	return &PositionSizer{
		config:     config,
		volatility: volatility,
		rules:      AutoSelectionRules,
	}
}

// Resolve returns the method that will actually be used for the request.
// Explicit methods that lack their inputs fall back to FIXED_RISK.
func (s *PositionSizer) Resolve(req SizingRequest) (SizingMethod, string) {
	if req.Method == "" || req.Method == MethodAuto {
		for _, rule := range s.rules {
			if rule.Applies(req) {
				return rule.Method, fmt.Sprintf("auto-selected %s: %s", rule.Method, rule.Reason)
			}
		}
		return MethodFixedRisk, "auto-selected FIXED_RISK"
	}

	if ok, why := s.eligible(req, req.Method); !ok {
		return MethodFixedRisk, fmt.Sprintf("%s not eligible (%s), falling back to FIXED_RISK", req.Method, why)
	}
	return req.Method, fmt.Sprintf("requested %s", req.Method)
}

func (s *PositionSizer) eligible(req SizingRequest, method SizingMethod) (bool, string) {
	switch method {
	case MethodKelly, MethodHalfKelly:
		if req.Stats.WinRate == 0 {
			return false, "win rate is zero"
		}
		if req.Stats.AvgLoss == 0 {
			return false, "average loss is zero"
		}
		if req.Stats.AvgWin <= 0 {
			return false, "average win is not positive"
		}
		return true, ""
	case MethodATR:
		if req.ATR <= 0 {
			return false, "ATR unavailable"
		}
		return true, ""
	case MethodVolatilityTarget:
		if vol := s.volatility.Estimate(req.PriceHistory); vol == nil || *vol <= 0 {
			return false, "volatility estimate unavailable"
		}
		return true, ""
	case MethodFixedRisk:
		return true, ""
	default:
		return false, "unknown method"
	}
}

// Size computes base shares for a resolved method
func (s *PositionSizer) Size(req SizingRequest, method SizingMethod) (int, string) {
	if ok, why := s.eligible(req, method); !ok {
		shares, reasoning := s.fixedRisk(req)
		return shares, fmt.Sprintf("%s not eligible (%s); %s", method, why, reasoning)
	}

	switch method {
	case MethodKelly:
		return s.kelly(req, 1.0)
	case MethodHalfKelly:
		return s.kelly(req, 0.5)
	case MethodATR:
		return s.atr(req)
	case MethodVolatilityTarget:
		return s.volatilityTarget(req)
	default:
		return s.fixedRisk(req)
	}
}

// KellyFraction returns f* = winRate - (1-winRate)/(avgWin/avgLoss)
func KellyFraction(stats TradeStats) float64 {
	payoff := stats.AvgWin / stats.AvgLoss
	return stats.WinRate - (1-stats.WinRate)/payoff
}

func (s *PositionSizer) kelly(req SizingRequest, multiplier float64) (int, string) {
	f := KellyFraction(req.Stats)
	fraction := f * multiplier
	shares := floorShares(fraction * req.Equity / req.Price)

	label := "Kelly"
	if multiplier != 1.0 {
		label = "Half-Kelly"
	}
	return shares, fmt.Sprintf("%s: f*=%.4f, fraction=%.5f, %d shares", label, f, fraction, shares)
}

func (s *PositionSizer) atr(req SizingRequest) (int, string) {
	riskBudget := req.Equity * req.RiskPerTradePct / 100
	stop := req.ATR * s.config.ATRStopMultiplier
	shares := floorShares(riskBudget / stop)
	return shares, fmt.Sprintf("ATR: risk budget $%.2f / stop $%.4f (%.1fx ATR %.4f) = %d shares",
		riskBudget, stop, s.config.ATRStopMultiplier, req.ATR, shares)
}

func (s *PositionSizer) fixedRisk(req SizingRequest) (int, string) {
	riskBudget := req.Equity * req.RiskPerTradePct / 100
	shares := floorShares(riskBudget / req.Price)
	return shares, fmt.Sprintf("Fixed-fractional: $%.2f (%.2f%% of equity) / price $%.2f = %d shares",
		riskBudget, req.RiskPerTradePct, req.Price, shares)
}

func (s *PositionSizer) volatilityTarget(req SizingRequest) (int, string) {
	annual := *s.volatility.Estimate(req.PriceHistory)
	dailyVol := annual / math.Sqrt(TradingDaysPerYear)
	riskBudget := req.Equity * req.RiskPerTradePct / 100
	shares := floorShares(riskBudget / (req.Price * dailyVol))
	return shares, fmt.Sprintf("Volatility target: $%.2f / (price $%.2f x daily vol %.4f) = %d shares",
		riskBudget, req.Price, dailyVol, shares)
}

func floorShares(x float64) int {
	if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
		return 0
	}
	return int(math.Floor(x))
}
