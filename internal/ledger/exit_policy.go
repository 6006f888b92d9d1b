package ledger

import (
	"fmt"
	"time"

	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

// ExitReason names the rule that closed a position
type ExitReason string

const (
	ExitNone       ExitReason = ""
	ExitMaxHold    ExitReason = "MAX_HOLD"
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitSignal     ExitReason = "EXIT_SIGNAL"
	ExitReversal   ExitReason = "REVERSAL"
	ExitFlatten    ExitReason = "FLATTEN"
	ExitEmergency  ExitReason = "EMERGENCY"
	ExitShutdown   ExitReason = "SHUTDOWN"
)

// ExitConfig holds the holding-period and price rules
type ExitConfig struct {
	MinHold       time.Duration `json:"min_hold"`
	MaxHold       time.Duration `json:"max_hold"`
	StopLossPct   float64       `json:"stop_loss_pct"`   // percent, e.g. 1.0
	TakeProfitPct float64       `json:"take_profit_pct"` // percent, e.g. 2.0
}

// DefaultExitConfig returns a 3 minute minimum and 45 minute maximum hold
func DefaultExitConfig() ExitConfig {
	return ExitConfig{
		MinHold:       3 * time.Minute,
		MaxHold:       45 * time.Minute,
		StopLossPct:   1.0,
		TakeProfitPct: 2.0,
	}
}

// ExitDecision is the result of evaluating an open position
type ExitDecision struct {
	Exit   bool
	Reason ExitReason
	Forced bool // bypasses blackout suspension
	Detail string
}

// EvaluateExit applies the exit rules in precedence order. The hard time exit
// overrides everything; inside the minimum hold only the stop-loss is checked.
func EvaluateExit(cfg ExitConfig, pos Position, sig types.Signal, price float64, now time.Time) ExitDecision {
	if pos.Quantity <= 0 {
		return ExitDecision{}
	}

	age := pos.Age(now)
	if cfg.MaxHold > 0 && age >= cfg.MaxHold {
		return ExitDecision{
			Exit:   true,
			Reason: ExitMaxHold,
			Forced: true,
			Detail: fmt.Sprintf("held %s, max hold %s", age.Round(time.Second), cfg.MaxHold),
		}
	}

	change := 0.0
	if pos.EntryPrice > 0 && price > 0 {
		change = (price - pos.EntryPrice) / pos.EntryPrice * 100
	}

	if cfg.StopLossPct > 0 && change <= -cfg.StopLossPct {
		return ExitDecision{
			Exit:   true,
			Reason: ExitStopLoss,
			Detail: fmt.Sprintf("price change %.2f%% <= -%.2f%%", change, cfg.StopLossPct),
		}
	}

	if age < cfg.MinHold {
		return ExitDecision{Detail: fmt.Sprintf("within minimum hold (%s < %s)", age.Round(time.Second), cfg.MinHold)}
	}

	switch {
	case cfg.TakeProfitPct > 0 && change >= cfg.TakeProfitPct:
		return ExitDecision{Exit: true, Reason: ExitTakeProfit, Detail: fmt.Sprintf("price change %.2f%% >= %.2f%%", change, cfg.TakeProfitPct)}
	case sig.ExitSignal:
		return ExitDecision{Exit: true, Reason: ExitSignal, Detail: "exit signal"}
	case sig.Direction == types.DirectionShort:
		return ExitDecision{Exit: true, Reason: ExitReversal, Detail: fmt.Sprintf("direction reversed to %s", sig.Direction)}
	}

	return ExitDecision{}
}
