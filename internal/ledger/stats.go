package ledger

import "github.com/ducminhle1904/intraday-risk-bot/internal/risk"

// statsTracker accumulates realized trade outcomes for Kelly sizing
type statsTracker struct {
	wins      int
	losses    int
	sumWins   float64
	sumLoss   float64 // positive magnitude
	breakeven int
}

func (s *statsTracker) add(pnl float64) {
	switch {
	case pnl > 0:
		s.wins++
		s.sumWins += pnl
	case pnl < 0:
		s.losses++
		s.sumLoss += -pnl
	default:
		s.breakeven++
	}
}

func (s *statsTracker) summary() risk.TradeStats {
	total := s.wins + s.losses + s.breakeven
	if total == 0 {
		return risk.TradeStats{}
	}
	stats := risk.TradeStats{
		WinRate: float64(s.wins) / float64(total),
		Trades:  total,
	}
	if s.wins > 0 {
		stats.AvgWin = s.sumWins / float64(s.wins)
	}
	if s.losses > 0 {
		stats.AvgLoss = s.sumLoss / float64(s.losses)
	}
	return stats
}
