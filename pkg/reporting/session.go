package reporting

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// TradeRecord is one closed round trip
type TradeRecord struct {
	Symbol     string
	Quantity   int64
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	PnL        float64
	Reason     string
}

// PriceChangePct returns the exit-over-entry change as a fraction
func (t TradeRecord) PriceChangePct() float64 {
	if t.EntryPrice <= 0 {
		return 0
	}
	return (t.ExitPrice - t.EntryPrice) / t.EntryPrice
}

// Event is a notable ledger or execution event in the session
type Event struct {
	Time    time.Time
	Kind    string
	Message string
}

// Summary aggregates the session's closed trades
type Summary struct {
	Trades       int
	Winners      int
	Losers       int
	GrossProfit  float64
	GrossLoss    float64
	NetPnL       float64
	WinRate      float64
	ProfitFactor float64
	LargestWin   float64
	LargestLoss  float64
}

// Session collects trades and events for the end-of-session report. Safe for
// concurrent use.
type Session struct {
	started time.Time

	mu     sync.Mutex
	trades []TradeRecord
	events []Event
}

// NewSession starts a session journal
func NewSession(started time.Time) *Session {
	return &Session{started: started}
}

// Started returns the session start time
func (s *Session) Started() time.Time {
	return s.started
}

// AddTrade records a closed trade
func (s *Session) AddTrade(t TradeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
}

// AddEvent records an event
func (s *Session) AddEvent(at time.Time, kind, format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Time: at, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Trades returns the closed trades ordered by exit time
func (s *Session) Trades() []TradeRecord {
	s.mu.Lock()
	out := append([]TradeRecord(nil), s.trades...)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExitTime.Before(out[j].ExitTime) })
	return out
}

// Events returns the recorded events in insertion order
func (s *Session) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Summary computes aggregate statistics
func (s *Session) Summary() Summary {
	var sum Summary
	for _, t := range s.Trades() {
		sum.Trades++
		sum.NetPnL += t.PnL
		switch {
		case t.PnL > 0:
			sum.Winners++
			sum.GrossProfit += t.PnL
			if t.PnL > sum.LargestWin {
				sum.LargestWin = t.PnL
			}
		case t.PnL < 0:
			sum.Losers++
			sum.GrossLoss += -t.PnL
			if t.PnL < sum.LargestLoss {
				sum.LargestLoss = t.PnL
			}
		}
	}
	if sum.Trades > 0 {
		sum.WinRate = float64(sum.Winners) / float64(sum.Trades)
	}
	if sum.GrossLoss > 0 {
		sum.ProfitFactor = sum.GrossProfit / sum.GrossLoss
	}
	return sum
}

// SessionReportPath returns results/<date>/session_<time>.xlsx under dir
func SessionReportPath(dir string, at time.Time) string {
	if dir == "" {
		dir = "results"
	}
	return filepath.Join(dir, at.Format("2006-01-02"), fmt.Sprintf("session_%s.xlsx", at.Format("150405")))
}
