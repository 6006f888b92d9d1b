package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/intraday-risk-bot/internal/logger"
	"github.com/ducminhle1904/intraday-risk-bot/internal/risk"
)

// Flag is one of the non-exclusive trading states
type Flag string

const (
	FlagActive            Flag = "ACTIVE"
	FlagPausedUser        Flag = "PAUSED_USER"
	FlagPausedWeeklyLimit Flag = "PAUSED_WEEKLY_LIMIT"
	FlagBlackout          Flag = "BLACKOUT"
	FlagEmergencyShutdown Flag = "EMERGENCY_SHUTDOWN"
)

// Config holds the loss breakers and calendar settings
type Config struct {
	DailyLossLimit  float64        `json:"daily_loss_limit"`
	WeeklyLossLimit float64        `json:"weekly_loss_limit"`
	ExitCooldown    time.Duration  `json:"exit_cooldown"`
	Location        *time.Location `json:"-"`
}

// DefaultConfig returns conservative defaults
func DefaultConfig() Config {
	return Config{
		DailyLossLimit:  1000,
		WeeklyLossLimit: 2500,
		ExitCooldown:    5 * time.Minute,
		Location:        time.UTC,
	}
}

// WeeklySnapshot is the persisted part of the ledger
type WeeklySnapshot struct {
	Week           string          `json:"week"`
	WeeklyPnL      decimal.Decimal `json:"weekly_pnl"`
	WeeklyLimitHit bool            `json:"weekly_limit_hit"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Store persists the weekly P&L across restarts
type Store interface {
	LoadWeekly(ctx context.Context) (*WeeklySnapshot, error)
	SaveWeekly(ctx context.Context, snapshot WeeklySnapshot) error
}

// LedgerEvent describes the transitions caused by a realized P&L
type LedgerEvent struct {
	DailyPnL             float64
	WeeklyPnL            float64
	EmergencyTriggered   bool // first breach of the daily limit; caller must flatten all
	WeeklyLimitTriggered bool
}

// Status is a read-only view of the ledger
type Status struct {
	Flags           []Flag    `json:"flags"`
	DailyPnL        float64   `json:"daily_pnl"`
	WeeklyPnL       float64   `json:"weekly_pnl"`
	Week            string    `json:"week"`
	WeeklyLimitHit  bool      `json:"weekly_limit_hit"`
	Emergency       bool      `json:"emergency"`
	Blackout        bool      `json:"blackout"`
	BlackoutSymbol  string    `json:"blackout_symbol,omitempty"`
	Veto            bool      `json:"veto"`
	VetoReason      string    `json:"veto_reason,omitempty"`
	VetoRefreshedAt time.Time `json:"veto_refreshed_at"`
	OpenPositions   int       `json:"open_positions"`
}

// Option customizes a RiskLedger
type Option func(*RiskLedger)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *RiskLedger) { l.now = now }
}

// WithLogger attaches a logger
func WithLogger(log *logger.Logger) Option {
	return func(l *RiskLedger) { l.logger = log }
}

// RiskLedger is the process-wide trading state. All fields change only through
// its methods, under mu.
type RiskLedger struct {
	config Config
	store  Store
	now    func() time.Time
	logger *logger.Logger

	positions *PositionBook

	mu              sync.RWMutex
	dailyPnL        decimal.Decimal
	weeklyPnL       decimal.Decimal
	day             string
	week            string
	weeklyLimitHit  bool
	emergency       bool
	userPaused      bool
	blackout        bool
	blackoutSymbol  string
	veto            bool
	vetoReason      string
	vetoRefreshedAt time.Time
	stats           statsTracker

	saveMu sync.Mutex
}

// NewRiskLedger creates a ledger; store may be nil for an in-memory ledger
func NewRiskLedger(config Config, store Store, opts ...Option) *RiskLedger {
	if config.Location == nil {
		config.Location = time.UTC
	}
	l := &RiskLedger{
		config: config,
		store:  store,
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.positions = NewPositionBook(config.ExitCooldown, l.now)
	now := l.now()
	l.day = dayKey(now, config.Location)
	l.week = weekKey(now, config.Location)
	return l
}

// Positions exposes the position arena
func (l *RiskLedger) Positions() *PositionBook {
	return l.positions
}

// Load restores the weekly P&L when the snapshot belongs to the current week
func (l *RiskLedger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	snap, err := l.store.LoadWeekly(ctx)
	if err != nil {
		return fmt.Errorf("failed to load weekly pnl: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked(l.now())

	if snap == nil || snap.Week != l.week {
		l.logger.Info("No weekly P&L to restore for %s", l.week)
		return nil
	}

	l.weeklyPnL = snap.WeeklyPnL
	l.weeklyLimitHit = snap.WeeklyLimitHit || l.weeklyBreachedLocked()
	l.logger.Info("Restored weekly P&L %s for %s (limit hit: %v)", l.weeklyPnL.StringFixed(2), l.week, l.weeklyLimitHit)
	return nil
}

// Flush persists the current weekly snapshot
func (l *RiskLedger) Flush(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.RLock()
	snap := WeeklySnapshot{
		Week:           l.week,
		WeeklyPnL:      l.weeklyPnL,
		WeeklyLimitHit: l.weeklyLimitHit,
		UpdatedAt:      l.now(),
	}
	l.mu.RUnlock()

	if err := l.store.SaveWeekly(ctx, snap); err != nil {
		return fmt.Errorf("failed to save weekly pnl: %w", err)
	}
	return nil
}

// RecordPnL applies a realized P&L to the daily and weekly counters and trips
// the breakers. The emergency transition is reported exactly once per run.
func (l *RiskLedger) RecordPnL(ctx context.Context, symbol string, pnl float64) LedgerEvent {
	amount := decimal.NewFromFloat(pnl)

	l.mu.Lock()
	l.rolloverLocked(l.now())

	l.dailyPnL = l.dailyPnL.Add(amount)
	l.weeklyPnL = l.weeklyPnL.Add(amount)
	l.stats.add(pnl)

	event := LedgerEvent{
		DailyPnL:  l.dailyPnL.InexactFloat64(),
		WeeklyPnL: l.weeklyPnL.InexactFloat64(),
	}

	if !l.emergency && l.config.DailyLossLimit > 0 &&
		l.dailyPnL.LessThanOrEqual(decimal.NewFromFloat(-l.config.DailyLossLimit)) {
		l.emergency = true
		event.EmergencyTriggered = true
	}
	if !l.weeklyLimitHit && l.weeklyBreachedLocked() {
		l.weeklyLimitHit = true
		event.WeeklyLimitTriggered = true
	}
	l.mu.Unlock()

	l.logger.Trade("Realized P&L %s %.2f (daily %.2f, weekly %.2f)", symbol, pnl, event.DailyPnL, event.WeeklyPnL)
	if event.EmergencyTriggered {
		l.logger.Error("Daily loss limit %.2f breached: EMERGENCY_SHUTDOWN", l.config.DailyLossLimit)
	}
	if event.WeeklyLimitTriggered {
		l.logger.Warning("Weekly loss limit %.2f breached: new entries paused until next week", l.config.WeeklyLossLimit)
	}

	if err := l.Flush(ctx); err != nil {
		l.logger.LogError("persist weekly pnl", err)
	}
	return event
}

func (l *RiskLedger) weeklyBreachedLocked() bool {
	return l.config.WeeklyLossLimit > 0 &&
		l.weeklyPnL.LessThanOrEqual(decimal.NewFromFloat(-l.config.WeeklyLossLimit))
}

// Rollover applies day and week boundaries. It returns which boundaries were crossed.
func (l *RiskLedger) Rollover() (newDay, newWeek bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rolloverLocked(l.now())
}

func (l *RiskLedger) rolloverLocked(now time.Time) (newDay, newWeek bool) {
	if d := dayKey(now, l.config.Location); d != l.day {
		l.day = d
		l.dailyPnL = decimal.Zero
		l.blackout = false
		l.blackoutSymbol = ""
		newDay = true
	}
	if w := weekKey(now, l.config.Location); w != l.week {
		l.week = w
		l.weeklyPnL = decimal.Zero
		l.weeklyLimitHit = false
		newWeek = true
	}
	return newDay, newWeek
}

// SetBlackout sets the calendar-driven full trading suspension for the day
func (l *RiskLedger) SetBlackout(active bool, symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blackout = active
	l.blackoutSymbol = ""
	if active {
		l.blackoutSymbol = symbol
	}
}

// SetVeto replaces the cached external veto. Only the refresh task calls this.
func (l *RiskLedger) SetVeto(active bool, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.veto = active
	l.vetoReason = reason
	l.vetoRefreshedAt = l.now()
}

// Pause blocks new entries until Resume
func (l *RiskLedger) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.userPaused = true
}

// Resume clears a manual pause
func (l *RiskLedger) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.userPaused = false
}

// IsEmergency reports whether the daily loss breaker has fired this run
func (l *RiskLedger) IsEmergency() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.emergency
}

// IsBlackout reports whether trading is suspended by the calendar
func (l *RiskLedger) IsBlackout() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blackout
}

func (l *RiskLedger) entryBlockedLocked() string {
	switch {
	case l.emergency:
		return string(FlagEmergencyShutdown)
	case l.blackout:
		if l.blackoutSymbol != "" {
			return fmt.Sprintf("%s (%s)", FlagBlackout, l.blackoutSymbol)
		}
		return string(FlagBlackout)
	case l.weeklyLimitHit:
		return string(FlagPausedWeeklyLimit)
	case l.userPaused:
		return string(FlagPausedUser)
	case l.veto:
		return "external veto: " + l.vetoReason
	}
	return ""
}

// CanEnter reports whether new entries are currently permitted
func (l *RiskLedger) CanEnter() (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked(l.now())
	reason := l.entryBlockedLocked()
	return reason == "", reason
}

// CanExit reports whether exits are permitted. Forced exits (scheduled flatten,
// emergency, shutdown) bypass the blackout suspension.
func (l *RiskLedger) CanExit(forced bool) (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if forced {
		return true, ""
	}
	if l.emergency {
		return false, string(FlagEmergencyShutdown)
	}
	if l.blackout {
		return false, string(FlagBlackout)
	}
	return true, ""
}

// TryAcquireEntry atomically checks every entry gate and marks the symbol in flight
func (l *RiskLedger) TryAcquireEntry(symbol string) (*Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked(l.now())

	if reason := l.entryBlockedLocked(); reason != "" {
		return nil, fmt.Errorf("%w: %s", ErrTradingBlocked, reason)
	}
	return l.positions.acquire(symbol, leaseEntry)
}

// TryAcquireExit checks the exit gates and marks the symbol in flight
func (l *RiskLedger) TryAcquireExit(symbol string, forced bool) (*Lease, error) {
	if ok, reason := l.CanExit(forced); !ok {
		return nil, fmt.Errorf("%w: %s", ErrTradingBlocked, reason)
	}
	return l.positions.acquire(symbol, leaseExit)
}

// TradeStats returns win rate and average win/loss over the session's closed trades
func (l *RiskLedger) TradeStats() risk.TradeStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats.summary()
}

// Status returns a snapshot of every flag and counter
func (l *RiskLedger) Status() Status {
	l.mu.Lock()
	l.rolloverLocked(l.now())
	s := Status{
		DailyPnL:        l.dailyPnL.InexactFloat64(),
		WeeklyPnL:       l.weeklyPnL.InexactFloat64(),
		Week:            l.week,
		WeeklyLimitHit:  l.weeklyLimitHit,
		Emergency:       l.emergency,
		Blackout:        l.blackout,
		BlackoutSymbol:  l.blackoutSymbol,
		Veto:            l.veto,
		VetoReason:      l.vetoReason,
		VetoRefreshedAt: l.vetoRefreshedAt,
	}
	if l.emergency {
		s.Flags = append(s.Flags, FlagEmergencyShutdown)
	}
	if l.blackout {
		s.Flags = append(s.Flags, FlagBlackout)
	}
	if l.weeklyLimitHit {
		s.Flags = append(s.Flags, FlagPausedWeeklyLimit)
	}
	if l.userPaused {
		s.Flags = append(s.Flags, FlagPausedUser)
	}
	if len(s.Flags) == 0 {
		s.Flags = []Flag{FlagActive}
	}
	l.mu.Unlock()

	s.OpenPositions = len(l.positions.OpenPositions())
	return s
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

func weekKey(t time.Time, loc *time.Location) string {
	year, week := t.In(loc).ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
