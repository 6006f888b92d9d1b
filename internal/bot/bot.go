package bot

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ducminhle1904/intraday-risk-bot/internal/calendar"
	"github.com/ducminhle1904/intraday-risk-bot/internal/config"
	"github.com/ducminhle1904/intraday-risk-bot/internal/exchange"
	"github.com/ducminhle1904/intraday-risk-bot/internal/execution"
	"github.com/ducminhle1904/intraday-risk-bot/internal/indicators"
	"github.com/ducminhle1904/intraday-risk-bot/internal/ledger"
	"github.com/ducminhle1904/intraday-risk-bot/internal/logger"
	"github.com/ducminhle1904/intraday-risk-bot/internal/monitoring"
	"github.com/ducminhle1904/intraday-risk-bot/internal/notifications"
	"github.com/ducminhle1904/intraday-risk-bot/internal/risk"
	"github.com/ducminhle1904/intraday-risk-bot/internal/signals"
	"github.com/ducminhle1904/intraday-risk-bot/internal/veto"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/reporting"
)

// Dependencies are the collaborators wired by the command layer. Veto,
// Calendar, Notifier, Health and Session are optional.
type Dependencies struct {
	Venue       exchange.Venue
	Signals     signals.Producer
	Ledger      *ledger.RiskLedger
	Coordinator *risk.PositionRiskCoordinator
	Controller  *execution.Controller
	Veto        veto.Source
	Calendar    calendar.Checker
	Notifier    notifications.Notifier
	Health      *monitoring.HealthChecker
	Session     *reporting.Session
	Logger      *logger.Logger
	Output      io.Writer
	Clock       func() time.Time
}

// TradingBot runs the intraday loop over the watchlist: entries gated by the
// ledger and sized by the coordinator, exits by the exit policy, plus the
// auto-flatten and veto refresh schedules.
type TradingBot struct {
	config *config.BotConfig

	venue       exchange.Venue
	signals     signals.Producer
	ledger      *ledger.RiskLedger
	coordinator *risk.PositionRiskCoordinator
	controller  *execution.Controller
	veto        veto.Source
	calendar    calendar.Checker
	notifier    notifications.Notifier
	health      *monitoring.HealthChecker
	session     *reporting.Session
	logger      *logger.Logger
	out         io.Writer
	now         func() time.Time

	exitConfig    ledger.ExitConfig
	location      *time.Location
	flattenHour   int
	flattenMinute int
	atr           *indicators.ATR

	// Market data cache for portfolio valuation and correlation updates
	cacheMu    sync.RWMutex
	lastPrices map[string]float64
	closes     map[string][]float64

	calendarMu       sync.Mutex
	lastCalendarDay  string
	calendarAlertDay string

	vetoMu   sync.Mutex
	lastVeto veto.Decision

	// Bot control
	runMu    sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// BotStatus is the /status payload
type BotStatus struct {
	Venue       string            `json:"venue"`
	Environment string            `json:"environment"`
	Symbols     []string          `json:"symbols"`
	Running     bool              `json:"running"`
	Ledger      ledger.Status     `json:"ledger"`
	Positions   []ledger.Position `json:"positions"`
	TradeStats  risk.TradeStats   `json:"trade_stats"`
}

// New creates a trading bot
func New(cfg *config.BotConfig, deps Dependencies) (*TradingBot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot configuration is required")
	}
	if deps.Venue == nil || deps.Signals == nil || deps.Ledger == nil ||
		deps.Coordinator == nil || deps.Controller == nil {
		return nil, fmt.Errorf("venue, signals, ledger, coordinator and controller are required")
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	hour, minute, err := cfg.FlattenClock()
	if err != nil {
		return nil, err
	}

	b := &TradingBot{
		config:        cfg,
		venue:         deps.Venue,
		signals:       deps.Signals,
		ledger:        deps.Ledger,
		coordinator:   deps.Coordinator,
		controller:    deps.Controller,
		veto:          deps.Veto,
		calendar:      deps.Calendar,
		notifier:      deps.Notifier,
		health:        deps.Health,
		session:       deps.Session,
		logger:        deps.Logger,
		out:           deps.Output,
		now:           deps.Clock,
		exitConfig:    cfg.ExitConfig(),
		location:      loc,
		flattenHour:   hour,
		flattenMinute: minute,
		atr:           indicators.NewATR(cfg.Risk.ATRPeriod),
		lastPrices:    make(map[string]float64),
		closes:        make(map[string][]float64),
	}
	if b.calendar == nil {
		b.calendar = calendar.None{}
	}
	if b.logger == nil {
		b.logger = logger.Nop()
	}
	if b.out == nil {
		b.out = os.Stdout
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b, nil
}

// Start restores state, applies the calendar and veto, then launches the
// trading loop and the schedules
func (b *TradingBot) Start(ctx context.Context) error {
	b.runMu.Lock()
	if b.running {
		b.runMu.Unlock()
		return fmt.Errorf("bot already running")
	}
	b.running = true
	b.stopChan = make(chan struct{})
	b.runMu.Unlock()

	if err := b.ledger.Load(ctx); err != nil {
		b.logger.LogWarning("Could not load weekly pnl", "%v", err)
	}
	if err := b.syncPositions(ctx); err != nil {
		b.logger.LogWarning("Could not sync existing positions", "%v", err)
	}
	b.checkCalendar(ctx)
	b.refreshVeto(ctx)

	b.printStartupInfo()
	b.printRiskConfiguration()
	fmt.Fprintf(b.out, "📝 Trading logs: %s\n", b.logger.GetLogPath())
	fmt.Fprintf(b.out, "🔄 Bot is running... (trading activity logged to file)\n\n")

	b.notify(notifications.LevelInfo, fmt.Sprintf("Risk bot started on %s (%s) watching %v",
		b.venue.Name(), b.venue.Environment(), b.config.SymbolNames()))

	b.wg.Add(3)
	go b.tradingLoop()
	go b.flattenLoop()
	go b.vetoLoop()
	return nil
}

// Stop halts the schedules, flattens open positions, flushes the ledger and
// writes the session report
func (b *TradingBot) Stop(ctx context.Context) error {
	b.runMu.Lock()
	if !b.running {
		b.runMu.Unlock()
		return nil
	}
	b.running = false
	close(b.stopChan)
	b.runMu.Unlock()

	b.wg.Wait()

	var errs []error
	fmt.Fprintf(b.out, "🔄 Closing open positions...\n")
	if err := b.FlattenAll(ctx, ledger.ExitShutdown); err != nil {
		b.logger.Error("Error closing positions during shutdown: %v", err)
		b.notify(notifications.LevelError, fmt.Sprintf("Shutdown flatten incomplete: %v", err))
		errs = append(errs, err)
	}

	if err := b.ledger.Flush(ctx); err != nil {
		b.logger.LogError("flush ledger", err)
		errs = append(errs, err)
	}

	if b.session != nil {
		path := reporting.SessionReportPath(b.config.Reporting.Dir, b.now())
		if err := reporting.WriteSessionXLSX(b.session, path); err != nil {
			b.logger.LogError("write session report", err)
			errs = append(errs, err)
		} else {
			fmt.Fprintf(b.out, "📊 Session report: %s\n", path)
		}
		reporting.PrintSessionSummary(b.out, b.session)
	}

	b.notify(notifications.LevelInfo, "Risk bot stopped")
	return stderrors.Join(errs...)
}

// IsRunning reports whether Start has been called without Stop
func (b *TradingBot) IsRunning() bool {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	return b.running
}

// Status implements monitoring.Controls
func (b *TradingBot) Status() interface{} {
	return BotStatus{
		Venue:       b.venue.Name(),
		Environment: b.venue.Environment(),
		Symbols:     b.config.SymbolNames(),
		Running:     b.IsRunning(),
		Ledger:      b.ledger.Status(),
		Positions:   b.ledger.Positions().OpenPositions(),
		TradeStats:  b.ledger.TradeStats(),
	}
}

// Pause implements monitoring.Controls; exits keep running
func (b *TradingBot) Pause() {
	b.ledger.Pause()
	b.logger.Warning("Trading paused by operator")
	b.event("pause", "entries paused by operator")
	b.notify(notifications.LevelWarning, "Entries paused by operator")
}

// Resume implements monitoring.Controls
func (b *TradingBot) Resume() {
	b.ledger.Resume()
	b.logger.Info("Trading resumed by operator")
	b.event("resume", "entries resumed by operator")
	b.notify(notifications.LevelInfo, "Entries resumed by operator")
}

// syncPositions seeds the position book with holdings found on the venue.
// Entry price is unknown after a restart so the current price is used.
func (b *TradingBot) syncPositions(ctx context.Context) error {
	var errs []error
	for _, symbol := range b.config.SymbolNames() {
		qty, err := b.venue.GetHeldQuantity(ctx, symbol)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		if qty <= 0 {
			continue
		}
		price, err := b.venue.GetLatestPrice(ctx, symbol)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		b.ledger.Positions().Restore(ledger.Position{
			Symbol:     symbol,
			Quantity:   qty,
			EntryPrice: price,
			EntryTime:  b.now(),
		})
		b.rememberPrice(symbol, price)
		b.logger.Info("Restored %s position: %d @ %.4f", symbol, qty, price)
	}
	return stderrors.Join(errs...)
}

func (b *TradingBot) notify(level, message string) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.SendAlert(level, message); err != nil {
		b.logger.LogError("send notification", err)
	}
}

func (b *TradingBot) event(kind, format string, args ...interface{}) {
	if b.session != nil {
		b.session.AddEvent(b.now(), kind, format, args...)
	}
}

func (b *TradingBot) rememberPrice(symbol string, price float64) {
	if price <= 0 {
		return
	}
	b.cacheMu.Lock()
	b.lastPrices[symbol] = price
	b.cacheMu.Unlock()
	monitoring.UpdatePrice(symbol, price)
}

func (b *TradingBot) rememberCloses(symbol string, closes []float64) {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	b.closes[symbol] = closes
}
