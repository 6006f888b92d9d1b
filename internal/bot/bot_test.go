package bot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/intraday-risk-bot/internal/calendar"
	"github.com/ducminhle1904/intraday-risk-bot/internal/config"
	"github.com/ducminhle1904/intraday-risk-bot/internal/exchange/paper"
	"github.com/ducminhle1904/intraday-risk-bot/internal/execution"
	"github.com/ducminhle1904/intraday-risk-bot/internal/ledger"
	"github.com/ducminhle1904/intraday-risk-bot/internal/monitoring"
	"github.com/ducminhle1904/intraday-risk-bot/internal/risk"
	"github.com/ducminhle1904/intraday-risk-bot/internal/signals"
	"github.com/ducminhle1904/intraday-risk-bot/internal/veto"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/reporting"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type signalBoard struct {
	mu      sync.Mutex
	signals map[string]types.Signal
	panics  map[string]bool
}

func (s *signalBoard) Set(symbol string, dir types.Direction, confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[symbol] = types.Signal{Direction: dir, Confidence: confidence}
}

func (s *signalBoard) GetSignal(ctx context.Context, symbol string) (types.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panics[symbol] {
		panic("signal decoder blew up")
	}
	sig, ok := s.signals[symbol]
	if !ok {
		return types.Signal{}, fmt.Errorf("no signal for %s", symbol)
	}
	return sig, nil
}

type alert struct{ level, message string }

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []alert
}

func (n *recordingNotifier) SendAlert(level, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert{level, message})
	return nil
}

func (n *recordingNotifier) Has(level, substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, a := range n.alerts {
		if a.level == level && strings.Contains(a.message, substr) {
			return true
		}
	}
	return false
}

type fakeVeto struct {
	mu  sync.Mutex
	d   veto.Decision
	err error
}

func (f *fakeVeto) Set(d veto.Decision, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.d, f.err = d, err
}

func (f *fakeVeto) CheckVeto(ctx context.Context) (veto.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.d, f.err
}

// testCandles alternate between 101 and 100 with a 2 point range, giving an
// ATR of 2 and a last close of 100
func testCandles(end time.Time) []types.OHLCV {
	candles := make([]types.OHLCV, 30)
	for i := range candles {
		c := 101 - float64(i%2)
		candles[i] = types.OHLCV{
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
			Timestamp: end.AddDate(0, 0, i-len(candles)),
		}
	}
	return candles
}

type harness struct {
	cfg      *config.BotConfig
	clock    *fakeClock
	venue    *paper.Venue
	signals  *signalBoard
	ledger   *ledger.RiskLedger
	notifier *recordingNotifier
	session  *reporting.Session
	bot      *TradingBot
}

type harnessOption func(*config.BotConfig, *Dependencies)

func newHarness(t *testing.T, symbols []string, opts ...harnessOption) *harness {
	t.Helper()

	cfg := config.Default()
	for _, s := range symbols {
		cfg.Symbols = append(cfg.Symbols, config.SymbolConfig{Symbol: s})
	}
	cfg.Trading.Timezone = "UTC"
	cfg.Trading.TickIntervalSeconds = 3600
	cfg.Reporting.Dir = t.TempDir()

	// Wednesday
	clock := &fakeClock{t: time.Date(2026, 10, 14, 14, 30, 0, 0, time.UTC)}
	venue := paper.NewVenue(100000)
	for _, s := range symbols {
		venue.SetCandles(s, testCandles(clock.Now()))
	}
	board := &signalBoard{signals: make(map[string]types.Signal), panics: make(map[string]bool)}
	notifier := &recordingNotifier{}
	session := reporting.NewSession(clock.Now())

	deps := Dependencies{
		Venue:    venue,
		Signals:  board,
		Notifier: notifier,
		Health:   monitoring.NewHealthChecker(time.Hour),
		Session:  session,
		Output:   io.Discard,
		Clock:    clock.Now,
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	lcfg, err := cfg.LedgerConfig()
	require.NoError(t, err)
	l := ledger.NewRiskLedger(lcfg, nil, ledger.WithClock(clock.Now))

	deps.Ledger = l
	deps.Coordinator = risk.NewPositionRiskCoordinator(cfg.RiskConfig(), nil)
	deps.Controller = execution.NewController(venue, venue, l.Positions(), cfg.RetryConfig(),
		execution.WithSleep(func(context.Context, time.Duration) error { return nil }),
		execution.WithClock(clock.Now),
		execution.WithNotifier(notifier),
	)

	b, err := New(cfg, deps)
	require.NoError(t, err)

	return &harness{
		cfg:      cfg,
		clock:    clock,
		venue:    venue,
		signals:  board,
		ledger:   l,
		notifier: notifier,
		session:  session,
		bot:      b,
	}
}

func (h *harness) position(symbol string) (ledger.Position, bool) {
	return h.ledger.Positions().Position(symbol)
}

// TestEntryOnConfidentLongSignal tests sizing and submission of an approved entry
func TestEntryOnConfidentLongSignal(t *testing.T) {
	h := newHarness(t, []string{"AAPL", "MSFT"})
	h.signals.Set("AAPL", types.DirectionLong, 0.8)
	h.signals.Set("MSFT", types.DirectionLong, 0.5)

	h.bot.Tick(context.Background())

	pos, open := h.position("AAPL")
	require.True(t, open)
	// ATR 2 gives 250 base shares, capped by the 10% per-trade ceiling
	assert.Equal(t, int64(100), pos.Quantity)
	assert.Equal(t, 100.0, pos.EntryPrice)
	assert.Equal(t, h.clock.Now(), pos.EntryTime)

	_, open = h.position("MSFT")
	assert.False(t, open, "confidence below threshold")
	assert.Len(t, h.venue.Fills(), 1)
	assert.InDelta(t, 90000, h.venue.Cash(), 1e-9)
}

// TestTakeProfitAfterMinHold tests a profitable exit, P&L recording and the exit cooldown
func TestTakeProfitAfterMinHold(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AAPL"})
	h.signals.Set("AAPL", types.DirectionLong, 0.8)
	h.bot.Tick(ctx)

	h.clock.Advance(10 * time.Minute)
	h.venue.SetPrice("AAPL", 103)
	h.bot.Tick(ctx)

	_, open := h.position("AAPL")
	assert.False(t, open)
	assert.InDelta(t, 300, h.ledger.Status().DailyPnL, 1e-9)

	trades := h.session.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, string(ledger.ExitTakeProfit), trades[0].Reason)
	assert.Equal(t, 103.0, trades[0].ExitPrice)

	// still LONG, but the symbol is cooling down
	h.clock.Advance(time.Minute)
	h.bot.Tick(ctx)
	_, open = h.position("AAPL")
	assert.False(t, open)
	assert.Len(t, h.venue.Fills(), 2)
}

// TestMinHoldSuppressesReversal tests that signal exits wait for the minimum hold
func TestMinHoldSuppressesReversal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AAPL"})
	h.signals.Set("AAPL", types.DirectionLong, 0.8)
	h.bot.Tick(ctx)

	h.signals.Set("AAPL", types.DirectionShort, 0.9)
	h.clock.Advance(time.Minute)
	h.bot.Tick(ctx)
	_, open := h.position("AAPL")
	assert.True(t, open)

	h.clock.Advance(3 * time.Minute)
	h.bot.Tick(ctx)
	_, open = h.position("AAPL")
	assert.False(t, open)

	trades := h.session.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, string(ledger.ExitReversal), trades[0].Reason)
}

// TestBlackoutAllowsOnlyForcedExits tests that blackout suspends the take-profit
// but not the max-hold exit
func TestBlackoutAllowsOnlyForcedExits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AAPL"})
	h.signals.Set("AAPL", types.DirectionLong, 0.8)
	h.bot.Tick(ctx)

	h.ledger.SetBlackout(true, "AAPL")
	h.venue.SetPrice("AAPL", 103)
	h.clock.Advance(10 * time.Minute)
	h.bot.Tick(ctx)
	_, open := h.position("AAPL")
	assert.True(t, open, "take profit is suspended during blackout")

	h.clock.Advance(36 * time.Minute)
	h.bot.Tick(ctx)
	_, open = h.position("AAPL")
	assert.False(t, open)

	trades := h.session.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, string(ledger.ExitMaxHold), trades[0].Reason)
}

// TestDailyLossEmergencyFlattensAll tests the emergency shutdown path end to end
func TestDailyLossEmergencyFlattensAll(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AAPL", "MSFT"}, func(cfg *config.BotConfig, _ *Dependencies) {
		cfg.Risk.DailyLossLimit = 150
	})
	h.signals.Set("AAPL", types.DirectionLong, 0.8)
	h.signals.Set("MSFT", types.DirectionLong, 0.8)
	h.bot.Tick(ctx)
	require.Len(t, h.ledger.Positions().OpenPositions(), 2)

	// AAPL -2% trips the stop-loss for -200
	h.venue.SetPrice("AAPL", 98)
	h.clock.Advance(time.Minute)
	h.bot.Tick(ctx)

	assert.Empty(t, h.ledger.Positions().OpenPositions())
	assert.True(t, h.ledger.IsEmergency())
	assert.True(t, h.notifier.Has("error", "EMERGENCY SHUTDOWN"))

	reasons := map[string]string{}
	for _, tr := range h.session.Trades() {
		reasons[tr.Symbol] = tr.Reason
	}
	assert.Equal(t, string(ledger.ExitStopLoss), reasons["AAPL"])
	assert.Equal(t, string(ledger.ExitEmergency), reasons["MSFT"])

	// no new entries for the rest of the run
	fills := len(h.venue.Fills())
	h.clock.Advance(10 * time.Minute)
	h.bot.Tick(ctx)
	assert.Len(t, h.venue.Fills(), fills)
}

// TestVetoGatesEntries tests the refresh task, including keeping the previous
// decision when the source fails
func TestVetoGatesEntries(t *testing.T) {
	ctx := context.Background()
	source := &fakeVeto{d: veto.Decision{Vetoed: true, Reason: "CPI release"}}
	h := newHarness(t, []string{"AAPL"}, func(_ *config.BotConfig, deps *Dependencies) {
		deps.Veto = source
	})
	h.signals.Set("AAPL", types.DirectionLong, 0.8)

	h.bot.refreshVeto(ctx)
	h.bot.Tick(ctx)
	_, open := h.position("AAPL")
	assert.False(t, open)
	assert.True(t, h.notifier.Has("warning", "CPI release"))

	source.Set(veto.Decision{}, fmt.Errorf("redis timeout"))
	h.bot.refreshVeto(ctx)
	assert.True(t, h.ledger.Status().Veto, "previous veto stays on error")

	source.Set(veto.Decision{}, nil)
	h.bot.refreshVeto(ctx)
	h.bot.Tick(ctx)
	_, open = h.position("AAPL")
	assert.True(t, open)
}

// TestCalendarBlackoutPerDay tests that the blackout is looked up once per day
func TestCalendarBlackoutPerDay(t *testing.T) {
	ctx := context.Background()
	cal, err := calendar.New([]calendar.Event{{Date: "2026-10-14", Symbol: "AAPL", Reason: "earnings"}}, []string{"AAPL"})
	require.NoError(t, err)
	h := newHarness(t, []string{"AAPL"}, func(_ *config.BotConfig, deps *Dependencies) {
		deps.Calendar = cal
	})
	h.signals.Set("AAPL", types.DirectionLong, 0.8)

	h.bot.Tick(ctx)
	status := h.ledger.Status()
	assert.True(t, status.Blackout)
	assert.Equal(t, "AAPL", status.BlackoutSymbol)
	_, open := h.position("AAPL")
	assert.False(t, open)

	h.clock.Advance(24 * time.Hour)
	h.bot.Tick(ctx)
	assert.False(t, h.ledger.Status().Blackout)
	_, open = h.position("AAPL")
	assert.True(t, open)
}

func TestPauseAndResume(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AAPL"})
	h.signals.Set("AAPL", types.DirectionLong, 0.8)

	h.bot.Pause()
	h.bot.Tick(ctx)
	_, open := h.position("AAPL")
	assert.False(t, open)

	status, ok := h.bot.Status().(BotStatus)
	require.True(t, ok)
	assert.Contains(t, status.Ledger.Flags, ledger.FlagPausedUser)

	h.bot.Resume()
	h.bot.Tick(ctx)
	_, open = h.position("AAPL")
	assert.True(t, open)
}

// TestPanicInTickIsRecovered tests that one symbol's panic does not stop the others
func TestPanicInTickIsRecovered(t *testing.T) {
	h := newHarness(t, []string{"AAPL", "MSFT"})
	h.signals.panics["AAPL"] = true
	h.signals.Set("MSFT", types.DirectionLong, 0.8)

	assert.NotPanics(t, func() { h.bot.Tick(context.Background()) })
	assert.True(t, h.notifier.Has("error", "panic in tick AAPL"))

	_, open := h.position("MSFT")
	assert.True(t, open)
}

func TestNextFlattenTime(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"wednesday morning", time.Date(2026, 10, 14, 10, 0, 0, 0, ny), time.Date(2026, 10, 14, 15, 55, 0, 0, ny)},
		{"wednesday after close", time.Date(2026, 10, 14, 16, 0, 0, 0, ny), time.Date(2026, 10, 15, 15, 55, 0, 0, ny)},
		{"exactly at flatten time", time.Date(2026, 10, 14, 15, 55, 0, 0, ny), time.Date(2026, 10, 15, 15, 55, 0, 0, ny)},
		{"friday after close", time.Date(2026, 10, 16, 16, 0, 0, 0, ny), time.Date(2026, 10, 19, 15, 55, 0, 0, ny)},
		{"saturday", time.Date(2026, 10, 17, 9, 0, 0, 0, ny), time.Date(2026, 10, 19, 15, 55, 0, 0, ny)},
		{"utc input", time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC), time.Date(2026, 10, 14, 15, 55, 0, 0, ny)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextFlattenTime(tt.now, ny, 15, 55)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

// TestStartStop tests startup sync and the shutdown flatten, flush and report
func TestStartStop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []string{"AAPL", "MSFT"})
	h.venue.SetHolding("MSFT", 40)
	h.signals.Set("AAPL", types.DirectionLong, 0.8)

	require.NoError(t, h.bot.Start(ctx))
	assert.True(t, h.bot.IsRunning())
	assert.Error(t, h.bot.Start(ctx))

	require.NoError(t, h.bot.Stop(ctx))
	assert.False(t, h.bot.IsRunning())
	require.NoError(t, h.bot.Stop(ctx), "second stop is a no-op")

	assert.Empty(t, h.ledger.Positions().OpenPositions())
	reasons := map[string]string{}
	for _, tr := range h.session.Trades() {
		reasons[tr.Symbol] = tr.Reason
	}
	assert.Equal(t, string(ledger.ExitShutdown), reasons["AAPL"])
	assert.Equal(t, string(ledger.ExitShutdown), reasons["MSFT"])

	reports, err := filepath.Glob(filepath.Join(h.cfg.Reporting.Dir, "*", "session_*.xlsx"))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	_, err = os.Stat(reports[0])
	assert.NoError(t, err)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(config.Default(), Dependencies{})
	assert.Error(t, err)
	_, err = New(nil, Dependencies{})
	assert.Error(t, err)
	_, err = New(config.Default(), Dependencies{Signals: signals.ProducerFunc(nil)})
	assert.Error(t, err)
}
