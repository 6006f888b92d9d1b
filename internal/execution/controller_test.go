package execution

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/intraday-risk-bot/internal/errors"
	"github.com/ducminhle1904/intraday-risk-bot/internal/exchange"
	"github.com/ducminhle1904/intraday-risk-bot/internal/exchange/paper"
	"github.com/ducminhle1904/intraday-risk-bot/internal/ledger"
	"github.com/ducminhle1904/intraday-risk-bot/internal/safety"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

type recordingVenue struct {
	*paper.Venue
	mu       sync.Mutex
	requests []exchange.OrderRequest
}

func (r *recordingVenue) PlaceMarketOrder(ctx context.Context, req exchange.OrderRequest) (*types.Fill, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	return r.Venue.PlaceMarketOrder(ctx, req)
}

type alertRecorder struct {
	mu     sync.Mutex
	alerts []string
}

func (a *alertRecorder) SendAlert(level, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, level+": "+message)
	return nil
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

type fixture struct {
	venue   *recordingVenue
	book    *ledger.PositionBook
	alerts  *alertRecorder
	sleeper *sleepRecorder
	ctrl    *Controller
	entryAt time.Time
}

func newFixture(cash float64, opts ...Option) *fixture {
	at := time.Date(2026, 10, 14, 14, 45, 0, 0, time.UTC)
	f := &fixture{
		venue:   &recordingVenue{Venue: paper.NewVenue(cash)},
		book:    ledger.NewPositionBook(5*time.Minute, func() time.Time { return at }),
		alerts:  &alertRecorder{},
		sleeper: &sleepRecorder{},
		entryAt: at,
	}
	base := []Option{
		WithNotifier(f.alerts),
		WithSleep(f.sleeper.sleep),
		WithClock(func() time.Time { return at }),
	}
	f.ctrl = NewController(f.venue, f.venue, f.book, DefaultRetryConfig(), append(base, opts...)...)
	return f
}

func venueDown() error {
	return errors.NewVenueUnavailable("paper", "place_order", stderrors.New("connection reset"))
}

// TestBuyClampedToAffordable tests that a BUY is reduced to what the balance affords
func TestBuyClampedToAffordable(t *testing.T) {
	f := newFixture(30000)
	f.venue.SetPrice("NVDA", 500)

	res, err := f.ctrl.Submit(context.Background(), types.OrderIntent{
		Symbol: "NVDA", Action: types.ActionBuy, Quantity: 100, Price: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFilled, res.Outcome)
	assert.Equal(t, int64(60), res.Quantity)
	require.Len(t, f.venue.requests, 1)
	assert.Equal(t, int64(60), f.venue.requests[0].Quantity)

	pos, open := f.book.Position("NVDA")
	require.True(t, open)
	assert.Equal(t, int64(60), pos.Quantity)
	assert.Equal(t, 500.0, pos.EntryPrice)
	assert.Equal(t, f.entryAt, pos.EntryTime)
}

// TestRetryBound tests exactly three attempts with 1s, 2s, 4s waits and no state change
func TestRetryBound(t *testing.T) {
	f := newFixture(100000)
	f.venue.SetPrice("AAPL", 200)
	f.venue.FailNext(venueDown(), venueDown(), venueDown())

	res, err := f.ctrl.Submit(context.Background(), types.OrderIntent{
		Symbol: "AAPL", Action: types.ActionBuy, Quantity: 10, Price: 200,
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorCategoryVenueUnavailable, errors.CategoryOf(err))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, f.venue.Attempts())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, f.sleeper.delays)

	assert.Equal(t, int64(0), f.book.HeldQuantity("AAPL"))
	assert.Empty(t, f.venue.Fills())
	assert.Len(t, f.alerts.alerts, 1)
	assert.Contains(t, f.alerts.alerts[0], "after 3 attempts")

	link := f.venue.requests[0].OrderLinkID
	assert.NotEmpty(t, link)
	for _, req := range f.venue.requests {
		assert.Equal(t, link, req.OrderLinkID, "link id reused across attempts")
	}
}

func TestRetryThenSuccess(t *testing.T) {
	f := newFixture(100000)
	f.venue.SetPrice("AAPL", 200)
	f.venue.FailNext(venueDown())

	res, err := f.ctrl.Submit(context.Background(), types.OrderIntent{
		Symbol: "AAPL", Action: types.ActionBuy, Quantity: 10, Price: 200,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []time.Duration{time.Second}, f.sleeper.delays)
	assert.Equal(t, int64(10), f.book.HeldQuantity("AAPL"))
	assert.Empty(t, f.alerts.alerts)
}

// TestRejectionNotRetried tests that a venue rejection surfaces immediately
func TestRejectionNotRetried(t *testing.T) {
	f := newFixture(100000)
	f.venue.SetPrice("AAPL", 200)
	f.venue.FailNext(errors.NewOrderRejected("paper", "place_order", stderrors.New("market is closed")))

	res, err := f.ctrl.Submit(context.Background(), types.OrderIntent{
		Symbol: "AAPL", Action: types.ActionBuy, Quantity: 10, Price: 200,
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorCategoryOrderRejected, errors.CategoryOf(err))
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, 1, f.venue.Attempts())
	assert.Empty(t, f.sleeper.delays)
	assert.Empty(t, f.alerts.alerts)
	assert.Equal(t, int64(0), f.book.HeldQuantity("AAPL"))
}

func TestUntypedVenueErrorsAreCategorized(t *testing.T) {
	f := newFixture(100000)
	f.venue.SetPrice("AAPL", 200)
	f.venue.FailNext(stderrors.New("order rejected: invalid qty"))

	res, err := f.ctrl.Submit(context.Background(), types.OrderIntent{
		Symbol: "AAPL", Action: types.ActionBuy, Quantity: 1, Price: 200,
	})
	assert.Equal(t, errors.ErrorCategoryOrderRejected, errors.CategoryOf(err))
	assert.Equal(t, 1, res.Attempts)
}

func TestSkips(t *testing.T) {
	t.Run("buy with no affordable shares", func(t *testing.T) {
		f := newFixture(100)
		res, err := f.ctrl.Submit(context.Background(), types.OrderIntent{
			Symbol: "NVDA", Action: types.ActionBuy, Quantity: 5, Price: 500,
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkippedBalance, res.Outcome)
		assert.True(t, res.Skipped())
		assert.Equal(t, 0, f.venue.Attempts())
	})

	t.Run("sell with nothing held", func(t *testing.T) {
		f := newFixture(100)
		res, err := f.ctrl.Submit(context.Background(), types.OrderIntent{
			Symbol: "NVDA", Action: types.ActionSell, Quantity: 5, Price: 500, IsExit: true,
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkippedPosition, res.Outcome)
		assert.Equal(t, 0, f.venue.Attempts())
	})
}

func TestExitClampedToHeld(t *testing.T) {
	f := newFixture(0)
	f.venue.SetPrice("MSFT", 400)
	f.venue.SetHolding("MSFT", 10)
	f.book.ApplyEntry("MSFT", 10, 390, f.entryAt.Add(-10*time.Minute))

	res, err := f.ctrl.Submit(context.Background(), types.OrderIntent{
		Symbol: "MSFT", Action: types.ActionSell, Quantity: 15, Price: 400, IsExit: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Quantity)

	pos, open := f.book.Position("MSFT")
	assert.False(t, open)
	assert.Equal(t, 390.0, pos.EntryPrice, "entry price kept for P&L")
	assert.Equal(t, 4000.0, f.venue.Cash())
}

func TestSubmitIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(10000)
	f.venue.SetPrice("AAPL", 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := f.ctrl.Submit(ctx, types.OrderIntent{Symbol: "AAPL", Action: types.ActionBuy, Quantity: 1, Price: 100})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFilled, res.Outcome)
}

func TestInvalidIntent(t *testing.T) {
	f := newFixture(10000)
	res, err := f.ctrl.Submit(context.Background(), types.OrderIntent{Symbol: "AAPL", Action: types.ActionBuy, Quantity: 1})
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, errors.ErrorCategoryOrderRejected, errors.CategoryOf(err))
}

func TestOpenBreakerShortCircuits(t *testing.T) {
	breaker := safety.NewBreaker("venue", safety.BreakerConfig{FailureThreshold: 2, Timeout: time.Hour}, nil)
	f := newFixture(100000, WithBreaker(breaker), WithRateLimiter(safety.NewRateLimiter("orders", 0, 1)))
	f.venue.SetPrice("AAPL", 200)
	f.venue.FailNext(venueDown(), venueDown(), venueDown())

	res, err := f.ctrl.Submit(context.Background(), types.OrderIntent{Symbol: "AAPL", Action: types.ActionBuy, Quantity: 1, Price: 200})
	require.Error(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 2, f.venue.Attempts(), "third attempt blocked by the open breaker")
	assert.True(t, breaker.IsOpen())
}

func TestRetryDelay(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, time.Second, cfg.Delay(1))
	assert.Equal(t, 2*time.Second, cfg.Delay(2))
	assert.Equal(t, 4*time.Second, cfg.Delay(3))

	cfg.MaxDelay = 3 * time.Second
	assert.Equal(t, 3*time.Second, cfg.Delay(3))
}
