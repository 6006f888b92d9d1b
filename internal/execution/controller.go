package execution

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ducminhle1904/intraday-risk-bot/internal/errors"
	"github.com/ducminhle1904/intraday-risk-bot/internal/exchange"
	"github.com/ducminhle1904/intraday-risk-bot/internal/logger"
	"github.com/ducminhle1904/intraday-risk-bot/internal/monitoring"
	"github.com/ducminhle1904/intraday-risk-bot/internal/safety"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

// Outcome is the final state of an order intent
type Outcome string

const (
	OutcomeFilled          Outcome = "FILLED"
	OutcomeSkippedBalance  Outcome = "SKIPPED_INSUFFICIENT_BALANCE"
	OutcomeSkippedPosition Outcome = "SKIPPED_INSUFFICIENT_POSITION"
	OutcomeRejected        Outcome = "REJECTED"
	OutcomeFailed          Outcome = "FAILED"
)

// Result describes what happened to an intent
type Result struct {
	Outcome  Outcome
	Intent   types.OrderIntent
	Quantity int64 // after clamping
	Fill     *types.Fill
	Attempts int
}

// Skipped reports whether clamping reduced the order to nothing
func (r Result) Skipped() bool {
	return r.Outcome == OutcomeSkippedBalance || r.Outcome == OutcomeSkippedPosition
}

// PositionBook is the part of the ledger the controller mutates on success
type PositionBook interface {
	HeldQuantity(symbol string) int64
	ApplyEntry(symbol string, quantity int64, price float64, at time.Time)
	ApplyExit(symbol string, at time.Time)
}

// Notifier delivers failure alerts
type Notifier interface {
	SendAlert(level, message string) error
}

// Option customizes a Controller
type Option func(*Controller)

// WithBreaker routes attempts through a circuit breaker
func WithBreaker(b *safety.Breaker) Option {
	return func(c *Controller) { c.breaker = b }
}

// WithRateLimiter throttles attempts
func WithRateLimiter(rl *safety.RateLimiter) Option {
	return func(c *Controller) { c.limiter = rl }
}

// WithNotifier sets the alert sink for retry exhaustion
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithLogger attaches a logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithSleep replaces the backoff wait
func WithSleep(fn SleepFunc) Option {
	return func(c *Controller) { c.sleep = fn }
}

// WithClock overrides the time source used for entry and exit timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller turns approved intents into venue orders. Callers must hold the
// symbol's ledger lease for the duration of Submit.
type Controller struct {
	account  exchange.AccountQuery
	venue    exchange.OrderVenue
	book     PositionBook
	config   RetryConfig
	breaker  *safety.Breaker
	limiter  *safety.RateLimiter
	notifier Notifier
	logger   *logger.Logger
	sleep    SleepFunc
	now      func() time.Time
	linkID   func() string
}

// NewController creates an execution controller
func NewController(account exchange.AccountQuery, venue exchange.OrderVenue, book PositionBook, config RetryConfig, opts ...Option) *Controller {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	c := &Controller{
		account: account,
		venue:   venue,
		book:    book,
		config:  config,
		logger:  logger.Nop(),
		sleep:   sleepContext,
		now:     time.Now,
		linkID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit clamps the intent, submits it with bounded retries and applies the
// fill to the position book. Skips are not errors. Submission ignores the
// caller's cancellation once started.
func (c *Controller) Submit(ctx context.Context, intent types.OrderIntent) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	result := Result{Intent: intent}

	if v := safety.ValidateIntent(intent); !v.Valid {
		result.Outcome = OutcomeRejected
		monitoring.RecordOrderOutcome(string(result.Outcome))
		return result, errors.NewTradingError(errors.ErrorCategoryOrderRejected, "execution", "validate", v.Message).
			WithContext("code", v.Code)
	}

	qty, outcome, err := c.clamp(ctx, intent)
	if err != nil {
		result.Outcome = OutcomeFailed
		monitoring.RecordOrderOutcome(string(result.Outcome))
		return result, err
	}
	result.Quantity = qty
	if outcome != "" {
		result.Outcome = outcome
		c.logger.Warning("Skipping %s: %s", intent, outcome)
		monitoring.RecordOrderOutcome(string(outcome))
		return result, nil
	}

	req := exchange.OrderRequest{
		Symbol:      intent.Symbol,
		Action:      intent.Action,
		Quantity:    qty,
		Price:       intent.Price,
		OrderLinkID: c.linkID(),
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		fill, err := c.attempt(ctx, req)
		if err == nil {
			monitoring.RecordOrderAttempt("success")
			c.apply(intent, fill)
			result.Outcome = OutcomeFilled
			result.Fill = fill
			monitoring.RecordOrderOutcome(string(result.Outcome))
			monitoring.RecordTrade(fill.Symbol, string(fill.Action), fill.Quantity, fill.Price)
			c.logger.Trade("Filled %s %d %s @ %.4f (order %s, attempt %d)",
				fill.Action, fill.Quantity, fill.Symbol, fill.Price, fill.OrderID, attempt)
			return result, nil
		}

		te := errors.Categorize(err, "execution", "submit")
		if !te.IsRetryable() {
			monitoring.RecordOrderAttempt("rejected")
			result.Outcome = OutcomeRejected
			monitoring.RecordOrderOutcome(string(result.Outcome))
			c.logger.Warning("Order %s rejected: %v", req.OrderLinkID, te)
			return result, te
		}

		monitoring.RecordOrderAttempt("retryable")
		lastErr = te
		delay := c.config.Delay(attempt)
		c.logger.Warning("Attempt %d/%d for %s failed: %v (waiting %s)",
			attempt, c.config.MaxAttempts, intent, te, delay)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	result.Outcome = OutcomeFailed
	monitoring.RecordOrderOutcome(string(result.Outcome))
	failure := errors.NewVenueUnavailable("execution", "submit", lastErr).
		WithContext("attempts", result.Attempts).
		WithContext("order_link_id", req.OrderLinkID)
	failure.Message = fmt.Sprintf("%s failed after %d attempts", intent, result.Attempts)

	c.logger.Error("%v", failure)
	if c.notifier != nil {
		if err := c.notifier.SendAlert("error", fmt.Sprintf("Order failed after %d attempts: %s\n%v", result.Attempts, intent, lastErr)); err != nil {
			c.logger.LogError("notify order failure", err)
		}
	}
	return result, failure
}

// clamp resolves balance and position limits locally. A non-empty outcome
// means the order should be skipped.
func (c *Controller) clamp(ctx context.Context, intent types.OrderIntent) (int64, Outcome, error) {
	qty := intent.Quantity

	switch intent.Action {
	case types.ActionBuy:
		balance, err := c.account.GetAvailableBalance(ctx)
		if err != nil {
			return 0, "", errors.Categorize(err, "execution", "available_balance")
		}
		maxAffordable := int64(math.Floor(balance / intent.Price))
		if maxAffordable < qty {
			c.logger.Info("Clamping %s BUY from %d to %d (balance %.2f)", intent.Symbol, qty, maxAffordable, balance)
			qty = maxAffordable
		}
		if qty <= 0 {
			return 0, OutcomeSkippedBalance, nil
		}
	case types.ActionSell:
		held := c.book.HeldQuantity(intent.Symbol)
		if held < qty {
			c.logger.Info("Clamping %s SELL from %d to held %d", intent.Symbol, qty, held)
			qty = held
		}
		if qty <= 0 {
			return 0, OutcomeSkippedPosition, nil
		}
	}
	return qty, "", nil
}

func (c *Controller) attempt(ctx context.Context, req exchange.OrderRequest) (*types.Fill, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.NewVenueUnavailable("execution", "rate_limit", err)
		}
	}

	var fill *types.Fill
	place := func() error {
		var err error
		fill, err = c.venue.PlaceMarketOrder(ctx, req)
		if err != nil {
			return errors.Categorize(err, "execution", "place_order")
		}
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(place)
	} else {
		err = place()
	}
	if err != nil {
		return nil, err
	}
	if fill == nil {
		return nil, errors.NewVenueUnavailable("execution", "place_order", fmt.Errorf("empty fill for %s", req.OrderLinkID))
	}
	if fill.Price <= 0 {
		fill.Price = req.Price
	}
	if fill.Quantity <= 0 {
		fill.Quantity = req.Quantity
	}
	return fill, nil
}

func (c *Controller) apply(intent types.OrderIntent, fill *types.Fill) {
	now := c.now()
	if intent.IsExit {
		c.book.ApplyExit(intent.Symbol, now)
		return
	}
	c.book.ApplyEntry(intent.Symbol, fill.Quantity, fill.Price, now)
}
