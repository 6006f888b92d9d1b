package safety

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/intraday-risk-bot/internal/errors"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

func TestBreakerTripsOnVenueFailures(t *testing.T) {
	var transitions []string
	b := NewBreaker("venue", BreakerConfig{FailureThreshold: 2, Timeout: time.Hour}, func(name, from, to string) {
		transitions = append(transitions, from+"->"+to)
	})

	down := errors.NewVenueUnavailable("venue", "place_order", stderrors.New("timeout"))
	assert.Error(t, b.Execute(func() error { return down }))
	assert.Error(t, b.Execute(func() error { return down }))
	assert.True(t, b.IsOpen())
	assert.Equal(t, []string{"closed->open"}, transitions)

	called := false
	err := b.Execute(func() error { called = true; return nil })
	assert.False(t, called)
	assert.Equal(t, errors.ErrorCategoryVenueUnavailable, errors.CategoryOf(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestBreakerIgnoresRejections(t *testing.T) {
	b := NewBreaker("venue", BreakerConfig{FailureThreshold: 1, Timeout: time.Hour}, nil)
	rejected := errors.NewOrderRejected("venue", "place_order", stderrors.New("insufficient buying power"))

	for i := 0; i < 3; i++ {
		err := b.Execute(func() error { return rejected })
		assert.Equal(t, errors.ErrorCategoryOrderRejected, errors.CategoryOf(err))
	}
	assert.False(t, b.IsOpen())
}

func TestBreakerManager(t *testing.T) {
	m := NewBreakerManager(nil)
	a := m.GetOrCreate("venue", BreakerConfig{FailureThreshold: 1, Timeout: time.Hour})
	assert.Same(t, a, m.GetOrCreate("venue", DefaultBreakerConfig()))
	m.GetOrCreate("signals", DefaultBreakerConfig())

	_ = a.Execute(func() error { return stderrors.New("boom") })
	assert.Equal(t, []string{"venue"}, m.OpenCircuits())
	assert.Equal(t, "closed", m.States()["signals"])
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter("orders", 1, 2)
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, rl.Wait(ctx))

	unlimited := NewRateLimiter("free", 0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow())
	}
}

func TestValidateIntent(t *testing.T) {
	tests := []struct {
		name   string
		intent types.OrderIntent
		code   string
	}{
		{"valid", types.OrderIntent{Symbol: "BRK.B", Action: types.ActionBuy, Quantity: 3, Price: 410}, ""},
		{"empty symbol", types.OrderIntent{Action: types.ActionBuy, Quantity: 3, Price: 10}, "SYMBOL_EMPTY"},
		{"bad chars", types.OrderIntent{Symbol: "AA PL", Action: types.ActionBuy, Quantity: 3, Price: 10}, "SYMBOL_INVALID_CHARS"},
		{"bad action", types.OrderIntent{Symbol: "AAPL", Action: "HOLD", Quantity: 3, Price: 10}, "INVALID_ACTION"},
		{"zero quantity", types.OrderIntent{Symbol: "AAPL", Action: types.ActionSell, Price: 10}, "INVALID_QUANTITY"},
		{"zero price", types.OrderIntent{Symbol: "AAPL", Action: types.ActionSell, Quantity: 1}, "INVALID_PRICE_NEGATIVE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ValidateIntent(tt.intent)
			assert.Equal(t, tt.code == "", r.Valid)
			assert.Equal(t, tt.code, r.Code)
		})
	}
}
