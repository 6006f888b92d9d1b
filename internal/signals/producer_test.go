package signals

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/intraday-risk-bot/internal/errors"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

func TestHTTPProducer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/signal", r.URL.Path)
		switch r.URL.Query().Get("symbol") {
		case "AAPL":
			w.Write([]byte(`{"direction":"long","confidence":0.72,"current_price":231.5,"exit_signal":false}`))
		case "BAD":
			w.Write([]byte(`{"direction":"LONG","confidence":7}`))
		case "HTML":
			w.Write([]byte(`<html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewHTTPProducer(srv.URL+"/", time.Second)
	ctx := context.Background()

	sig, err := p.GetSignal(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, types.DirectionLong, sig.Direction)
	assert.Equal(t, 0.72, sig.Confidence)
	assert.Equal(t, 231.5, sig.CurrentPrice)
	assert.True(t, sig.IsEntry(0.65))

	for _, symbol := range []string{"BAD", "HTML", "MISSING"} {
		_, err = p.GetSignal(ctx, symbol)
		assert.Equal(t, errors.ErrorCategoryDataUnavailable, errors.CategoryOf(err), symbol)
	}
}

func TestHTTPProducerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewHTTPProducer(srv.URL, time.Second).GetSignal(context.Background(), "AAPL")
	assert.True(t, errors.IsRetryable(err))
}

func TestNormalize(t *testing.T) {
	sig, err := Normalize(types.Signal{Direction: "sideways", Confidence: 0.5})
	require.NoError(t, err)
	assert.Equal(t, types.DirectionNeutral, sig.Direction)

	_, err = Normalize(types.Signal{Direction: "LONG", Confidence: -0.1})
	assert.Error(t, err)
}
