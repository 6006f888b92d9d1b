package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ducminhle1904/intraday-risk-bot/internal/errors"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

// Producer returns the current trading signal for a symbol
type Producer interface {
	GetSignal(ctx context.Context, symbol string) (types.Signal, error)
}

// ProducerFunc adapts a function to Producer
type ProducerFunc func(ctx context.Context, symbol string) (types.Signal, error)

// GetSignal calls f
func (f ProducerFunc) GetSignal(ctx context.Context, symbol string) (types.Signal, error) {
	return f(ctx, symbol)
}

// HTTPProducer fetches signals from GET {baseURL}/signal?symbol=SYM
type HTTPProducer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProducer creates a producer with the given request timeout
func NewHTTPProducer(baseURL string, timeout time.Duration) *HTTPProducer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProducer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// GetSignal fetches and validates one signal
func (p *HTTPProducer) GetSignal(ctx context.Context, symbol string) (types.Signal, error) {
	endpoint := fmt.Sprintf("%s/signal?symbol=%s", p.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.Signal{}, fmt.Errorf("failed to build signal request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return types.Signal{}, errors.NewVenueUnavailable("signals", "get_signal", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.Signal{}, errors.NewVenueUnavailable("signals", "get_signal", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.Signal{}, errors.NewDataUnavailable("signals", "get_signal",
			fmt.Sprintf("signal service returned status %d for %s", resp.StatusCode, symbol))
	}

	var sig types.Signal
	if err := json.Unmarshal(body, &sig); err != nil {
		return types.Signal{}, errors.NewDataUnavailable("signals", "get_signal",
			fmt.Sprintf("invalid signal payload for %s: %v", symbol, err))
	}
	return Normalize(sig)
}

// Normalize validates a signal: unknown directions become NEUTRAL and
// confidence must lie in [0, 1]
func Normalize(sig types.Signal) (types.Signal, error) {
	sig.Direction = types.Direction(strings.ToUpper(string(sig.Direction)))
	switch sig.Direction {
	case types.DirectionLong, types.DirectionShort, types.DirectionNeutral:
	default:
		sig.Direction = types.DirectionNeutral
	}
	if sig.Confidence < 0 || sig.Confidence > 1 {
		return types.Signal{}, errors.NewDataUnavailable("signals", "normalize",
			fmt.Sprintf("confidence %.4f outside [0, 1]", sig.Confidence))
	}
	return sig, nil
}
