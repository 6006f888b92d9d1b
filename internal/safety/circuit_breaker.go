package safety

import (
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ducminhle1904/intraday-risk-bot/internal/errors"
)

// BreakerConfig holds configuration for a circuit breaker
type BreakerConfig struct {
	FailureThreshold uint32        `json:"failure_threshold"` // consecutive failures before opening
	MaxRequests      uint32        `json:"max_requests"`      // probes allowed while half-open
	Timeout          time.Duration `json:"timeout"`           // open duration before probing
	Interval         time.Duration `json:"interval"`          // closed-state count reset window
}

// DefaultBreakerConfig returns the venue breaker defaults
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		MaxRequests:      1,
		Timeout:          30 * time.Second,
		Interval:         5 * time.Minute,
	}
}

// StateChangeFunc is called on every breaker transition
type StateChangeFunc func(name, from, to string)

// Breaker guards calls to an external dependency. Only transport failures
// count toward tripping; business rejections pass through as successes.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker; onChange may be nil
func NewBreaker(name string, config BreakerConfig, onChange StateChangeFunc) *Breaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.MaxRequests == 0 {
		config.MaxRequests = 1
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	threshold := config.FailureThreshold
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.CategoryOf(err) == errors.ErrorCategoryOrderRejected
		},
	}
	if onChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			onChange(name, from.String(), to.String())
		}
	}

	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs fn through the breaker. An open breaker surfaces as a
// retryable venue-unavailable error.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.NewVenueUnavailable(b.name, "execute", err)
	}
	return err
}

// State returns "closed", "half-open" or "open"
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// IsOpen reports whether calls are currently being short-circuited
func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// BreakerManager keeps named breakers for health reporting
type BreakerManager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	onChange StateChangeFunc
}

// NewBreakerManager creates an empty manager
func NewBreakerManager(onChange StateChangeFunc) *BreakerManager {
	return &BreakerManager{
		breakers: make(map[string]*Breaker),
		onChange: onChange,
	}
}

// GetOrCreate returns the named breaker, creating it on first use
func (m *BreakerManager) GetOrCreate(name string, config BreakerConfig) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok = m.breakers[name]; ok {
		return b
	}
	b = NewBreaker(name, config, m.onChange)
	m.breakers[name] = b
	return b
}

// States returns each breaker's current state
func (m *BreakerManager) States() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	states := make(map[string]string, len(m.breakers))
	for name, b := range m.breakers {
		states[name] = b.State()
	}
	return states
}

// OpenCircuits returns the sorted names of open breakers
func (m *BreakerManager) OpenCircuits() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var open []string
	for name, b := range m.breakers {
		if b.IsOpen() {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}
