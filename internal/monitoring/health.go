package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const maxRecentErrors = 10

// HealthChecker tracks scheduler liveness and venue connectivity
type HealthChecker struct {
	mu          sync.RWMutex
	staleAfter  time.Duration
	lastTick    time.Time
	isConnected bool
	errors      []string
	openCircuit func() []string
	now         func() time.Time
}

// HealthStatus is the /health response body
type HealthStatus struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	LastTick     time.Time `json:"last_tick"`
	IsConnected  bool      `json:"is_connected"`
	Uptime       string    `json:"uptime"`
	OpenCircuits []string  `json:"open_circuits,omitempty"`
	Errors       []string  `json:"errors,omitempty"`
}

// NewHealthChecker reports degraded when no tick completed within staleAfter
func NewHealthChecker(staleAfter time.Duration) *HealthChecker {
	return &HealthChecker{
		staleAfter: staleAfter,
		errors:     make([]string, 0),
		now:        time.Now,
	}
}

// SetOpenCircuits registers a source of open breaker names
func (h *HealthChecker) SetOpenCircuits(fn func() []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openCircuit = fn
}

// RecordTick marks a completed trading loop iteration
func (h *HealthChecker) RecordTick(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTick = h.now()
	h.isConnected = connected
}

// RecordError keeps the most recent errors for the health report
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > maxRecentErrors {
		h.errors = h.errors[len(h.errors)-maxRecentErrors:]
	}
}

// ClearErrors drops recorded errors, typically after a clean tick
func (h *HealthChecker) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = h.errors[:0]
}

// Check computes the current health
func (h *HealthChecker) Check() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	var open []string
	if h.openCircuit != nil {
		open = h.openCircuit()
	}

	status := "healthy"
	if !h.isConnected || len(open) > 0 || (h.staleAfter > 0 && now.Sub(h.lastTick) > h.staleAfter) {
		status = "degraded"
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
	}

	return HealthStatus{
		Status:       status,
		Timestamp:    now,
		LastTick:     h.lastTick,
		IsConnected:  h.isConnected,
		Uptime:       time.Since(startTime).Round(time.Second).String(),
		OpenCircuits: open,
		Errors:       append([]string(nil), h.errors...),
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Check()

	w.Header().Set("Content-Type", "application/json")
	switch health.Status {
	case "degraded":
		w.WriteHeader(http.StatusServiceUnavailable)
	case "unhealthy":
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(health)
}
