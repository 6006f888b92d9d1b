package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var startTime = time.Now()

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_bot_trades_total",
			Help: "Total number of filled orders",
		},
		[]string{"symbol", "side"},
	)

	tradeNotional = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "risk_bot_trade_notional",
			Help:    "Distribution of filled order notional",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12),
		},
		[]string{"symbol"},
	)

	realizedPnL = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "risk_bot_realized_pnl",
			Help:    "Realized P&L per closed position",
			Buckets: []float64{-1000, -500, -250, -100, -50, 0, 50, 100, 250, 500, 1000},
		},
		[]string{"symbol", "reason"},
	)

	// Execution metrics
	orderAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_bot_order_attempts_total",
			Help: "Order submission attempts by result",
		},
		[]string{"result"},
	)

	orderOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_bot_order_outcomes_total",
			Help: "Final outcome of each order intent",
		},
		[]string{"outcome"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_bot_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// Ledger metrics
	dailyPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "risk_bot_daily_pnl",
		Help: "Realized P&L for the current trading day",
	})

	weeklyPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "risk_bot_weekly_pnl",
		Help: "Realized P&L for the current ISO week",
	})

	tradingFlags = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_bot_trading_flag",
			Help: "Active trading state flags (1 set, 0 clear)",
		},
		[]string{"flag"},
	)

	// Market and sizing metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_bot_current_price",
			Help: "Last observed price per symbol",
		},
		[]string{"symbol"},
	)

	signalConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_bot_signal_confidence",
			Help: "Last signal confidence per symbol",
		},
		[]string{"symbol"},
	)

	sizingDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_bot_sizing_decisions_total",
			Help: "Position recommendations by method and approval",
		},
		[]string{"method", "approved"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_bot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

// known flags are always exported so dashboards see explicit zeros
var knownFlags = []string{"ACTIVE", "PAUSED_USER", "PAUSED_WEEKLY_LIMIT", "BLACKOUT", "EMERGENCY_SHUTDOWN"}

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradeNotional)
	prometheus.MustRegister(realizedPnL)
	prometheus.MustRegister(orderAttempts)
	prometheus.MustRegister(orderOutcomes)
	prometheus.MustRegister(breakerState)
	prometheus.MustRegister(dailyPnL)
	prometheus.MustRegister(weeklyPnL)
	prometheus.MustRegister(tradingFlags)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(signalConfidence)
	prometheus.MustRegister(sizingDecisions)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler serves the Prometheus metrics endpoint
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTrade records a filled order
func RecordTrade(symbol, side string, quantity int64, price float64) {
	tradesTotal.WithLabelValues(symbol, side).Inc()
	tradeNotional.WithLabelValues(symbol).Observe(float64(quantity) * price)
}

// RecordRealizedPnL records the P&L of a closed position
func RecordRealizedPnL(symbol, reason string, pnl float64) {
	realizedPnL.WithLabelValues(symbol, reason).Observe(pnl)
}

// RecordOrderAttempt records one submission attempt ("success", "retryable", "rejected")
func RecordOrderAttempt(result string) {
	orderAttempts.WithLabelValues(result).Inc()
}

// RecordOrderOutcome records the final outcome of an order intent
func RecordOrderOutcome(outcome string) {
	orderOutcomes.WithLabelValues(outcome).Inc()
}

// UpdateBreakerState exports a breaker transition
func UpdateBreakerState(name, state string) {
	value := 0.0
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	breakerState.WithLabelValues(name).Set(value)
}

// UpdateLedger exports the P&L counters and the active flag set
func UpdateLedger(daily, weekly float64, flags []string) {
	dailyPnL.Set(daily)
	weeklyPnL.Set(weekly)

	active := make(map[string]bool, len(flags))
	for _, f := range flags {
		active[f] = true
	}
	for _, f := range knownFlags {
		v := 0.0
		if active[f] {
			v = 1
		}
		tradingFlags.WithLabelValues(f).Set(v)
	}
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateSignalConfidence updates the signal confidence metric
func UpdateSignalConfidence(symbol string, confidence float64) {
	signalConfidence.WithLabelValues(symbol).Set(confidence)
}

// RecordSizing records a position recommendation
func RecordSizing(method string, approved bool) {
	label := "false"
	if approved {
		label = "true"
	}
	sizingDecisions.WithLabelValues(method, label).Inc()
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
