package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/intraday-risk-bot/internal/execution"
	"github.com/ducminhle1904/intraday-risk-bot/internal/ledger"
	"github.com/ducminhle1904/intraday-risk-bot/internal/risk"
	"github.com/ducminhle1904/intraday-risk-bot/internal/safety"
)

// BotConfig represents the complete configuration for the risk bot
type BotConfig struct {
	// Watchlist
	Symbols []SymbolConfig `json:"symbols" yaml:"symbols"`

	Exchange      ExchangeConfig     `json:"exchange" yaml:"exchange"`
	Risk          RiskConfig         `json:"risk" yaml:"risk"`
	Trading       TradingConfig      `json:"trading" yaml:"trading"`
	Execution     ExecutionConfig    `json:"execution" yaml:"execution"`
	Signals       SignalsConfig      `json:"signals" yaml:"signals"`
	Veto          VetoConfig         `json:"veto" yaml:"veto"`
	Calendar      CalendarConfig     `json:"calendar" yaml:"calendar"`
	State         StateConfig        `json:"state" yaml:"state"`
	Redis         RedisConfig        `json:"redis" yaml:"redis"`
	Notifications NotificationConfig `json:"notifications" yaml:"notifications"`
	Monitoring    MonitoringConfig   `json:"monitoring" yaml:"monitoring"`
	Logging       LoggingConfig      `json:"logging" yaml:"logging"`
	Reporting     ReportingConfig    `json:"reporting" yaml:"reporting"`
}

// SymbolConfig is one watched instrument
type SymbolConfig struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Sector string `json:"sector,omitempty" yaml:"sector,omitempty"`
}

// ExchangeConfig selects and configures the venue
type ExchangeConfig struct {
	Name      string  `json:"name" yaml:"name"` // "bybit" or "paper"
	Category  string  `json:"category" yaml:"category"`
	QuoteCoin string  `json:"quote_coin" yaml:"quote_coin"`
	Testnet   bool    `json:"testnet" yaml:"testnet"`
	Demo      bool    `json:"demo" yaml:"demo"`
	PaperCash float64 `json:"paper_cash" yaml:"paper_cash"`

	// Secrets come from the environment only
	APIKey    string `json:"-" yaml:"-"`
	APISecret string `json:"-" yaml:"-"`
}

// RiskConfig holds the loss breakers, holding rules and sizing parameters
type RiskConfig struct {
	DailyLossLimit       float64 `json:"daily_loss_limit" yaml:"daily_loss_limit"`
	WeeklyLossLimit      float64 `json:"weekly_loss_limit" yaml:"weekly_loss_limit"`
	MaxHoldMinutes       int     `json:"max_hold_minutes" yaml:"max_hold_minutes"`
	MinHoldMinutes       int     `json:"min_hold_minutes" yaml:"min_hold_minutes"`
	ExitCooldownMinutes  int     `json:"exit_cooldown_minutes" yaml:"exit_cooldown_minutes"`
	StopLossPct          float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct        float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
	MaxSinglePositionPct float64 `json:"max_single_position_pct" yaml:"max_single_position_pct"`
	MaxPerTradeRiskPct   float64 `json:"max_per_trade_risk_pct" yaml:"max_per_trade_risk_pct"`
	RiskPerTradePct      float64 `json:"risk_per_trade_pct" yaml:"risk_per_trade_pct"`
	ATRStopMultiplier    float64 `json:"atr_stop_multiplier" yaml:"atr_stop_multiplier"`
	ATRPeriod            int     `json:"atr_period" yaml:"atr_period"`
	TargetVolatility     float64 `json:"target_volatility" yaml:"target_volatility"`
	VolatilityWindow     int     `json:"volatility_window" yaml:"volatility_window"`
	MinHistory           int     `json:"min_history" yaml:"min_history"`
	CorrelationThreshold float64 `json:"correlation_threshold" yaml:"correlation_threshold"`
	MaxSectorWeight      float64 `json:"max_sector_weight" yaml:"max_sector_weight"`
	MinTradesForKelly    int     `json:"min_trades_for_kelly" yaml:"min_trades_for_kelly"`
	SizingMethod         string  `json:"sizing_method" yaml:"sizing_method"`
}

// TradingConfig holds the scheduling settings
type TradingConfig struct {
	SignalConfidenceThreshold float64 `json:"signal_confidence_threshold" yaml:"signal_confidence_threshold"`
	TickIntervalSeconds       int     `json:"tick_interval_seconds" yaml:"tick_interval_seconds"`
	VetoRefreshMinutes        int     `json:"veto_refresh_minutes" yaml:"veto_refresh_minutes"`
	AutoFlattenTime           string  `json:"auto_flatten_time" yaml:"auto_flatten_time"` // HH:MM local
	Timezone                  string  `json:"timezone" yaml:"timezone"`
	KlineInterval             string  `json:"kline_interval" yaml:"kline_interval"`
	KlineLimit                int     `json:"kline_limit" yaml:"kline_limit"`
}

// ExecutionConfig holds the retry, rate limit and breaker settings
type ExecutionConfig struct {
	MaxAttempts             int     `json:"max_attempts" yaml:"max_attempts"`
	BackoffBaseSeconds      float64 `json:"backoff_base_seconds" yaml:"backoff_base_seconds"`
	OrdersPerSecond         float64 `json:"orders_per_second" yaml:"orders_per_second"`
	OrderBurst              int     `json:"order_burst" yaml:"order_burst"`
	BreakerFailureThreshold uint32  `json:"breaker_failure_threshold" yaml:"breaker_failure_threshold"`
	BreakerTimeoutSeconds   int     `json:"breaker_timeout_seconds" yaml:"breaker_timeout_seconds"`
}

// SignalsConfig points at the external signal producer
type SignalsConfig struct {
	URL            string `json:"url" yaml:"url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// VetoConfig selects the veto source: "none", "static" or "redis"
type VetoConfig struct {
	Source string `json:"source" yaml:"source"`
	Key    string `json:"key,omitempty" yaml:"key,omitempty"`
	Vetoed bool   `json:"vetoed,omitempty" yaml:"vetoed,omitempty"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// CalendarConfig points at the blackout calendar file
type CalendarConfig struct {
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// StateConfig selects where the weekly P&L is persisted: "file" or "redis"
type StateConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	Dir     string `json:"dir" yaml:"dir"`
	Key     string `json:"key,omitempty" yaml:"key,omitempty"`
}

// RedisConfig holds the shared Redis connection
type RedisConfig struct {
	URL string `json:"-" yaml:"-"`
}

// NotificationConfig holds notification settings
type NotificationConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	TelegramToken string `json:"-" yaml:"-"`
	TelegramChat  string `json:"-" yaml:"-"`
}

// MonitoringConfig holds the ops HTTP server settings
type MonitoringConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Dir     string `json:"dir" yaml:"dir"`
	Console bool   `json:"console" yaml:"console"`
	Debug   bool   `json:"debug" yaml:"debug"`
}

// ReportingConfig holds the session report location
type ReportingConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// Default returns a configuration with every default applied and no symbols
func Default() *BotConfig {
	c := &BotConfig{}
	c.setDefaults()
	return c
}

// Load reads a JSON or YAML configuration file, applies defaults and
// environment secrets, then validates the result.
func Load(configFile string) (*BotConfig, error) {
	// If config file doesn't contain path separators, look in configs/ directory
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}
	if filepath.Ext(configFile) == "" {
		configFile += ".json"
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	config, err := Parse(data, filepath.Ext(configFile))
	if err != nil {
		return nil, err
	}
	return config, nil
}

// Parse decodes configuration data in the format implied by ext
func Parse(data []byte, ext string) (*BotConfig, error) {
	var config BotConfig
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.setDefaults()
	config.applyEnv()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// setDefaults sets default values for missing configuration
func (c *BotConfig) setDefaults() {
	// Exchange defaults
	if c.Exchange.Name == "" {
		c.Exchange.Name = "paper"
	}
	if c.Exchange.Category == "" {
		c.Exchange.Category = "spot"
	}
	if c.Exchange.QuoteCoin == "" {
		c.Exchange.QuoteCoin = "USDT"
	}
	if c.Exchange.PaperCash == 0 {
		c.Exchange.PaperCash = 100000
	}

	// Risk defaults
	r := &c.Risk
	if r.DailyLossLimit == 0 {
		r.DailyLossLimit = 1000
	}
	if r.WeeklyLossLimit == 0 {
		r.WeeklyLossLimit = 2500
	}
	if r.MaxHoldMinutes == 0 {
		r.MaxHoldMinutes = 45
	}
	if r.MinHoldMinutes == 0 {
		r.MinHoldMinutes = 3
	}
	if r.ExitCooldownMinutes == 0 {
		r.ExitCooldownMinutes = 5
	}
	if r.StopLossPct == 0 {
		r.StopLossPct = 1.0
	}
	if r.TakeProfitPct == 0 {
		r.TakeProfitPct = 2.0
	}
	if r.MaxSinglePositionPct == 0 {
		r.MaxSinglePositionPct = 0.25
	}
	if r.MaxPerTradeRiskPct == 0 {
		r.MaxPerTradeRiskPct = 0.10
	}
	if r.RiskPerTradePct == 0 {
		r.RiskPerTradePct = 1.0
	}
	if r.ATRStopMultiplier == 0 {
		r.ATRStopMultiplier = 2.0
	}
	if r.ATRPeriod == 0 {
		r.ATRPeriod = 14
	}
	if r.TargetVolatility == 0 {
		r.TargetVolatility = 0.25
	}
	if r.VolatilityWindow == 0 {
		r.VolatilityWindow = 20
	}
	if r.MinHistory == 0 {
		r.MinHistory = 20
	}
	if r.CorrelationThreshold == 0 {
		r.CorrelationThreshold = 0.3
	}
	if r.MaxSectorWeight == 0 {
		r.MaxSectorWeight = 0.40
	}
	if r.MinTradesForKelly == 0 {
		r.MinTradesForKelly = 10
	}
	if r.SizingMethod == "" {
		r.SizingMethod = string(risk.MethodAuto)
	}

	// Trading defaults
	t := &c.Trading
	if t.SignalConfidenceThreshold == 0 {
		t.SignalConfidenceThreshold = 0.65
	}
	if t.TickIntervalSeconds == 0 {
		t.TickIntervalSeconds = 30
	}
	if t.VetoRefreshMinutes == 0 {
		t.VetoRefreshMinutes = 10
	}
	if t.AutoFlattenTime == "" {
		t.AutoFlattenTime = "15:55"
	}
	if t.Timezone == "" {
		t.Timezone = "America/New_York"
	}
	if t.KlineInterval == "" {
		t.KlineInterval = "D"
	}
	if t.KlineLimit == 0 {
		t.KlineLimit = 60
	}

	// Execution defaults
	e := &c.Execution
	if e.MaxAttempts == 0 {
		e.MaxAttempts = 3
	}
	if e.BackoffBaseSeconds == 0 {
		e.BackoffBaseSeconds = 1
	}
	if e.OrdersPerSecond == 0 {
		e.OrdersPerSecond = 5
	}
	if e.OrderBurst == 0 {
		e.OrderBurst = 1
	}
	if e.BreakerFailureThreshold == 0 {
		e.BreakerFailureThreshold = 5
	}
	if e.BreakerTimeoutSeconds == 0 {
		e.BreakerTimeoutSeconds = 30
	}

	if c.Signals.TimeoutSeconds == 0 {
		c.Signals.TimeoutSeconds = 5
	}
	if c.Veto.Source == "" {
		c.Veto.Source = "none"
	}
	if c.State.Backend == "" {
		c.State.Backend = "file"
	}
	if c.State.Dir == "" {
		c.State.Dir = "state"
	}
	if c.Monitoring.Addr == "" {
		c.Monitoring.Addr = "127.0.0.1:9090"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Reporting.Dir == "" {
		c.Reporting.Dir = "results"
	}

	for i := range c.Symbols {
		c.Symbols[i].Symbol = strings.ToUpper(strings.TrimSpace(c.Symbols[i].Symbol))
	}
}

// applyEnv loads secrets from the environment
func (c *BotConfig) applyEnv() {
	if v := os.Getenv("BYBIT_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("BYBIT_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notifications.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notifications.TelegramChat = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
}

// validate validates the configuration
func (c *BotConfig) validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if s.Symbol == "" {
			return fmt.Errorf("symbol must not be empty")
		}
		if seen[s.Symbol] {
			return fmt.Errorf("duplicate symbol %s", s.Symbol)
		}
		seen[s.Symbol] = true
	}

	switch c.Exchange.Name {
	case "paper":
		if c.Exchange.PaperCash <= 0 {
			return fmt.Errorf("paper cash must be greater than 0")
		}
	case "bybit":
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return fmt.Errorf("BYBIT_API_KEY and BYBIT_API_SECRET environment variables are required")
		}
		if c.Exchange.Category != "spot" && c.Exchange.Category != "linear" {
			return fmt.Errorf("unsupported bybit category %q", c.Exchange.Category)
		}
	default:
		return fmt.Errorf("unsupported exchange %q", c.Exchange.Name)
	}

	r := c.Risk
	if r.DailyLossLimit <= 0 || r.WeeklyLossLimit <= 0 {
		return fmt.Errorf("loss limits must be greater than 0")
	}
	if r.MinHoldMinutes >= r.MaxHoldMinutes {
		return fmt.Errorf("min hold (%d) must be less than max hold (%d)", r.MinHoldMinutes, r.MaxHoldMinutes)
	}
	if r.MaxSinglePositionPct <= 0 || r.MaxSinglePositionPct > 1 {
		return fmt.Errorf("max single position pct must be between 0 and 1")
	}
	if r.MaxPerTradeRiskPct <= 0 || r.MaxPerTradeRiskPct > 1 {
		return fmt.Errorf("max per trade risk pct must be between 0 and 1")
	}
	if _, err := risk.ParseSizingMethod(r.SizingMethod); err != nil {
		return err
	}

	if th := c.Trading.SignalConfidenceThreshold; th <= 0 || th > 1 {
		return fmt.Errorf("signal confidence threshold must be between 0 and 1")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, _, err := c.FlattenClock(); err != nil {
		return err
	}

	if c.Execution.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}

	switch c.Veto.Source {
	case "none", "static":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis veto source")
		}
	default:
		return fmt.Errorf("unsupported veto source %q", c.Veto.Source)
	}

	switch c.State.Backend {
	case "file":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis state backend")
		}
	default:
		return fmt.Errorf("unsupported state backend %q", c.State.Backend)
	}

	if c.Notifications.Enabled && (c.Notifications.TelegramToken == "" || c.Notifications.TelegramChat == "") {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required when notifications are enabled")
	}
	return nil
}

// SymbolNames returns the watchlist in configuration order
func (c *BotConfig) SymbolNames() []string {
	names := make([]string, len(c.Symbols))
	for i, s := range c.Symbols {
		names[i] = s.Symbol
	}
	return names
}

// Sector returns the configured sector for symbol
func (c *BotConfig) Sector(symbol string) string {
	for _, s := range c.Symbols {
		if s.Symbol == symbol {
			return s.Sector
		}
	}
	return ""
}

// Location resolves the trading timezone
func (c *BotConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Trading.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Trading.Timezone, err)
	}
	return loc, nil
}

// FlattenClock parses the HH:MM auto-flatten time
func (c *BotConfig) FlattenClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.Trading.AutoFlattenTime)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid auto flatten time %q: %w", c.Trading.AutoFlattenTime, err)
	}
	return t.Hour(), t.Minute(), nil
}

// TickInterval returns the trading loop period
func (c *BotConfig) TickInterval() time.Duration {
	return time.Duration(c.Trading.TickIntervalSeconds) * time.Second
}

// VetoRefreshInterval returns the veto polling period
func (c *BotConfig) VetoRefreshInterval() time.Duration {
	return time.Duration(c.Trading.VetoRefreshMinutes) * time.Minute
}

// RiskConfig builds the sizing configuration
func (c *BotConfig) RiskConfig() risk.Config {
	r := c.Risk
	cfg := risk.DefaultConfig()
	cfg.MaxSinglePositionPct = r.MaxSinglePositionPct
	cfg.MaxPerTradeRiskPct = r.MaxPerTradeRiskPct
	cfg.Sizer.ATRStopMultiplier = r.ATRStopMultiplier
	cfg.Volatility.Window = r.VolatilityWindow
	cfg.Volatility.MinHistory = r.MinHistory
	cfg.Volatility.TargetVolatility = r.TargetVolatility
	cfg.Correlation.Threshold = r.CorrelationThreshold
	cfg.Correlation.MaxSymbolWeight = r.MaxSinglePositionPct
	cfg.Correlation.MaxSectorWeight = r.MaxSectorWeight
	return cfg
}

// SizingMethod returns the configured sizing method
func (c *BotConfig) SizingMethod() risk.SizingMethod {
	m, err := risk.ParseSizingMethod(c.Risk.SizingMethod)
	if err != nil {
		return risk.MethodAuto
	}
	return m
}

// LedgerConfig builds the ledger configuration
func (c *BotConfig) LedgerConfig() (ledger.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return ledger.Config{}, err
	}
	return ledger.Config{
		DailyLossLimit:  c.Risk.DailyLossLimit,
		WeeklyLossLimit: c.Risk.WeeklyLossLimit,
		ExitCooldown:    time.Duration(c.Risk.ExitCooldownMinutes) * time.Minute,
		Location:        loc,
	}, nil
}

// ExitConfig builds the exit policy configuration
func (c *BotConfig) ExitConfig() ledger.ExitConfig {
	return ledger.ExitConfig{
		MinHold:       time.Duration(c.Risk.MinHoldMinutes) * time.Minute,
		MaxHold:       time.Duration(c.Risk.MaxHoldMinutes) * time.Minute,
		StopLossPct:   c.Risk.StopLossPct,
		TakeProfitPct: c.Risk.TakeProfitPct,
	}
}

// RetryConfig builds the execution retry policy
func (c *BotConfig) RetryConfig() execution.RetryConfig {
	cfg := execution.DefaultRetryConfig()
	cfg.MaxAttempts = c.Execution.MaxAttempts
	cfg.BackoffBase = time.Duration(c.Execution.BackoffBaseSeconds * float64(time.Second))
	return cfg
}

// BreakerConfig builds the venue circuit breaker settings
func (c *BotConfig) BreakerConfig() safety.BreakerConfig {
	cfg := safety.DefaultBreakerConfig()
	cfg.FailureThreshold = c.Execution.BreakerFailureThreshold
	cfg.Timeout = time.Duration(c.Execution.BreakerTimeoutSeconds) * time.Second
	return cfg
}
