package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/intraday-risk-bot/internal/bot"
	"github.com/ducminhle1904/intraday-risk-bot/internal/calendar"
	"github.com/ducminhle1904/intraday-risk-bot/internal/config"
	"github.com/ducminhle1904/intraday-risk-bot/internal/exchange"
	"github.com/ducminhle1904/intraday-risk-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/intraday-risk-bot/internal/exchange/paper"
	"github.com/ducminhle1904/intraday-risk-bot/internal/execution"
	"github.com/ducminhle1904/intraday-risk-bot/internal/ledger"
	"github.com/ducminhle1904/intraday-risk-bot/internal/logger"
	"github.com/ducminhle1904/intraday-risk-bot/internal/monitoring"
	"github.com/ducminhle1904/intraday-risk-bot/internal/notifications"
	"github.com/ducminhle1904/intraday-risk-bot/internal/risk"
	"github.com/ducminhle1904/intraday-risk-bot/internal/safety"
	"github.com/ducminhle1904/intraday-risk-bot/internal/signals"
	"github.com/ducminhle1904/intraday-risk-bot/internal/state"
	"github.com/ducminhle1904/intraday-risk-bot/internal/veto"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/reporting"
)

const shutdownTimeout = 2 * time.Minute

var (
	runConfigPath string
	runEnvFile    string
)

// runCmd starts the live trading loop
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading bot until interrupted",
	Long: `Run the trading bot against the configured venue.

Credentials are read from the environment (BYBIT_API_KEY, BYBIT_API_SECRET,
TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID, REDIS_URL), optionally loaded from the
--env file first. On SIGINT or SIGTERM every open position is flattened and
the session report is written.

Example usage:
  risk-bot run --config risk-bot.yaml
  risk-bot run --config /etc/risk-bot/prod.yaml --env /etc/risk-bot/.env`,
	RunE: runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	if err := loadEnvFile(runEnvFile); err != nil {
		fmt.Printf("⚠️  %v, using process environment\n", err)
	}

	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger("risk_bot", logger.Options{
		Dir:     cfg.Logging.Dir,
		Console: cfg.Logging.Console,
		Debug:   cfg.Logging.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	app, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	fmt.Printf("🚀 Starting risk bot on %s (%s), %d symbols\n", app.venue.Name(), app.venue.Environment(), len(cfg.Symbols))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.bot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}
	if app.server != nil {
		app.server.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\n🛑 Shutdown signal received...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	stopErr := app.bot.Stop(stopCtx)
	if app.server != nil {
		if err := app.server.Shutdown(stopCtx); err != nil {
			log.LogError("ops server shutdown", err)
		}
	}
	if stopErr != nil {
		return fmt.Errorf("bot stopped with errors: %w", stopErr)
	}
	fmt.Println("✅ Bot stopped successfully")
	return nil
}

// app is the fully wired process
type app struct {
	bot     *bot.TradingBot
	venue   exchange.Venue
	server  *monitoring.Server
	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// buildApp wires every component from the configuration
func buildApp(cfg *config.BotConfig, log *logger.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	a.venue = newVenue(cfg)

	var rdb *redis.Client
	if cfg.State.Backend == "redis" || cfg.Veto.Source == "redis" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fail(fmt.Errorf("invalid REDIS_URL: %w", err))
		}
		opts.PoolSize = 4
		opts.ReadTimeout = 3 * time.Second
		opts.WriteTimeout = 3 * time.Second
		rdb = redis.NewClient(opts)
		a.closers = append(a.closers, rdb.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fail(fmt.Errorf("redis connection failed: %w", err))
		}
	}

	store, err := newStore(cfg, rdb, log)
	if err != nil {
		return fail(err)
	}

	lcfg, err := cfg.LedgerConfig()
	if err != nil {
		return fail(err)
	}
	riskLedger := ledger.NewRiskLedger(lcfg, store, ledger.WithLogger(log.With("ledger")))

	notifier := newNotifier(cfg, log)

	breakers := safety.NewBreakerManager(func(name, from, to string) {
		monitoring.UpdateBreakerState(name, to)
		log.Warning("Circuit breaker %s: %s -> %s", name, from, to)
	})
	breaker := breakers.GetOrCreate("venue", cfg.BreakerConfig())
	limiter := safety.NewRateLimiter("orders", cfg.Execution.OrdersPerSecond, cfg.Execution.OrderBurst)

	controller := execution.NewController(a.venue, a.venue, riskLedger.Positions(), cfg.RetryConfig(),
		execution.WithBreaker(breaker),
		execution.WithRateLimiter(limiter),
		execution.WithNotifier(notifier),
		execution.WithLogger(log.With("execution")),
	)

	if cfg.Signals.URL == "" {
		return fail(fmt.Errorf("signals.url is required"))
	}
	producer := signals.NewHTTPProducer(cfg.Signals.URL, time.Duration(cfg.Signals.TimeoutSeconds)*time.Second)

	vetoSource := newVetoSource(cfg, rdb)

	var checker calendar.Checker = calendar.None{}
	if cfg.Calendar.File != "" {
		cal, err := calendar.LoadFile(cfg.Calendar.File, cfg.SymbolNames())
		if err != nil {
			return fail(fmt.Errorf("failed to load calendar: %w", err))
		}
		log.Info("Loaded %d calendar events from %s", cal.Len(), cfg.Calendar.File)
		checker = cal
	}

	health := monitoring.NewHealthChecker(3 * cfg.TickInterval())
	health.SetOpenCircuits(breakers.OpenCircuits)

	a.bot, err = bot.New(cfg, bot.Dependencies{
		Venue:       a.venue,
		Signals:     producer,
		Ledger:      riskLedger,
		Coordinator: risk.NewPositionRiskCoordinator(cfg.RiskConfig(), nil),
		Controller:  controller,
		Veto:        vetoSource,
		Calendar:    checker,
		Notifier:    notifier,
		Health:      health,
		Session:     reporting.NewSession(time.Now()),
		Logger:      log,
		Output:      os.Stdout,
	})
	if err != nil {
		return fail(err)
	}

	if cfg.Monitoring.Enabled {
		scfg := monitoring.DefaultServerConfig()
		scfg.Addr = cfg.Monitoring.Addr
		a.server = monitoring.NewServer(scfg, health, a.bot, log.With("ops"))
	}
	return a, nil
}

func newVenue(cfg *config.BotConfig) exchange.Venue {
	if cfg.Exchange.Name == "bybit" {
		return bybit.NewClient(bybit.Config{
			APIKey:    cfg.Exchange.APIKey,
			APISecret: cfg.Exchange.APISecret,
			Testnet:   cfg.Exchange.Testnet,
			Demo:      cfg.Exchange.Demo,
			Category:  cfg.Exchange.Category,
			QuoteCoin: cfg.Exchange.QuoteCoin,
		})
	}
	return paper.NewVenue(cfg.Exchange.PaperCash)
}

func newStore(cfg *config.BotConfig, rdb *redis.Client, log *logger.Logger) (ledger.Store, error) {
	if cfg.State.Backend == "redis" {
		return state.NewRedisStoreFromClient(rdb, cfg.State.Key), nil
	}
	store, err := state.NewFileStore(cfg.State.Dir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open state dir: %w", err)
	}
	return store, nil
}

func newVetoSource(cfg *config.BotConfig, rdb *redis.Client) veto.Source {
	switch cfg.Veto.Source {
	case "redis":
		return veto.NewRedisSourceFromClient(rdb, cfg.Veto.Key)
	case "static":
		return veto.NewStaticSource(cfg.Veto.Vetoed, cfg.Veto.Reason)
	}
	return nil
}

func newNotifier(cfg *config.BotConfig, log *logger.Logger) notifications.Notifier {
	sinks := []notifications.Notifier{notifications.NewLogNotifier(log)}
	if cfg.Notifications.Enabled {
		sinks = append(sinks, notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChat))
	}
	return notifications.NewMultiNotifier(sinks...)
}
