package bot

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/ducminhle1904/intraday-risk-bot/internal/errors"
	"github.com/ducminhle1904/intraday-risk-bot/internal/exchange"
	"github.com/ducminhle1904/intraday-risk-bot/internal/execution"
	"github.com/ducminhle1904/intraday-risk-bot/internal/ledger"
	"github.com/ducminhle1904/intraday-risk-bot/internal/monitoring"
	"github.com/ducminhle1904/intraday-risk-bot/internal/notifications"
	"github.com/ducminhle1904/intraday-risk-bot/internal/risk"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/reporting"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/types"
)

const tickTimeout = 30 * time.Second

// Tick runs one pass of the trading loop: day rollover and calendar, then
// every symbol concurrently. Per-symbol failures are logged and never abort
// the pass.
func (b *TradingBot) Tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	if newDay, newWeek := b.ledger.Rollover(); newDay {
		b.logger.Info("New trading day (new week: %v)", newWeek)
	}
	b.checkCalendar(ctx)

	var wg sync.WaitGroup
	var connMu sync.Mutex
	connected, failures := true, 0
	for _, symbol := range b.config.SymbolNames() {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			clean := false
			b.safeRun("tick "+symbol, func() {
				err := b.processSymbol(ctx, symbol)
				if err == nil {
					clean = true
					return
				}
				b.logger.LogWarning("Tick "+symbol, "%v", err)
				category := string(errors.CategoryOf(err))
				if category == "" {
					category = "unknown"
				}
				monitoring.RecordError(category)
				if b.health != nil {
					b.health.RecordError(fmt.Sprintf("%s: %v", symbol, err))
				}
				if errors.IsRetryable(err) {
					connMu.Lock()
					connected = false
					connMu.Unlock()
				}
			})
			if !clean {
				connMu.Lock()
				failures++
				connMu.Unlock()
			}
		}(symbol)
	}
	wg.Wait()

	b.updateMetrics()
	if b.health != nil {
		b.health.RecordTick(connected)
		if failures == 0 {
			b.health.ClearErrors()
		}
	}
}

func (b *TradingBot) processSymbol(ctx context.Context, symbol string) error {
	if pos, open := b.ledger.Positions().Position(symbol); open {
		return b.manageOpenPosition(ctx, pos)
	}
	return b.tryEnter(ctx, symbol)
}

// manageOpenPosition evaluates the exit policy for a held symbol. A missing
// signal or price never blocks the time and stop-loss exits.
func (b *TradingBot) manageOpenPosition(ctx context.Context, pos ledger.Position) error {
	// leftovers from an emergency flatten that lost a lease race
	if b.ledger.IsEmergency() {
		price := b.currentPrice(ctx, pos.Symbol, types.Signal{})
		return b.closePosition(ctx, pos.Symbol, price, ledger.ExitEmergency, true)
	}

	sig, err := b.signals.GetSignal(ctx, pos.Symbol)
	if err != nil {
		b.logger.Debug("No signal for %s: %v", pos.Symbol, err)
		sig = types.Signal{Direction: types.DirectionNeutral}
	}
	monitoring.UpdateSignalConfidence(pos.Symbol, sig.Confidence)

	price := b.currentPrice(ctx, pos.Symbol, sig)
	decision := ledger.EvaluateExit(b.exitConfig, pos, sig, price, b.now())
	if !decision.Exit {
		return nil
	}

	b.logger.Info("Exit %s: %s (%s)", pos.Symbol, decision.Reason, decision.Detail)
	return b.closePosition(ctx, pos.Symbol, price, decision.Reason, decision.Forced)
}

// tryEnter evaluates a long entry for a flat symbol
func (b *TradingBot) tryEnter(ctx context.Context, symbol string) error {
	if ok, reason := b.ledger.CanEnter(); !ok {
		b.logger.Debug("Entry for %s blocked: %s", symbol, reason)
		return nil
	}

	sig, err := b.signals.GetSignal(ctx, symbol)
	if err != nil {
		return fmt.Errorf("signal for %s: %w", symbol, err)
	}
	monitoring.UpdateSignalConfidence(symbol, sig.Confidence)
	if !sig.IsEntry(b.config.Trading.SignalConfidenceThreshold) {
		return nil
	}

	lease, err := b.ledger.TryAcquireEntry(symbol)
	if err != nil {
		b.logger.Debug("Entry for %s not possible: %v", symbol, err)
		return nil
	}
	defer lease.Release()

	price := b.currentPrice(ctx, symbol, sig)
	if price <= 0 {
		return errors.NewDataUnavailable("bot", "enter", fmt.Sprintf("no price for %s", symbol))
	}

	req, err := b.sizingRequest(ctx, symbol, price)
	if err != nil {
		return err
	}
	rec, err := b.coordinator.CalculatePosition(req)
	if err != nil {
		return errors.WrapError(err, errors.ErrorCategoryDataUnavailable, "bot", "size")
	}
	monitoring.RecordSizing(string(rec.Method), rec.Approved)

	if !rec.Approved || rec.Shares <= 0 {
		b.logger.Warning("Entry for %s not approved: shares=%d warnings=%v", symbol, rec.Shares, rec.Warnings)
		b.event("sizing", "%s entry rejected: %v", symbol, rec.Warnings)
		return nil
	}
	for _, w := range rec.Warnings {
		b.logger.Warning("%s sizing: %s", symbol, w)
	}

	intent := types.OrderIntent{
		Symbol:   symbol,
		Action:   types.ActionBuy,
		Quantity: int64(rec.Shares),
		Price:    price,
	}
	b.logger.Info("Entering %s (confidence %.2f, method %s)", intent, sig.Confidence, rec.Method)

	res, err := b.controller.Submit(ctx, intent)
	if err != nil {
		return err
	}
	if res.Outcome == execution.OutcomeFilled {
		b.event("entry", "%s %d @ %.4f", symbol, res.Fill.Quantity, res.Fill.Price)
	}
	return nil
}

func (b *TradingBot) sizingRequest(ctx context.Context, symbol string, price float64) (risk.SizingRequest, error) {
	equity, err := b.venue.GetEquity(ctx)
	if err != nil {
		return risk.SizingRequest{}, errors.Categorize(err, "bot", "equity")
	}

	var atr float64
	var closes []float64
	candles, err := b.venue.GetKlines(ctx, symbol, exchange.Interval(b.config.Trading.KlineInterval), b.config.Trading.KlineLimit)
	if err != nil {
		b.logger.Debug("No candles for %s: %v", symbol, err)
	} else {
		closes = types.Closes(candles)
		if v, err := b.atr.Calculate(candles); err == nil {
			atr = v
		}
		b.rememberCloses(symbol, closes)
		b.updateCorrelations(symbol, closes)
	}

	stats := b.ledger.TradeStats()
	if stats.Trades < b.config.Risk.MinTradesForKelly {
		stats = risk.TradeStats{}
	}

	return risk.SizingRequest{
		Symbol:          symbol,
		Price:           price,
		Equity:          equity,
		Stats:           stats,
		ATR:             atr,
		RiskPerTradePct: b.config.Risk.RiskPerTradePct,
		PriceHistory:    closes,
		Portfolio:       b.portfolio(),
		Sector:          b.config.Sector(symbol),
		Method:          b.config.SizingMethod(),
	}, nil
}

// portfolio values open positions at the last seen price
func (b *TradingBot) portfolio() []risk.PositionInfo {
	open := b.ledger.Positions().OpenPositions()
	infos := make([]risk.PositionInfo, 0, len(open))

	b.cacheMu.RLock()
	defer b.cacheMu.RUnlock()
	for _, p := range open {
		price := b.lastPrices[p.Symbol]
		if price <= 0 {
			price = p.EntryPrice
		}
		infos = append(infos, risk.PositionInfo{
			Symbol: p.Symbol,
			Value:  float64(p.Quantity) * price,
			Sector: b.config.Sector(p.Symbol),
		})
	}
	return infos
}

func (b *TradingBot) updateCorrelations(symbol string, closes []float64) {
	guard := b.coordinator.Correlation()
	b.cacheMu.RLock()
	defer b.cacheMu.RUnlock()
	for other, otherCloses := range b.closes {
		if other == symbol {
			continue
		}
		guard.UpdateFromPrices(symbol, closes, other, otherCloses)
	}
}

// currentPrice prefers the venue's last price and falls back to the signal's
func (b *TradingBot) currentPrice(ctx context.Context, symbol string, sig types.Signal) float64 {
	price, err := b.venue.GetLatestPrice(ctx, symbol)
	if err != nil || price <= 0 {
		b.logger.Debug("Latest price for %s unavailable: %v", symbol, err)
		price = sig.CurrentPrice
	}
	b.rememberPrice(symbol, price)
	return price
}

// closePosition sells the full position, records the realized P&L and reacts
// to breaker transitions
func (b *TradingBot) closePosition(ctx context.Context, symbol string, price float64, reason ledger.ExitReason, forced bool) error {
	ev, closed, err := b.submitExit(ctx, symbol, price, reason, forced)
	if err != nil || !closed {
		return err
	}

	if ev.WeeklyLimitTriggered {
		b.logger.Warning("Weekly loss limit hit (weekly pnl %.2f); entries paused until next week", ev.WeeklyPnL)
		b.event("weekly_limit", "weekly pnl %.2f", ev.WeeklyPnL)
		b.notify(notifications.LevelWarning, fmt.Sprintf("Weekly loss limit hit: %.2f. Entries paused until next week.", ev.WeeklyPnL))
	}
	if ev.EmergencyTriggered {
		b.handleEmergency(ctx, ev)
	}
	return nil
}

func (b *TradingBot) submitExit(ctx context.Context, symbol string, price float64, reason ledger.ExitReason, forced bool) (ledger.LedgerEvent, bool, error) {
	lease, err := b.ledger.TryAcquireExit(symbol, forced)
	if err != nil {
		if stderrors.Is(err, ledger.ErrNoPosition) {
			return ledger.LedgerEvent{}, false, nil
		}
		return ledger.LedgerEvent{}, false, fmt.Errorf("exit %s (%s): %w", symbol, reason, err)
	}
	defer lease.Release()

	pos, open := b.ledger.Positions().Position(symbol)
	if !open {
		return ledger.LedgerEvent{}, false, nil
	}
	if price <= 0 {
		price = pos.EntryPrice
	}

	res, err := b.controller.Submit(ctx, types.OrderIntent{
		Symbol:   symbol,
		Action:   types.ActionSell,
		Quantity: pos.Quantity,
		Price:    price,
		IsExit:   true,
	})
	if err != nil {
		return ledger.LedgerEvent{}, false, err
	}
	if res.Outcome != execution.OutcomeFilled {
		return ledger.LedgerEvent{}, false, nil
	}

	fill := res.Fill
	pnl := (fill.Price - pos.EntryPrice) * float64(fill.Quantity)
	ev := b.ledger.RecordPnL(ctx, symbol, pnl)
	monitoring.RecordRealizedPnL(symbol, string(reason), pnl)

	now := b.now()
	b.logger.Trade("Closed %s %d @ %.4f (entry %.4f) pnl %.2f reason %s",
		symbol, fill.Quantity, fill.Price, pos.EntryPrice, pnl, reason)
	if b.session != nil {
		b.session.AddTrade(reporting.TradeRecord{
			Symbol:     symbol,
			Quantity:   fill.Quantity,
			EntryPrice: pos.EntryPrice,
			ExitPrice:  fill.Price,
			EntryTime:  pos.EntryTime,
			ExitTime:   now,
			PnL:        pnl,
			Reason:     string(reason),
		})
	}
	return ev, true, nil
}

// handleEmergency reacts to the first daily loss breach: alert, then flatten
// everything. A failed flatten is reported too.
func (b *TradingBot) handleEmergency(ctx context.Context, ev ledger.LedgerEvent) {
	msg := fmt.Sprintf("EMERGENCY SHUTDOWN: daily pnl %.2f breached the %.2f limit. Flattening all positions.",
		ev.DailyPnL, b.config.Risk.DailyLossLimit)
	b.logger.Error("%s", msg)
	b.event("emergency", "%s", msg)
	b.notify(notifications.LevelError, msg)

	if err := b.FlattenAll(ctx, ledger.ExitEmergency); err != nil {
		b.logger.LogError("emergency flatten", err)
		b.notify(notifications.LevelError, fmt.Sprintf("Emergency flatten incomplete: %v", err))
	}
}

// FlattenAll force-closes every open position. Errors for individual symbols
// are joined; the remaining symbols are still attempted.
func (b *TradingBot) FlattenAll(ctx context.Context, reason ledger.ExitReason) error {
	open := b.ledger.Positions().OpenPositions()
	if len(open) == 0 {
		return nil
	}
	b.logger.Info("Flattening %d positions (%s)", len(open), reason)

	var errs []error
	for _, pos := range open {
		price, err := b.venue.GetLatestPrice(ctx, pos.Symbol)
		if err != nil {
			b.cacheMu.RLock()
			price = b.lastPrices[pos.Symbol]
			b.cacheMu.RUnlock()
		}
		if err := b.closePosition(ctx, pos.Symbol, price, reason, true); err != nil {
			errs = append(errs, err)
		}
	}
	b.updateMetrics()
	return stderrors.Join(errs...)
}

func (b *TradingBot) updateMetrics() {
	status := b.ledger.Status()
	flags := make([]string, len(status.Flags))
	for i, f := range status.Flags {
		flags[i] = string(f)
	}
	monitoring.UpdateLedger(status.DailyPnL, status.WeeklyPnL, flags)
}
