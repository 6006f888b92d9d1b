package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ducminhle1904/intraday-risk-bot/internal/ledger"
	"github.com/ducminhle1904/intraday-risk-bot/internal/monitoring"
	"github.com/ducminhle1904/intraday-risk-bot/internal/notifications"
)

// tradingLoop runs Tick on the configured period until Stop
func (b *TradingBot) tradingLoop() {
	defer b.wg.Done()

	interval := b.config.TickInterval()
	b.logger.Info("Trading loop every %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.safeRun("trading tick", func() { b.Tick(context.Background()) })
	for {
		select {
		case <-ticker.C:
			b.safeRun("trading tick", func() { b.Tick(context.Background()) })
		case <-b.stopChan:
			b.logger.Info("Stop signal received - ending trading loop")
			return
		}
	}
}

// flattenLoop closes every position at the daily flatten time on weekdays
func (b *TradingBot) flattenLoop() {
	defer b.wg.Done()

	for {
		next := nextFlattenTime(b.now(), b.location, b.flattenHour, b.flattenMinute)
		b.logger.Info("Next auto-flatten at %s", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(b.now()))
		select {
		case <-timer.C:
			b.safeRun("auto flatten", func() { b.autoFlatten(context.Background()) })
		case <-b.stopChan:
			timer.Stop()
			return
		}
	}
}

func (b *TradingBot) autoFlatten(ctx context.Context) {
	n := len(b.ledger.Positions().OpenPositions())
	b.logger.Info("Auto-flatten: closing %d positions", n)
	b.event("flatten", "auto-flatten closing %d positions", n)

	if err := b.FlattenAll(ctx, ledger.ExitFlatten); err != nil {
		b.logger.LogError("auto flatten", err)
		b.notify(notifications.LevelError, fmt.Sprintf("Auto-flatten incomplete: %v", err))
		return
	}
	if n > 0 {
		b.notify(notifications.LevelInfo, fmt.Sprintf("Auto-flatten closed %d positions", n))
	}
}

// nextFlattenTime returns the first weekday occurrence of hour:minute in loc
// strictly after now
func nextFlattenTime(now time.Time, loc *time.Location, hour, minute int) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// vetoLoop polls the veto source on the configured period
func (b *TradingBot) vetoLoop() {
	defer b.wg.Done()
	if b.veto == nil {
		return
	}

	ticker := time.NewTicker(b.config.VetoRefreshInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.safeRun("veto refresh", func() { b.refreshVeto(context.Background()) })
		case <-b.stopChan:
			return
		}
	}
}

// refreshVeto replaces the ledger's cached veto. On a source error the
// previous decision stays in force.
func (b *TradingBot) refreshVeto(ctx context.Context) {
	if b.veto == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	d, err := b.veto.CheckVeto(ctx)
	if err != nil {
		b.logger.LogWarning("Veto refresh failed", "keeping previous decision: %v", err)
		monitoring.RecordError("veto")
		return
	}

	b.vetoMu.Lock()
	changed := d != b.lastVeto
	b.lastVeto = d
	b.vetoMu.Unlock()

	b.ledger.SetVeto(d.Vetoed, d.Reason)
	if !changed {
		return
	}
	if d.Vetoed {
		b.logger.Warning("Entry veto set: %s", d.Reason)
		b.event("veto", "veto set: %s", d.Reason)
		b.notify(notifications.LevelWarning, fmt.Sprintf("Entry veto active: %s", d.Reason))
	} else {
		b.logger.Info("Entry veto cleared")
		b.event("veto", "veto cleared")
	}
}

// checkCalendar applies the blackout once per trading day
func (b *TradingBot) checkCalendar(ctx context.Context) {
	today := b.now().In(b.location)
	day := today.Format("2006-01-02")

	b.calendarMu.Lock()
	defer b.calendarMu.Unlock()
	if day == b.lastCalendarDay {
		return
	}

	active, label, err := b.calendar.IsBlackout(ctx, today)
	if err != nil {
		// retried next tick; alert once per day
		b.logger.LogWarning("Calendar lookup failed", "%s: %v", day, err)
		if b.calendarAlertDay != day {
			b.calendarAlertDay = day
			b.notify(notifications.LevelWarning, fmt.Sprintf("Calendar lookup failed for %s: %v", day, err))
		}
		return
	}
	b.lastCalendarDay = day

	b.ledger.SetBlackout(active, label)
	if active {
		b.logger.Warning("Blackout for %s (%s): trading suspended", day, label)
		b.event("blackout", "blackout %s (%s)", day, label)
		b.notify(notifications.LevelWarning, fmt.Sprintf("Blackout today (%s): trading suspended", label))
	}
}

// safeRun recovers a panic in a scheduled activation so the schedule keeps running
func (b *TradingBot) safeRun(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic in %s: %v", name, r)
			b.logger.Error("%s\n%s", msg, debug.Stack())
			monitoring.RecordError("panic")
			if b.health != nil {
				b.health.RecordError(msg)
			}
			b.notify(notifications.LevelError, msg)
		}
	}()
	fn()
}
