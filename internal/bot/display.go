package bot

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// printStartupInfo prints venue and watchlist information
func (b *TradingBot) printStartupInfo() {
	t := table.NewWriter()
	t.SetOutputMirror(b.out)
	t.SetTitle("BOT INITIALIZATION")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"📊 Symbols", strings.Join(b.config.SymbolNames(), ", ")},
		{"🏪 Venue", b.venue.Name()},
		{"🔧 Environment", b.venue.Environment()},
		{"🕰️ Timezone", b.location.String()},
		{"⏰ Tick", b.config.TickInterval()},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 60, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(b.out)
}

// printRiskConfiguration prints the limits and the current ledger state
func (b *TradingBot) printRiskConfiguration() {
	r := b.config.Risk
	status := b.ledger.Status()

	flags := make([]string, len(status.Flags))
	for i, f := range status.Flags {
		flags[i] = string(f)
	}

	t := table.NewWriter()
	t.SetOutputMirror(b.out)
	t.SetTitle("RISK CONFIGURATION")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"🛑 Daily Loss Limit", fmt.Sprintf("$%.2f", r.DailyLossLimit)},
		{"🛑 Weekly Loss Limit", fmt.Sprintf("$%.2f (week pnl $%.2f)", r.WeeklyLossLimit, status.WeeklyPnL)},
		{"⏱️ Hold Window", fmt.Sprintf("%d - %d min", r.MinHoldMinutes, r.MaxHoldMinutes)},
		{"🎯 Stop / Target", fmt.Sprintf("-%.2f%% / +%.2f%%", r.StopLossPct, r.TakeProfitPct)},
		{"🥧 Max Position", fmt.Sprintf("%.0f%% of equity", r.MaxSinglePositionPct*100)},
		{"🧮 Sizing", b.config.SizingMethod()},
		{"📶 Min Confidence", fmt.Sprintf("%.2f", b.config.Trading.SignalConfidenceThreshold)},
		{"🌙 Auto-Flatten", fmt.Sprintf("%02d:%02d weekdays", b.flattenHour, b.flattenMinute)},
	})
	t.AppendSeparator()
	t.AppendRow(table.Row{"🚦 Flags", strings.Join(flags, ", ")})
	if n := status.OpenPositions; n > 0 {
		t.AppendRow(table.Row{"📦 Open Positions", n})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 60, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(b.out)
}
