package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/intraday-risk-bot/internal/risk"
)

// PrintRecommendation renders a sizing decision as a table
func PrintRecommendation(w io.Writer, rec risk.PositionRecommendation) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("POSITION RECOMMENDATION")
	t.SetStyle(table.StyleRounded)

	verdict := "✅ APPROVED"
	if !rec.Approved {
		verdict = "❌ REJECTED"
	}

	t.AppendRows([]table.Row{
		{"📊 Symbol", rec.Symbol},
		{"🧮 Method", rec.Method},
		{"📈 Shares", rec.Shares},
		{"🚧 Max Allowed", rec.MaxAllowedShares},
		{"💰 Position Value", fmt.Sprintf("$%.2f", rec.PositionValue)},
		{"🥧 Position %", fmt.Sprintf("%.2f%%", rec.PositionPct*100)},
		{"🌪️ Volatility Scale", fmt.Sprintf("%.3f", rec.VolatilityScale)},
		{"🔗 Correlation Scale", fmt.Sprintf("%.3f", rec.CorrelationScale)},
		{"🏁 Verdict", verdict},
	})
	if len(rec.Reasoning) > 0 {
		t.AppendSeparator()
		t.AppendRow(table.Row{"📝 Reasoning", strings.Join(rec.Reasoning, "\n")})
	}
	if len(rec.Warnings) > 0 {
		t.AppendRow(table.Row{"⚠️ Warnings", strings.Join(rec.Warnings, "\n")})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 70, Align: text.AlignLeft},
	})
	t.Render()
}

// PrintSessionSummary renders the session's closed trades and totals
func PrintSessionSummary(w io.Writer, session *Session) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("SESSION SUMMARY")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Qty", "Entry", "Exit", "PnL", "Reason"})

	for _, tr := range session.Trades() {
		t.AppendRow(table.Row{
			tr.Symbol,
			tr.Quantity,
			fmt.Sprintf("%.2f", tr.EntryPrice),
			fmt.Sprintf("%.2f", tr.ExitPrice),
			fmt.Sprintf("%+.2f", tr.PnL),
			tr.Reason,
		})
	}

	sum := session.Summary()
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d trades", sum.Trades),
		"",
		"",
		fmt.Sprintf("%.0f%% win", sum.WinRate*100),
		fmt.Sprintf("%+.2f", sum.NetPnL),
		"",
	})
	t.Render()
}
