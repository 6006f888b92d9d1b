package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle   int
	CurrencyStyle int
	PercentStyle  int
	BaseStyle     int
	ProfitStyle   int
	LossStyle     int
}

// WriteSessionXLSX writes the session's trades, summary and events to an
// Excel workbook
func WriteSessionXLSX(session *Session, path string) error {
	// Ensure directory exists before creating file
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const summarySheet = "Summary"
	const eventsSheet = "Events"

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if _, err := fx.NewSheet(eventsSheet); err != nil {
		return fmt.Errorf("failed to create events sheet: %w", err)
	}

	styles, err := createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := writeTradesSheet(fx, tradesSheet, session, styles); err != nil {
		return err
	}
	if err := writeSummarySheet(fx, summarySheet, session, styles); err != nil {
		return err
	}
	if err := writeEventsSheet(fx, eventsSheet, session, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	border := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.ProfitStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt: 7,
		Font:   &excelize.Font{Color: "006100"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return styles, err
	}

	styles.LossStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt: 7,
		Font:   &excelize.Font{Color: "9C0006"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
		Border: border,
	})
	return styles, err
}

func writeHeader(fx *excelize.File, sheet string, headers []string, styles ExcelStyles) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
		fx.SetCellStyle(sheet, cell, cell, styles.HeaderStyle)
	}
}

func writeTradesSheet(fx *excelize.File, sheet string, session *Session, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 10) // Symbol
	fx.SetColWidth(sheet, "B", "C", 20) // Entry/Exit time
	fx.SetColWidth(sheet, "D", "D", 10) // Quantity
	fx.SetColWidth(sheet, "E", "F", 12) // Prices
	fx.SetColWidth(sheet, "G", "G", 12) // Change
	fx.SetColWidth(sheet, "H", "H", 14) // PnL
	fx.SetColWidth(sheet, "I", "I", 10) // Held
	fx.SetColWidth(sheet, "J", "J", 14) // Reason

	writeHeader(fx, sheet, []string{
		"Symbol", "Entry Time", "Exit Time", "Quantity", "Entry Price", "Exit Price",
		"Change %", "PnL", "Held (min)", "Reason",
	}, styles)

	for i, t := range session.Trades() {
		row := i + 2
		values := []interface{}{
			t.Symbol,
			t.EntryTime.Format("2006-01-02 15:04:05"),
			t.ExitTime.Format("2006-01-02 15:04:05"),
			t.Quantity,
			t.EntryPrice,
			t.ExitPrice,
			t.PriceChangePct(),
			t.PnL,
			int(t.ExitTime.Sub(t.EntryTime).Minutes()),
			t.Reason,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			fx.SetCellValue(sheet, cell, v)

			style := styles.BaseStyle
			switch col {
			case 4, 5:
				style = styles.CurrencyStyle
			case 6:
				style = styles.PercentStyle
			case 7:
				style = styles.ProfitStyle
				if t.PnL < 0 {
					style = styles.LossStyle
				}
			}
			fx.SetCellStyle(sheet, cell, cell, style)
		}
	}
	return nil
}

func writeSummarySheet(fx *excelize.File, sheet string, session *Session, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 22)
	fx.SetColWidth(sheet, "B", "B", 18)

	sum := session.Summary()
	writeHeader(fx, sheet, []string{"Metric", "Value"}, styles)

	rows := []struct {
		label string
		value interface{}
		style int
	}{
		{"Session Start", session.Started().Format("2006-01-02 15:04:05"), styles.BaseStyle},
		{"Closed Trades", sum.Trades, styles.BaseStyle},
		{"Winners", sum.Winners, styles.BaseStyle},
		{"Losers", sum.Losers, styles.BaseStyle},
		{"Win Rate", sum.WinRate, styles.PercentStyle},
		{"Gross Profit", sum.GrossProfit, styles.CurrencyStyle},
		{"Gross Loss", -sum.GrossLoss, styles.CurrencyStyle},
		{"Net PnL", sum.NetPnL, styles.CurrencyStyle},
		{"Profit Factor", sum.ProfitFactor, styles.BaseStyle},
		{"Largest Win", sum.LargestWin, styles.CurrencyStyle},
		{"Largest Loss", sum.LargestLoss, styles.CurrencyStyle},
	}
	for i, r := range rows {
		row := i + 2
		labelCell, _ := excelize.CoordinatesToCellName(1, row)
		valueCell, _ := excelize.CoordinatesToCellName(2, row)
		fx.SetCellValue(sheet, labelCell, r.label)
		fx.SetCellStyle(sheet, labelCell, labelCell, styles.BaseStyle)
		fx.SetCellValue(sheet, valueCell, r.value)
		fx.SetCellStyle(sheet, valueCell, valueCell, r.style)
	}
	return nil
}

func writeEventsSheet(fx *excelize.File, sheet string, session *Session, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 20)
	fx.SetColWidth(sheet, "B", "B", 16)
	fx.SetColWidth(sheet, "C", "C", 80)

	writeHeader(fx, sheet, []string{"Time", "Kind", "Message"}, styles)
	for i, e := range session.Events() {
		row := i + 2
		for col, v := range []interface{}{e.Time.Format("2006-01-02 15:04:05"), e.Kind, e.Message} {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			fx.SetCellValue(sheet, cell, v)
			fx.SetCellStyle(sheet, cell, cell, styles.BaseStyle)
		}
	}
	return nil
}
