package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/intraday-risk-bot/internal/config"
	"github.com/ducminhle1904/intraday-risk-bot/internal/risk"
	"github.com/ducminhle1904/intraday-risk-bot/pkg/reporting"
)

var (
	sizeConfigPath string
	sizeSymbol     string
	sizePrice      float64
	sizeEquity     float64
	sizeATR        float64
	sizeMethod     string
	sizeRiskPct    float64
	sizeWinRate    float64
	sizeAvgWin     float64
	sizeAvgLoss    float64
	sizeTrades     int
	sizeSector     string
)

// sizeCmd prints a single position recommendation without touching a venue
var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Compute a position size recommendation",
	Long: `Run the position risk coordinator once and print the recommendation with
every limit and scaling factor that shaped it.

Example usage:
  risk-bot size --symbol AAPL --price 190 --equity 100000 --atr 3.2
  risk-bot size --symbol NVDA --price 120 --equity 50000 --method kelly \
      --win-rate 0.55 --avg-win 300 --avg-loss 200 --trades 40`,
	RunE: runSize,
}

func runSize(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if sizeConfigPath != "" {
		loaded, err := config.Load(sizeConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	req, err := sizingRequestFromFlags(cfg)
	if err != nil {
		return err
	}

	coordinator := risk.NewPositionRiskCoordinator(cfg.RiskConfig(), nil)
	rec, err := coordinator.CalculatePosition(req)
	if err != nil {
		return fmt.Errorf("sizing failed: %w", err)
	}
	reporting.PrintRecommendation(os.Stdout, rec)
	return nil
}

func sizingRequestFromFlags(cfg *config.BotConfig) (risk.SizingRequest, error) {
	method, err := risk.ParseSizingMethod(sizeMethod)
	if err != nil {
		return risk.SizingRequest{}, err
	}

	symbol := strings.ToUpper(strings.TrimSpace(sizeSymbol))
	sector := sizeSector
	if sector == "" {
		sector = cfg.Sector(symbol)
	}
	riskPct := sizeRiskPct
	if riskPct == 0 {
		riskPct = cfg.Risk.RiskPerTradePct
	}

	return risk.SizingRequest{
		Symbol: symbol,
		Price:  sizePrice,
		Equity: sizeEquity,
		Stats: risk.TradeStats{
			WinRate: sizeWinRate,
			AvgWin:  sizeAvgWin,
			AvgLoss: sizeAvgLoss,
			Trades:  sizeTrades,
		},
		ATR:             sizeATR,
		RiskPerTradePct: riskPct,
		Sector:          sector,
		Method:          method,
	}, nil
}
