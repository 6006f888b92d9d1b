package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "time/tzdata"
)

// rootCmd is the base command for the risk bot CLI
var rootCmd = &cobra.Command{
	Use:   "risk-bot",
	Short: "Intraday equity trading bot with layered risk controls",
	Long: `risk-bot trades a watchlist of equities on external directional signals.
Every entry passes the daily and weekly loss breakers, the earnings blackout
calendar and the macro veto, and is sized by the position risk coordinator.
Open positions are closed by the exit policy and flattened before the close.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sizeCmd)

	runCmd.Flags().StringVar(&runConfigPath, "config", "risk-bot.yaml", "Configuration file (looked up in configs/ when no directory is given)")
	runCmd.Flags().StringVar(&runEnvFile, "env", ".env", "Environment file with API credentials")

	sizeCmd.Flags().StringVar(&sizeConfigPath, "config", "", "Optional configuration file providing the risk limits")
	sizeCmd.Flags().StringVar(&sizeSymbol, "symbol", "", "Symbol to size")
	sizeCmd.Flags().Float64Var(&sizePrice, "price", 0, "Entry price")
	sizeCmd.Flags().Float64Var(&sizeEquity, "equity", 0, "Account equity")
	sizeCmd.Flags().Float64Var(&sizeATR, "atr", 0, "Average true range (enables the ATR stop)")
	sizeCmd.Flags().StringVar(&sizeMethod, "method", "auto", "Sizing method: auto, kelly, half_kelly, atr, fixed_risk, volatility_target")
	sizeCmd.Flags().Float64Var(&sizeRiskPct, "risk-pct", 0, "Risk per trade in percent of equity (defaults to the configured value)")
	sizeCmd.Flags().Float64Var(&sizeWinRate, "win-rate", 0, "Historical win rate in [0,1]")
	sizeCmd.Flags().Float64Var(&sizeAvgWin, "avg-win", 0, "Average winning trade")
	sizeCmd.Flags().Float64Var(&sizeAvgLoss, "avg-loss", 0, "Average losing trade as a positive amount")
	sizeCmd.Flags().IntVar(&sizeTrades, "trades", 0, "Number of closed trades behind the statistics")
	sizeCmd.Flags().StringVar(&sizeSector, "sector", "", "Sector of the symbol")
	_ = sizeCmd.MarkFlagRequired("symbol")
	_ = sizeCmd.MarkFlagRequired("price")
	_ = sizeCmd.MarkFlagRequired("equity")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEnvFile loads environment variables from a file
func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); err == nil {
		return godotenv.Load(envFile)
	}
	return fmt.Errorf("env file %s not found", envFile)
}
