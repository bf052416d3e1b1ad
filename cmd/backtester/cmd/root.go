package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "A deterministic backtest engine for bar-driven trading strategies",
	Long: `Backtester replays historical market bars through a simulated
order-matching and portfolio-accounting loop to evaluate trading strategies
without look-ahead bias.

It provides tools for:
  - Running backtests from a YAML/JSON config and CSV bar data
  - Journaling equity curves and trade records to SQLite or CSV
  - Rendering run reports from the journal
  - Validating run configurations before execution`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
