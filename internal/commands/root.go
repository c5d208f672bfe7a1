package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "zikalyze",
	Short: "Multi-signal crypto market analysis engine",
	Long: `Zikalyze analyzes crypto markets across three independent domains and
aggregates them into a single weighted consensus:

• Technical: indicators (RSI, EMA, ATR, trend) and candlestick patterns
• Institutional: volume behavior and on-chain style flow metrics
• Macro: calendar-driven market context

The engine learns per symbol: user feedback adapts the domain weights
and a bounded confidence adjustment over time.`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
