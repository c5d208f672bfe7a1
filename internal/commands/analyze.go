package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zikalyze/core/internal/analysis"
	"github.com/zikalyze/core/internal/learning"
	"github.com/zikalyze/core/internal/marketdata"
	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/logger"
)

var (
	analyzeInterval string
	analyzeLimit    int
	analyzeTimeout  time.Duration
)

// analyzeCmd runs a single analysis and prints the rendered report.
// It builds a standalone pipeline against the public REST providers,
// so no databases or brokers are needed.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <symbol>",
	Short: "Run a one-shot analysis for a symbol",
	Long: `Analyze a symbol once and print the markdown report.

Examples:
  zikalyze analyze BTCUSDT
  zikalyze analyze ETHUSDT --interval 4h --limit 200`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeInterval, "interval", "i", "1h", "Candle interval")
	analyzeCmd.Flags().IntVarP(&analyzeLimit, "limit", "n", 100, "Number of candles to fetch")
	analyzeCmd.Flags().DurationVarP(&analyzeTimeout, "timeout", "t", 30*time.Second, "Analysis deadline")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	} else {
		// One-shot output is the report itself, keep the log quiet.
		cfg.Logging.Level = "warn"
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	chain := marketdata.NewChain(log,
		marketdata.NewBinanceProvider(cfg.Exchange.APIURL, cfg.Exchange.FetchTimeout, log),
		marketdata.NewCoinGeckoProvider(cfg.Exchange.CoinGeckoAPIKey, cfg.Exchange.FetchTimeout, log),
	)

	tracker := learning.NewTracker(learning.NewMemoryStore(), &cfg.Learning, log)

	var flow analysis.FlowSource
	if client := marketdata.NewFlowClient(cfg.Exchange.FlowAPIURL, cfg.Exchange.FlowAPIKey,
		cfg.Analysis.FlowTimeout, log); client != nil {
		flow = client
	}

	analyzers := []analysis.Analyzer{
		analysis.NewTechnicalAnalyzer(),
		analysis.NewInstitutionalAnalyzer(flow, cfg.Analysis.FlowTimeout, log),
		analysis.NewMacroAnalyzer(analysis.DefaultCalendar()),
	}

	engine := analysis.NewEngine(chain, nil, nil, nil, tracker, analyzers, &cfg.Analysis, log)

	result, err := engine.Analyze(context.Background(), args[0], analysis.Options{
		Interval: analyzeInterval,
		Limit:    analyzeLimit,
		Timeout:  analyzeTimeout,
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	fmt.Println(result.Report)
	return nil
}
