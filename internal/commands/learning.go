package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zikalyze/core/internal/cache"
	"github.com/zikalyze/core/internal/learning"
	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/logger"
)

// learningCmd inspects and manages per-symbol learning records.
var learningCmd = &cobra.Command{
	Use:   "learning",
	Short: "Inspect and manage learning records",
}

var learningShowCmd = &cobra.Command{
	Use:   "show <symbol>",
	Short: "Print the learning record and adapted weights for a symbol",
	Args:  cobra.ExactArgs(1),
	RunE:  runLearningShow,
}

var learningWipeCmd = &cobra.Command{
	Use:   "wipe <symbol>",
	Short: "Reset the learning record for a symbol",
	Args:  cobra.ExactArgs(1),
	RunE:  runLearningWipe,
}

func init() {
	rootCmd.AddCommand(learningCmd)
	learningCmd.AddCommand(learningShowCmd)
	learningCmd.AddCommand(learningWipeCmd)
}

// learningTracker connects to Redis and builds a tracker over the
// shared learning store. The caller must invoke the returned cleanup.
func learningTracker() (*learning.Tracker, func(), error) {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Logging.Level = "warn"

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	redisCache, err := cache.NewRedisClient(&cfg.Redis, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := learning.NewRedisStore(redisCache.Client(), log)
	tracker := learning.NewTracker(store, &cfg.Learning, log)
	return tracker, func() { redisCache.Close() }, nil
}

func runLearningShow(cmd *cobra.Command, args []string) error {
	tracker, cleanup, err := learningTracker()
	if err != nil {
		return err
	}
	defer cleanup()

	symbol := strings.ToUpper(args[0])
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	record, err := tracker.Store().Get(ctx, symbol)
	if err != nil {
		return fmt.Errorf("failed to load learning record: %w", err)
	}
	weights, err := tracker.Weights(ctx, symbol)
	if err != nil {
		return fmt.Errorf("failed to compute weights: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"record":  record,
		"weights": weights,
	})
}

func runLearningWipe(cmd *cobra.Command, args []string) error {
	tracker, cleanup, err := learningTracker()
	if err != nil {
		return err
	}
	defer cleanup()

	symbol := strings.ToUpper(args[0])
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := tracker.Store().Wipe(ctx, symbol); err != nil {
		return fmt.Errorf("failed to wipe learning record: %w", err)
	}

	fmt.Printf("Learning record for %s wiped\n", symbol)
	return nil
}
