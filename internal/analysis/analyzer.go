package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zikalyze/core/internal/indicators"
	"github.com/zikalyze/core/pkg/models"
)

// ErrInvalidSymbol is returned for symbols that fail validation before
// any analysis work starts.
var ErrInvalidSymbol = errors.New("invalid symbol")

const insufficientDataRationale = "insufficient data for a reliable read"

// Aux carries the per-analysis inputs the engine computes once and
// shares across all analyzers: the indicator snapshot, clustered
// support/resistance levels, pattern findings, and the freshest live
// sample when one is available.
type Aux struct {
	Stats     indicators.Stats
	Levels    indicators.Levels
	Findings  []models.Finding
	Live      *models.PriceSample
	MinWindow int
}

// Analyzer is the contract every analysis domain implements. Analyze
// never panics and never returns an error: degraded inputs produce a
// degraded verdict instead.
type Analyzer interface {
	Domain() models.Domain
	Analyze(ctx context.Context, candles []models.Candle, aux Aux) models.DomainVerdict
}

// neutralVerdict is the shared degraded result for windows below the
// minimum size.
func neutralVerdict(domain models.Domain) models.DomainVerdict {
	return models.DomainVerdict{
		Domain:     domain,
		Bias:       models.Neutral,
		Confidence: 0,
		Rationale:  insufficientDataRationale,
		IsLive:     true,
	}
}

// biasFromScore converts a -100..+100 score into a direction with a
// small dead band around zero.
func biasFromScore(score, deadband float64) models.Direction {
	switch {
	case score > deadband:
		return models.Bullish
	case score < -deadband:
		return models.Bearish
	default:
		return models.Neutral
	}
}

// dataAge reports how stale the newest candle is.
func dataAge(candles []models.Candle) time.Duration {
	if len(candles) == 0 {
		return 0
	}
	return time.Since(candles[len(candles)-1].Timestamp)
}

func describeScore(score float64) string {
	switch {
	case score > 50:
		return "strong bullish pressure"
	case score > 0:
		return "mild bullish lean"
	case score < -50:
		return "strong bearish pressure"
	case score < 0:
		return "mild bearish lean"
	default:
		return "balanced conditions"
	}
}

func rationale(parts ...string) string {
	out := ""
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i > 0 && out != "" {
			out += "; "
		}
		out += p
	}
	if out == "" {
		return "no notable signals"
	}
	return out
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
