package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/internal/indicators"
	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

// Tracker maintains per-symbol adaptive state on top of a Store. Every
// update is a self-contained read-modify-write keyed by symbol; the EMA
// formulas tolerate out-of-order application (order independence is a
// known limitation, not a guarantee).
type Tracker struct {
	store  Store
	cfg    *config.LearningConfig
	logger *logrus.Entry
}

// NewTracker creates a tracker over the given store.
func NewTracker(store Store, cfg *config.LearningConfig, log *logrus.Logger) *Tracker {
	return &Tracker{
		store:  store,
		cfg:    cfg,
		logger: log.WithField("component", "learning"),
	}
}

// Store exposes the underlying store for wiring and data-wipe calls.
func (t *Tracker) Store() Store {
	return t.store
}

// ObserveSample folds one live price sample into the symbol's record.
// Called by the background refresher on every tick cycle.
func (t *Tracker) ObserveSample(ctx context.Context, sample *models.PriceSample) error {
	rec, err := t.store.Get(ctx, sample.Symbol)
	if err != nil {
		return fmt.Errorf("failed to load record for %s: %w", sample.Symbol, err)
	}

	// 24h change spread over 24 hours approximates velocity in %/h.
	velocity := sample.Change24h / 24
	rec.VelocityEMA = t.ema(rec.VelocityEMA, velocity, rec.SamplesCollected)
	rec.SamplesCollected++
	rec.LastUpdated = sample.Timestamp

	return t.store.Put(ctx, rec)
}

// ObserveAnalysis folds the statistics of a completed analysis into the
// symbol's record: volatility/velocity EMA, support and resistance
// carry-over, and bias-change counting.
func (t *Tracker) ObserveAnalysis(ctx context.Context, symbol string, stats indicators.Stats, levels indicators.Levels, bias models.Direction) error {
	rec, err := t.store.Get(ctx, symbol)
	if err != nil {
		return fmt.Errorf("failed to load record for %s: %w", symbol, err)
	}

	rec.VolatilityEMA = t.ema(rec.VolatilityEMA, stats.Volatility, rec.SamplesCollected)
	rec.VelocityEMA = t.ema(rec.VelocityEMA, stats.Velocity, rec.SamplesCollected)
	for _, l := range levels.Support {
		rec.SupportLevels = models.PushLevel(rec.SupportLevels, l)
	}
	for _, l := range levels.Resistance {
		rec.ResistanceLevels = models.PushLevel(rec.ResistanceLevels, l)
	}
	if bias != rec.LastBias && rec.LastBias != "" {
		rec.BiasChangeCount++
	}
	rec.LastBias = bias
	rec.SamplesCollected++
	rec.LastUpdated = time.Now()

	return t.store.Put(ctx, rec)
}

// RecordOutcome applies a user-provided correctness signal for a past
// prediction. The confidence adjustment follows a bounded exponential
// update clamped to ±MaxConfidenceAdjust percentage points so feedback
// can never run away.
func (t *Tracker) RecordOutcome(ctx context.Context, symbol string, predicted, actual models.Direction) error {
	rec, err := t.store.Get(ctx, symbol)
	if err != nil {
		return fmt.Errorf("failed to load record for %s: %w", symbol, err)
	}

	rec.TotalPredictions++
	sign := -1.0
	if predicted == actual {
		rec.CorrectPredictions++
		sign = 1.0
	}

	maxAdj := t.cfg.MaxConfidenceAdjust
	rec.ConfidenceAdjust = clampF(
		rec.ConfidenceAdjust*(1-t.cfg.EMAAlpha)+sign*t.cfg.AdjustStep,
		-maxAdj, maxAdj,
	)
	rec.LastUpdated = time.Now()

	t.logger.WithFields(logrus.Fields{
		"symbol":  symbol,
		"correct": rec.CorrectPredictions,
		"total":   rec.TotalPredictions,
		"adjust":  rec.ConfidenceAdjust,
	}).Debug("Recorded outcome")

	return t.store.Put(ctx, rec)
}

// Weights returns the adapted per-domain weights for a symbol once the
// minimum feedback sample count is reached, otherwise the defaults.
// The result is always element-wise within [0,1] and sums to 1.
func (t *Tracker) Weights(ctx context.Context, symbol string) (models.Weights, error) {
	rec, err := t.store.Get(ctx, symbol)
	if err != nil {
		return models.DefaultWeights(), fmt.Errorf("failed to load record for %s: %w", symbol, err)
	}
	return t.adapt(rec), nil
}

// ConfidenceAdjust returns the bounded confidence nudge for a symbol.
func (t *Tracker) ConfidenceAdjust(ctx context.Context, symbol string) float64 {
	rec, err := t.store.Get(ctx, symbol)
	if err != nil {
		return 0
	}
	return rec.ConfidenceAdjust
}

// adapt shifts weight between the technical and institutional domains
// according to recorded accuracy. An accuracy of 0.5 reproduces the
// defaults; the macro weight only shrinks, never grows.
func (t *Tracker) adapt(rec *models.LearningRecord) models.Weights {
	w := models.DefaultWeights()
	if rec.TotalPredictions < int64(t.cfg.MinSamples) {
		return w
	}

	shift := (rec.Accuracy() - 0.5) * 0.3
	w.Technical = clampF(w.Technical+shift, 0.05, 0.9)
	w.Institutional = clampF(w.Institutional-shift/2, 0.05, 0.9)
	w.Macro = clampF(w.Macro-shift/2, 0.05, 0.9)

	// Renormalize to sum exactly 1.
	sum := w.Sum()
	w.Technical /= sum
	w.Institutional /= sum
	w.Macro /= sum
	return w
}

// ema blends a new value into the running average; the first sample
// seeds the average directly.
func (t *Tracker) ema(current, value float64, samples int64) float64 {
	if samples == 0 {
		return value
	}
	alpha := t.cfg.EMAAlpha
	return alpha*value + (1-alpha)*current
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
