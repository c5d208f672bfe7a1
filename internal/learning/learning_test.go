package learning

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zikalyze/core/internal/indicators"
	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

func testTracker() *Tracker {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	cfg := &config.LearningConfig{
		MinSamples:          10,
		EMAAlpha:            0.2,
		MaxConfidenceAdjust: 20,
		AdjustStep:          2,
	}
	return NewTracker(NewMemoryStore(), cfg, log)
}

func TestMemoryStore_MissingSymbolGetsDefaults(t *testing.T) {
	s := NewMemoryStore()
	rec, err := s.Get(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", rec.Symbol)
	assert.Zero(t, rec.SamplesCollected)
	assert.Empty(t, rec.LastBias, "no analysis observed yet")
	assert.Equal(t, 0.5, rec.Accuracy(), "no feedback means coin-flip accuracy")
}

func TestMemoryStore_GetCopiesLevels(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := models.NewLearningRecord("ETHUSDT")
	rec.SupportLevels = []float64{100, 110}
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "ETHUSDT")
	require.NoError(t, err)
	got.SupportLevels[0] = -1

	again, err := s.Get(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 100.0, again.SupportLevels[0], "callers must not alias stored slices")
}

func TestMemoryStore_Wipe(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := models.NewLearningRecord("BTCUSDT")
	rec.SamplesCollected = 42
	require.NoError(t, s.Put(ctx, rec))
	require.NoError(t, s.Wipe(ctx, "BTCUSDT"))

	got, err := s.Get(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Zero(t, got.SamplesCollected)
}

func TestTracker_WeightsDefaultBelowMinSamples(t *testing.T) {
	tr := testTracker()
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		require.NoError(t, tr.RecordOutcome(ctx, "BTCUSDT", models.Bullish, models.Bullish))
	}

	w, err := tr.Weights(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultWeights(), w)
}

func TestTracker_WeightsShiftWithAccuracy(t *testing.T) {
	tr := testTracker()
	ctx := context.Background()

	// A perfectly accurate history rewards the technical domain.
	for i := 0; i < 20; i++ {
		require.NoError(t, tr.RecordOutcome(ctx, "BTCUSDT", models.Bullish, models.Bullish))
	}
	w, err := tr.Weights(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Greater(t, w.Technical, models.DefaultWeights().Technical)

	// A consistently wrong history does the opposite.
	for i := 0; i < 20; i++ {
		require.NoError(t, tr.RecordOutcome(ctx, "ETHUSDT", models.Bullish, models.Bearish))
	}
	w, err = tr.Weights(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Less(t, w.Technical, models.DefaultWeights().Technical)
}

// Any interleaving of outcomes must leave the weights valid: each in
// [0,1] and summing to 1.
func TestTracker_WeightsAlwaysValid(t *testing.T) {
	tr := testTracker()
	ctx := context.Background()

	outcomes := []struct{ predicted, actual models.Direction }{
		{models.Bullish, models.Bullish},
		{models.Bullish, models.Bearish},
		{models.Bearish, models.Bearish},
		{models.Neutral, models.Bullish},
		{models.Bearish, models.Bullish},
	}

	for i := 0; i < 200; i++ {
		o := outcomes[i%len(outcomes)]
		require.NoError(t, tr.RecordOutcome(ctx, "SOLUSDT", o.predicted, o.actual))

		w, err := tr.Weights(ctx, "SOLUSDT")
		require.NoError(t, err)
		for _, v := range []float64{w.Technical, w.Institutional, w.Macro} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
		assert.InDelta(t, 1.0, w.Sum(), 1e-9)
	}
}

func TestTracker_ConfidenceAdjustStaysBounded(t *testing.T) {
	tr := testTracker()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, tr.RecordOutcome(ctx, "BTCUSDT", models.Bullish, models.Bullish))
	}
	assert.LessOrEqual(t, tr.ConfidenceAdjust(ctx, "BTCUSDT"), 20.0)
	assert.Greater(t, tr.ConfidenceAdjust(ctx, "BTCUSDT"), 0.0)

	for i := 0; i < 100; i++ {
		require.NoError(t, tr.RecordOutcome(ctx, "ETHUSDT", models.Bullish, models.Bearish))
	}
	assert.GreaterOrEqual(t, tr.ConfidenceAdjust(ctx, "ETHUSDT"), -20.0)
	assert.Less(t, tr.ConfidenceAdjust(ctx, "ETHUSDT"), 0.0)
}

func TestTracker_ObserveAnalysis(t *testing.T) {
	tr := testTracker()
	ctx := context.Background()

	stats := indicators.Stats{Volatility: 2.0, Velocity: 0.5}
	levels := indicators.Levels{Support: []float64{100}, Resistance: []float64{120}}

	require.NoError(t, tr.ObserveAnalysis(ctx, "BTCUSDT", stats, levels, models.Bullish))

	rec, err := tr.Store().Get(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2.0, rec.VolatilityEMA, "first sample seeds the EMA")
	assert.Equal(t, models.Bullish, rec.LastBias)
	assert.Zero(t, rec.BiasChangeCount, "first bias is not a change")
	assert.Equal(t, []float64{100}, rec.SupportLevels)

	// A second observation blends and counts the bias flip.
	stats.Volatility = 4.0
	require.NoError(t, tr.ObserveAnalysis(ctx, "BTCUSDT", stats, levels, models.Bearish))

	rec, err = tr.Store().Get(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 0.2*4.0+0.8*2.0, rec.VolatilityEMA, 1e-9)
	assert.Equal(t, int64(1), rec.BiasChangeCount)
}

func TestTracker_ObserveSample(t *testing.T) {
	tr := testTracker()
	ctx := context.Background()

	sample := &models.PriceSample{
		Symbol:    "BTCUSDT",
		Price:     50000,
		Change24h: 4.8,
		Timestamp: time.Now(),
	}
	require.NoError(t, tr.ObserveSample(ctx, sample))

	rec, err := tr.Store().Get(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, rec.VelocityEMA, 1e-9)
	assert.Equal(t, int64(1), rec.SamplesCollected)
}
