package indicators

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zikalyze/core/pkg/models"
)

// zigzag builds a series oscillating between two price bands so that
// clear support and resistance extrema exist.
func zigzag(n int, low, high float64) []models.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		price := low
		if (i/4)%2 == 1 {
			price = high
		}
		candles = append(candles, models.Candle{
			Symbol:    "ETHUSDT",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price * 1.002,
			Low:       price * 0.998,
			Close:     price,
			Volume:    50,
		})
	}
	return candles
}

func TestClusterLevels_FindsBands(t *testing.T) {
	candles := zigzag(48, 100, 120)
	levels := ClusterLevels(candles, 0.02, 8)

	require.NotEmpty(t, levels.Support)
	require.NotEmpty(t, levels.Resistance)

	assert.InDelta(t, 100, levels.Support[0], 1.0)
	assert.InDelta(t, 120, levels.Resistance[len(levels.Resistance)-1], 1.5)
}

func TestClusterLevels_MergesWithinThreshold(t *testing.T) {
	// Bands at 100 and 101 sit within a 2% threshold and must merge.
	a := zigzag(24, 100, 130)
	b := zigzag(24, 101, 130)
	for i := range b {
		b[i].Timestamp = b[i].Timestamp.Add(24 * time.Hour)
	}
	candles := append(a, b...)

	levels := ClusterLevels(candles, 0.02, 8)
	require.NotEmpty(t, levels.Support)
	assert.Len(t, levels.Support, 1, "close bands should merge into one cluster")
	assert.InDelta(t, 100.5, levels.Support[0], 1.0)
}

func TestClusterLevels_CapsClusterCount(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var candles []models.Candle
	// Many well-separated dips, each its own cluster.
	for band := 0; band < 12; band++ {
		low := 100 * (1 + 0.10*float64(band))
		for i := 0; i < 8; i++ {
			price := low * 1.05
			if i == 4 {
				price = low
			}
			candles = append(candles, models.Candle{
				Timestamp: base.Add(time.Duration(band*8+i) * time.Hour),
				Open:      price, High: price * 1.001, Low: price * 0.999,
				Close: price, Volume: 10,
			})
		}
	}

	levels := ClusterLevels(candles, 0.005, 5)
	assert.LessOrEqual(t, len(levels.Support), 5)
}

func TestClusterLevels_OrderIndependentForTimestampTies(t *testing.T) {
	candles := zigzag(40, 200, 240)
	// Introduce duplicate timestamps, then shuffle.
	candles[10].Timestamp = candles[9].Timestamp
	candles[25].Timestamp = candles[24].Timestamp

	ref := ClusterLevels(candles, 0.02, 8)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		shuffled := make([]models.Candle, len(candles))
		copy(shuffled, candles)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := ClusterLevels(shuffled, 0.02, 8)
		assert.Len(t, got.Support, len(ref.Support))
		assert.Len(t, got.Resistance, len(ref.Resistance))
	}
}

func TestClusterLevels_ShortInput(t *testing.T) {
	levels := ClusterLevels(zigzag(3, 100, 110), 0.02, 8)
	assert.Empty(t, levels.Support)
	assert.Empty(t, levels.Resistance)
}

func TestNearestLevels(t *testing.T) {
	levels := []float64{90, 100, 110}
	assert.Equal(t, 100.0, NearestBelow(levels, 105))
	assert.Equal(t, 110.0, NearestAbove(levels, 105))
	assert.Zero(t, NearestBelow(levels, 80))
	assert.Zero(t, NearestAbove(levels, 120))
}
