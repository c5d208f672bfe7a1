package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zikalyze/core/pkg/models"
)

func syntheticCandles(n int, start float64, stepPct float64) []models.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, 0, n)
	price := start
	for i := 0; i < n; i++ {
		next := price * (1 + stepPct/100)
		high := price
		low := next
		if next > price {
			high, low = next, price
		}
		candles = append(candles, models.Candle{
			Symbol:    "BTCUSDT",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      high * 1.001,
			Low:       low * 0.999,
			Close:     next,
			Volume:    100,
		})
		price = next
	}
	return candles
}

func TestVolatility_FlatSeries(t *testing.T) {
	candles := syntheticCandles(30, 100, 0)
	assert.Zero(t, Volatility(candles))
}

func TestVolatility_ShortSeries(t *testing.T) {
	assert.Zero(t, Volatility(syntheticCandles(2, 100, 1)))
	assert.Zero(t, Volatility(nil))
}

func TestVelocity_SteadyClimb(t *testing.T) {
	candles := syntheticCandles(50, 100, 1)
	v := Velocity(candles)
	assert.Greater(t, v, 0.5, "1%%/hour climb should report positive velocity")
}

func TestTrendStrength_Direction(t *testing.T) {
	up := syntheticCandles(40, 100, 1)
	down := syntheticCandles(40, 100, -1)

	assert.Greater(t, TrendStrength(up), 50.0)
	assert.Less(t, TrendStrength(down), -50.0)
	assert.Zero(t, TrendStrength(syntheticCandles(3, 100, 1)))
}

func TestSnapshot_ShortWindowIsNeutral(t *testing.T) {
	stats := Snapshot(syntheticCandles(5, 100, 1), DefaultMinWindow)
	assert.Equal(t, Neutral(), stats)
}

func TestSnapshot_AscendingSeries(t *testing.T) {
	candles := syntheticCandles(50, 100, 1)
	stats := Snapshot(candles, DefaultMinWindow)

	require.NotZero(t, stats.LastClose)
	assert.Greater(t, stats.RSI, 60.0, "steady climb should push RSI up")
	assert.Greater(t, stats.Trend, 0.0)
	assert.Greater(t, stats.EMA, 0.0)
	assert.InDelta(t, 100, stats.AvgVolume, 0.001)
}

func TestSnapshot_Deterministic(t *testing.T) {
	candles := syntheticCandles(60, 250, 0.4)
	a := Snapshot(candles, DefaultMinWindow)
	b := Snapshot(candles, DefaultMinWindow)
	assert.Equal(t, a, b)
}
