package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zikalyze/core/pkg/models"
)

type stubProvider struct {
	name    string
	candles []models.Candle
	err     error
	calls   int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) FetchCandles(_ context.Context, _, _ string, _ int) ([]models.Candle, error) {
	s.calls++
	return s.candles, s.err
}

func nCandles(n int) []models.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Symbol:    "BTCUSDT",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 10,
		}
	}
	return out
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestChain_FirstUsableWins(t *testing.T) {
	first := &stubProvider{name: "binance", candles: nCandles(10)}
	second := &stubProvider{name: "coingecko", candles: nCandles(10)}
	chain := NewChain(quietLogger(), first, second)

	candles, source, err := chain.Fetch(context.Background(), "BTCUSDT", "1h", 10)
	require.NoError(t, err)
	assert.Equal(t, "binance", source)
	assert.Len(t, candles, 10)
	assert.Zero(t, second.calls, "fallback must not be called")
}

func TestChain_FallsThroughOnErrorAndShortData(t *testing.T) {
	failing := &stubProvider{name: "binance", err: errors.New("503")}
	short := &stubProvider{name: "thin", candles: nCandles(MinUsable - 1)}
	working := &stubProvider{name: "coingecko", candles: nCandles(20)}
	chain := NewChain(quietLogger(), failing, short, working)

	candles, source, err := chain.Fetch(context.Background(), "BTCUSDT", "1h", 20)
	require.NoError(t, err)
	assert.Equal(t, "coingecko", source)
	assert.Len(t, candles, 20)
}

func TestChain_AllFailReturnsErrNoData(t *testing.T) {
	chain := NewChain(quietLogger(),
		&stubProvider{name: "binance", err: errors.New("down")},
		&stubProvider{name: "coingecko", err: errors.New("rate limited")},
	)

	_, _, err := chain.Fetch(context.Background(), "BTCUSDT", "1h", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestChain_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := NewChain(quietLogger(), &stubProvider{name: "binance", candles: nCandles(10)})
	_, _, err := chain.Fetch(ctx, "BTCUSDT", "1h", 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLiveAggregator_BuildsPartialCandle(t *testing.T) {
	agg := NewLiveAggregator(quietLogger())
	now := time.Now().Truncate(time.Hour).Add(time.Minute)

	prices := []float64{100, 104, 98, 101}
	for i, p := range prices {
		agg.Apply(&models.PriceSample{
			Symbol: "BTCUSDT", Price: p, Volume: 1,
			Timestamp: now.Add(time.Duration(i) * time.Second),
		})
	}

	candle, ok := agg.Partial("BTCUSDT", "1h")
	require.True(t, ok)
	assert.Equal(t, 100.0, candle.Open)
	assert.Equal(t, 104.0, candle.High)
	assert.Equal(t, 98.0, candle.Low)
	assert.Equal(t, 101.0, candle.Close)
	assert.Equal(t, 4.0, candle.Volume)

	_, ok = agg.Partial("ETHUSDT", "1h")
	assert.False(t, ok, "untracked symbol has no partial")
}

func TestLiveAggregator_NewBucketResets(t *testing.T) {
	agg := NewLiveAggregator(quietLogger())
	bucket := time.Now().Truncate(time.Minute)

	agg.Apply(&models.PriceSample{Symbol: "BTCUSDT", Price: 100, Timestamp: bucket.Add(-time.Minute)})
	agg.Apply(&models.PriceSample{Symbol: "BTCUSDT", Price: 200, Timestamp: bucket.Add(time.Second)})

	candle, ok := agg.Partial("BTCUSDT", "1m")
	require.True(t, ok)
	assert.Equal(t, 200.0, candle.Open, "previous bucket must not leak in")
}

func TestLiveAggregator_Latest(t *testing.T) {
	agg := NewLiveAggregator(quietLogger())
	assert.Nil(t, agg.Latest("BTCUSDT"))

	agg.Apply(&models.PriceSample{Symbol: "BTCUSDT", Price: 123, Timestamp: time.Now()})
	sample := agg.Latest("BTCUSDT")
	require.NotNil(t, sample)
	assert.Equal(t, 123.0, sample.Price)

	assert.Len(t, agg.Snapshot(), 1)
}

func TestDaysFor(t *testing.T) {
	assert.Equal(t, 7, daysFor("1h", 100))
	assert.Equal(t, 1, daysFor("1m", 100))
	assert.Equal(t, 365, daysFor("1d", 400))
}
