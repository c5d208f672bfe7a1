package marketdata

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/pkg/models"
)

var liveResolutions = []string{"1m", "5m", "15m", "1h"}

// LiveAggregator folds live price samples into in-progress candles so
// an analysis can include the freshest partial bar. One builder per
// symbol and resolution; completed buckets are simply replaced, the
// historical providers remain the source of closed candles.
type LiveAggregator struct {
	mu     sync.RWMutex
	bars   map[string]*barBuilder
	latest map[string]*models.PriceSample
	logger *logrus.Entry
}

type barBuilder struct {
	start  time.Time
	open   float64
	high   float64
	low    float64
	close  float64
	volume float64
}

// NewLiveAggregator creates an empty aggregator.
func NewLiveAggregator(log *logrus.Logger) *LiveAggregator {
	return &LiveAggregator{
		bars:   make(map[string]*barBuilder),
		latest: make(map[string]*models.PriceSample),
		logger: log.WithField("component", "live-aggregator"),
	}
}

// Apply folds one sample into every tracked resolution. Safe for
// concurrent use; feed handlers call it on every tick.
func (a *LiveAggregator) Apply(sample *models.PriceSample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cp := *sample
	a.latest[sample.Symbol] = &cp

	for _, res := range liveResolutions {
		key := barKey(sample.Symbol, res)
		bucket := sample.Timestamp.Truncate(models.IntervalDuration(res))

		bar := a.bars[key]
		if bar == nil || !bar.start.Equal(bucket) {
			a.bars[key] = &barBuilder{
				start: bucket,
				open:  sample.Price, high: sample.Price,
				low: sample.Price, close: sample.Price,
				volume: sample.Volume,
			}
			continue
		}

		if sample.Price > bar.high {
			bar.high = sample.Price
		}
		if sample.Price < bar.low {
			bar.low = sample.Price
		}
		bar.close = sample.Price
		bar.volume += sample.Volume
	}
}

// Partial returns the in-progress candle for a symbol/resolution, or
// false when no sample has arrived in the current bucket.
func (a *LiveAggregator) Partial(symbol, interval string) (*models.Candle, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	bar := a.bars[barKey(symbol, interval)]
	if bar == nil {
		return nil, false
	}
	if time.Since(bar.start) > models.IntervalDuration(interval) {
		return nil, false // stale bucket, feed has gone quiet
	}

	return &models.Candle{
		Symbol:    symbol,
		Timestamp: bar.start,
		Open:      bar.open,
		High:      bar.high,
		Low:       bar.low,
		Close:     bar.close,
		Volume:    bar.volume,
	}, true
}

// Latest returns the most recent sample seen for a symbol, nil when
// the feed has produced none.
func (a *LiveAggregator) Latest(symbol string) *models.PriceSample {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if s, ok := a.latest[symbol]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// Snapshot lists the latest sample per symbol, for the refresher.
func (a *LiveAggregator) Snapshot() []*models.PriceSample {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*models.PriceSample, 0, len(a.latest))
	for _, s := range a.latest {
		cp := *s
		out = append(out, &cp)
	}
	return out
}

func barKey(symbol, resolution string) string {
	return fmt.Sprintf("%s:%s", symbol, resolution)
}
