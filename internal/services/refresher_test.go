package services

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zikalyze/core/internal/learning"
	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

type staticSource struct {
	samples []*models.PriceSample
}

func (s *staticSource) Snapshot() []*models.PriceSample { return s.samples }

func TestRefresher_FeedsTracker(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	tracker := learning.NewTracker(learning.NewMemoryStore(), &config.LearningConfig{
		MinSamples: 10, EMAAlpha: 0.2, MaxConfidenceAdjust: 20, AdjustStep: 2,
	}, log)
	source := &staticSource{samples: []*models.PriceSample{
		{Symbol: "BTCUSDT", Price: 50000, Change24h: 2.4, Timestamp: time.Now()},
		{Symbol: "ETHUSDT", Price: 3000, Change24h: -1.2, Timestamp: time.Now()},
	}}

	r := NewRefresher(source, tracker, log)
	r.refresh()

	rec, err := tracker.Store().Get(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.SamplesCollected)
	assert.InDelta(t, 0.1, rec.VelocityEMA, 1e-9)
}

func TestRefresher_StartStop(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	tracker := learning.NewTracker(learning.NewMemoryStore(), &config.LearningConfig{
		MinSamples: 10, EMAAlpha: 0.2, MaxConfidenceAdjust: 20, AdjustStep: 2,
	}, log)
	r := NewRefresher(&staticSource{}, tracker, log)

	require.NoError(t, r.Start(time.Second))
	assert.Error(t, r.Start(time.Second), "double start must fail")

	r.Stop()
	r.Stop() // idempotent
}
