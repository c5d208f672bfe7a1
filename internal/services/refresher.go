package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/internal/learning"
	"github.com/zikalyze/core/pkg/models"
)

// SampleSource supplies the latest live sample per symbol. The live
// aggregator implements it.
type SampleSource interface {
	Snapshot() []*models.PriceSample
}

// Refresher periodically folds the freshest live samples into the
// learning tracker, independently of on-demand analyses. Per-symbol
// updates are last-write-wins, so a refresh racing an analysis is
// harmless.
type Refresher struct {
	source  SampleSource
	tracker *learning.Tracker
	cron    *cron.Cron
	entry   cron.EntryID
	logger  *logrus.Entry

	mu      sync.Mutex
	running bool
}

// NewRefresher creates a refresher on the given schedule interval.
func NewRefresher(source SampleSource, tracker *learning.Tracker, log *logrus.Logger) *Refresher {
	return &Refresher{
		source:  source,
		tracker: tracker,
		cron:    cron.New(cron.WithSeconds()),
		logger:  log.WithField("component", "refresher"),
	}
}

// Start schedules the refresh job.
func (r *Refresher) Start(interval time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("refresher already running")
	}

	spec := fmt.Sprintf("@every %s", interval)
	entry, err := r.cron.AddFunc(spec, r.refresh)
	if err != nil {
		return fmt.Errorf("failed to schedule refresh job: %w", err)
	}
	r.entry = entry
	r.cron.Start()
	r.running = true

	r.logger.WithField("interval", interval).Info("Refresher started")
	return nil
}

// Stop cancels the schedule and waits for an in-flight run.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.running = false
	r.logger.Info("Refresher stopped")
}

// refresh is one scheduled pass over the live sample snapshot.
func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	samples := r.source.Snapshot()
	for _, sample := range samples {
		if err := r.tracker.ObserveSample(ctx, sample); err != nil {
			r.logger.WithField("symbol", sample.Symbol).WithError(err).Warn("Failed to observe sample")
		}
	}

	if len(samples) > 0 {
		r.logger.WithField("count", len(samples)).Debug("Refreshed learning records")
	}
}
