package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/internal/indicators"
	"github.com/zikalyze/core/internal/learning"
	"github.com/zikalyze/core/internal/patterns"
	"github.com/zikalyze/core/internal/report"
	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

// CandleSource provides historical candles. Implemented by the
// marketdata provider chain; returns the provider tag alongside the
// candles.
type CandleSource interface {
	Fetch(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, string, error)
}

// LiveSource exposes the freshest live market state when a feed is
// running. Both methods are optional views; nil/false mean no data.
type LiveSource interface {
	Partial(symbol, interval string) (*models.Candle, bool)
	Latest(symbol string) *models.PriceSample
}

// ResultCache is the consensus cache boundary (Redis in production).
type ResultCache interface {
	GetConsensus(ctx context.Context, symbol, interval string) (*models.ConsensusResult, error)
	SetConsensus(ctx context.Context, result *models.ConsensusResult) error
}

// Publisher fans completed results out to downstream consumers (NATS).
type Publisher interface {
	PublishConsensus(ctx context.Context, result *models.ConsensusResult) error
}

// Options controls one analysis request. Zero values fall back to the
// configured defaults.
type Options struct {
	Interval  string
	Limit     int
	Timeout   time.Duration
	SkipCache bool
}

// Engine runs the full analysis pipeline: candles in, rendered
// consensus out.
type Engine struct {
	source    CandleSource
	live      LiveSource
	cache     ResultCache
	publisher Publisher
	tracker   *learning.Tracker
	analyzers []Analyzer
	registry  *patterns.Registry
	cfg       *config.AnalysisConfig
	logger    *logrus.Entry
}

// NewEngine wires the pipeline. live, cache and publisher may be nil;
// the engine degrades to a pure request/response pipeline without them.
func NewEngine(source CandleSource, live LiveSource, cache ResultCache, publisher Publisher,
	tracker *learning.Tracker, analyzers []Analyzer, cfg *config.AnalysisConfig, log *logrus.Logger) *Engine {
	return &Engine{
		source:    source,
		live:      live,
		cache:     cache,
		publisher: publisher,
		tracker:   tracker,
		analyzers: analyzers,
		registry:  patterns.NewRegistry(),
		cfg:       cfg,
		logger:    log.WithField("component", "engine"),
	}
}

// Analyze runs one full analysis for a symbol. Degraded domains yield
// degraded verdicts; only invalid input or total candle-source failure
// surface as errors.
func (e *Engine) Analyze(ctx context.Context, symbol string, opts Options) (*models.ConsensusResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := models.ValidateSymbol(symbol); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSymbol, err)
	}

	if opts.Interval == "" {
		opts.Interval = e.cfg.DefaultInterval
	}
	if opts.Limit <= 0 {
		opts.Limit = e.cfg.DefaultLimit
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if !opts.SkipCache && e.cache != nil {
		if cached, err := e.cache.GetConsensus(ctx, symbol, opts.Interval); err == nil && cached != nil {
			e.logger.WithField("symbol", symbol).Debug("Consensus cache hit")
			return cached, nil
		}
	}

	candles, source, err := e.source.Fetch(ctx, symbol, opts.Interval, opts.Limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", symbol, err)
	}
	models.SortCandles(candles)
	if err := models.ValidateCandles(candles); err != nil {
		return nil, fmt.Errorf("candle data for %s is invalid: %w", symbol, err)
	}

	aux := e.buildAux(symbol, opts.Interval, candles)
	verdicts := e.runAnalyzers(ctx, candles, aux)

	weights, err := e.tracker.Weights(ctx, symbol)
	if err != nil {
		e.logger.WithField("symbol", symbol).WithError(err).Warn("Weight lookup failed, using defaults")
		weights = models.DefaultWeights()
	}

	bias, confidence := Aggregate(verdicts, weights, e.cfg.DisagreementPenalty)
	if confidence > 0 {
		// A learned adjustment nudges real consensus only; a zero
		// aggregate (e.g. a below-minimum window) stays zero.
		confidence = clampConfidence(confidence + e.tracker.ConfidenceAdjust(ctx, symbol))
	}

	result := &models.ConsensusResult{
		ID:                uuid.New().String(),
		Symbol:            symbol,
		Interval:          opts.Interval,
		OverallBias:       bias,
		OverallConfidence: confidence,
		Weights:           weights,
		Verdicts:          verdicts,
		Source:            source,
		GeneratedAt:       time.Now(),
	}
	result.Report = report.Render(result)

	e.finish(symbol, candles, aux, result)
	return result, nil
}

// buildAux computes the shared per-analysis inputs once.
func (e *Engine) buildAux(symbol, interval string, candles []models.Candle) Aux {
	if e.live != nil {
		if partial, ok := e.live.Partial(symbol, interval); ok {
			if len(candles) == 0 || partial.Timestamp.After(candles[len(candles)-1].Timestamp) {
				candles = append(candles, *partial)
			}
		}
	}

	aux := Aux{
		Stats:     indicators.Snapshot(candles, e.cfg.MinWindow),
		Levels:    indicators.ClusterLevels(candles, e.cfg.ClusterThreshold, e.cfg.MaxClusters),
		Findings:  e.registry.Scan(candles),
		MinWindow: e.cfg.MinWindow,
	}
	if e.live != nil {
		aux.Live = e.live.Latest(symbol)
	}
	return aux
}

// runAnalyzers executes every domain concurrently and collects the
// verdicts in registration order.
func (e *Engine) runAnalyzers(ctx context.Context, candles []models.Candle, aux Aux) []models.DomainVerdict {
	verdicts := make([]models.DomainVerdict, len(e.analyzers))
	var wg sync.WaitGroup
	for i, a := range e.analyzers {
		wg.Add(1)
		go func(i int, a Analyzer) {
			defer wg.Done()
			verdicts[i] = a.Analyze(ctx, candles, aux)
		}(i, a)
	}
	wg.Wait()
	return verdicts
}

// finish performs the best-effort side effects of a completed
// analysis: learning observation, caching, publishing. Uses a fresh
// context so caller cancellation cannot drop the observation.
func (e *Engine) finish(symbol string, candles []models.Candle, aux Aux, result *models.ConsensusResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.tracker.ObserveAnalysis(ctx, symbol, aux.Stats, aux.Levels, result.OverallBias); err != nil {
		e.logger.WithField("symbol", symbol).WithError(err).Warn("Failed to record observation")
	}
	if e.cache != nil {
		if err := e.cache.SetConsensus(ctx, result); err != nil {
			e.logger.WithField("symbol", symbol).WithError(err).Warn("Failed to cache consensus")
		}
	}
	if e.publisher != nil {
		if err := e.publisher.PublishConsensus(ctx, result); err != nil {
			e.logger.WithField("symbol", symbol).WithError(err).Warn("Failed to publish consensus")
		}
	}
}
