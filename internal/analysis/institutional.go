package analysis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/pkg/models"
)

// FlowMetrics is the on-chain style net-flow snapshot the institutional
// analyzer consumes. Negative net exchange flow (coins leaving
// exchanges) reads as accumulation.
type FlowMetrics struct {
	Symbol          string    `json:"symbol"`
	NetExchangeFlow float64   `json:"net_exchange_flow"` // base units, + = inflow
	WhaleTxCount    int       `json:"whale_tx_count"`
	Timestamp       time.Time `json:"timestamp"`
}

// FlowSource fetches flow metrics from an external provider. Slow or
// failing sources must be tolerated; the analyzer bounds every fetch
// with its own timeout.
type FlowSource interface {
	FetchNetFlow(ctx context.Context, symbol string) (*FlowMetrics, error)
}

// InstitutionalAnalyzer classifies accumulation versus distribution
// from volume behavior, falling back to candle-derived estimates when
// the external flow source is unavailable.
type InstitutionalAnalyzer struct {
	flow        FlowSource
	flowTimeout time.Duration
	logger      *logrus.Entry
}

// NewInstitutionalAnalyzer creates the analyzer. flow may be nil, in
// which case every verdict uses derived estimates.
func NewInstitutionalAnalyzer(flow FlowSource, flowTimeout time.Duration, log *logrus.Logger) *InstitutionalAnalyzer {
	return &InstitutionalAnalyzer{
		flow:        flow,
		flowTimeout: flowTimeout,
		logger:      log.WithField("component", "institutional"),
	}
}

func (a *InstitutionalAnalyzer) Domain() models.Domain {
	return models.DomainInstitutional
}

func (a *InstitutionalAnalyzer) Analyze(ctx context.Context, candles []models.Candle, aux Aux) models.DomainVerdict {
	if len(candles) < aux.MinWindow {
		return neutralVerdict(a.Domain())
	}

	symbol := candles[0].Symbol
	if metrics := a.fetchFlow(ctx, symbol); metrics != nil {
		return a.fromFlow(metrics, candles, aux)
	}
	return a.fromCandles(candles, aux)
}

// fetchFlow bounds the external call with the analyzer's own timeout so
// a hung provider can never stall the whole analysis.
func (a *InstitutionalAnalyzer) fetchFlow(ctx context.Context, symbol string) *FlowMetrics {
	if a.flow == nil {
		return nil
	}

	fctx, cancel := context.WithTimeout(ctx, a.flowTimeout)
	defer cancel()

	metrics, err := a.flow.FetchNetFlow(fctx, symbol)
	if err != nil {
		a.logger.WithField("symbol", symbol).WithError(err).Debug("Flow fetch failed, using derived estimates")
		return nil
	}
	return metrics
}

func (a *InstitutionalAnalyzer) fromFlow(metrics *FlowMetrics, candles []models.Candle, aux Aux) models.DomainVerdict {
	// Normalize the net flow against recent average volume so the
	// score is comparable across symbols.
	score := 0.0
	if aux.Stats.AvgVolume > 0 {
		score = -metrics.NetExchangeFlow / aux.Stats.AvgVolume * 100
	}
	score = math.Max(-100, math.Min(100, score))

	if metrics.WhaleTxCount > 0 {
		// Whale activity amplifies whichever direction the flow shows.
		boost := math.Min(float64(metrics.WhaleTxCount)*2, 20)
		if score > 0 {
			score = math.Min(100, score+boost)
		} else if score < 0 {
			score = math.Max(-100, score-boost)
		}
	}

	bias := biasFromScore(score, 8)
	label := "balanced exchange flow"
	if bias == models.Bullish {
		label = "net exchange outflow (accumulation)"
	} else if bias == models.Bearish {
		label = "net exchange inflow (distribution)"
	}

	return models.DomainVerdict{
		Domain:     a.Domain(),
		Bias:       bias,
		Confidence: clampConfidence(abs(score)),
		Rationale:  rationale(label, fmt.Sprintf("%d whale transaction(s)", metrics.WhaleTxCount)),
		IsLive:     true,
	}
}

// fromCandles derives an accumulation/distribution estimate from volume
// and velocity alone. Marked IsLive=false so callers know the verdict
// rests on proxies rather than flow data.
func (a *InstitutionalAnalyzer) fromCandles(candles []models.Candle, aux Aux) models.DomainVerdict {
	last := candles[len(candles)-1]
	stats := aux.Stats

	// Volume z-score of the latest candle against the window.
	volZ := 0.0
	if sd := volumeStddev(candles, stats.AvgVolume); sd > 0 {
		volZ = (last.Volume - stats.AvgVolume) / sd
	}

	score := 0.0
	parts := []string{}

	// Above-average volume on a directional candle signals intent.
	if volZ > 1 {
		dir := 1.0
		if last.Close < last.Open {
			dir = -1
		}
		score += dir * math.Min(volZ*25, 60)
		parts = append(parts, fmt.Sprintf("volume %.1fσ above mean", volZ))
	}

	// Velocity/volume divergence: price drifting on thin volume fades.
	if abs(stats.Velocity) > 0.1 && volZ < -0.5 {
		score -= math.Copysign(20, stats.Velocity)
		parts = append(parts, "move on fading volume")
	}

	// Order-block proximity from the pattern scan.
	for _, f := range aux.Findings {
		if f.Pattern == "order_block" {
			score += float64(f.Direction.Sign()) * f.Strength * 0.4
			parts = append(parts, "price near order block")
			break
		}
	}

	score = math.Max(-100, math.Min(100, score))

	return models.DomainVerdict{
		Domain:     a.Domain(),
		Bias:       biasFromScore(score, 8),
		Confidence: clampConfidence(abs(score) * 0.8), // derived data earns less trust
		Rationale:  rationale(append(parts, describeScore(score))...),
		IsLive:     false,
		DataAge:    dataAge(candles),
	}
}

func volumeStddev(candles []models.Candle, mean float64) float64 {
	if len(candles) < 2 {
		return 0
	}
	variance := 0.0
	for _, c := range candles {
		d := c.Volume - mean
		variance += d * d
	}
	variance /= float64(len(candles))
	return math.Sqrt(variance)
}
