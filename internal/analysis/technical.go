package analysis

import (
	"context"
	"fmt"

	"github.com/zikalyze/core/pkg/models"
)

// TechnicalAnalyzer scores trend, momentum and candlestick patterns
// into a single directional verdict.
type TechnicalAnalyzer struct{}

func NewTechnicalAnalyzer() *TechnicalAnalyzer {
	return &TechnicalAnalyzer{}
}

func (a *TechnicalAnalyzer) Domain() models.Domain {
	return models.DomainTechnical
}

func (a *TechnicalAnalyzer) Analyze(_ context.Context, candles []models.Candle, aux Aux) models.DomainVerdict {
	if len(candles) < aux.MinWindow {
		return neutralVerdict(a.Domain())
	}

	stats := aux.Stats

	// Three components, each in -100..+100: trend carries the most
	// weight, RSI extremes push against it, patterns confirm.
	trendScore := stats.Trend

	rsiScore := 0.0
	switch {
	case stats.RSI >= 70:
		rsiScore = -(stats.RSI - 70) * 10 / 3 // overbought
	case stats.RSI <= 30:
		rsiScore = (30 - stats.RSI) * 10 / 3 // oversold
	}
	// RSI stays pinned in strong trends; a mean-reversion reading
	// against a saturated trend gets half weight.
	if abs(trendScore) > 60 && rsiScore*trendScore < 0 {
		rsiScore /= 2
	}

	patternScore := 0.0
	for _, f := range aux.Findings {
		patternScore += float64(f.Direction.Sign()) * f.Strength
	}
	if patternScore > 100 {
		patternScore = 100
	}
	if patternScore < -100 {
		patternScore = -100
	}

	score := 0.45*trendScore + 0.20*rsiScore + 0.35*patternScore
	if trendScore*patternScore > 0 {
		score *= 1.15 // structure confirms trend
	}
	bias := biasFromScore(score, 10)

	parts := []string{
		fmt.Sprintf("trend %+.0f", stats.Trend),
		fmt.Sprintf("RSI %.0f", stats.RSI),
	}
	if len(aux.Findings) > 0 {
		parts = append(parts, fmt.Sprintf("%d pattern(s), strongest %s", len(aux.Findings), aux.Findings[0].Pattern))
	}
	parts = append(parts, describeScore(score))

	return models.DomainVerdict{
		Domain:     a.Domain(),
		Bias:       bias,
		Confidence: clampConfidence(abs(score)),
		Findings:   aux.Findings,
		Rationale:  rationale(parts...),
		IsLive:     true,
	}
}
