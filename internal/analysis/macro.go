package analysis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/zikalyze/core/pkg/models"
)

// MacroEvent is one entry in the macro calendar: a scheduled or
// standing condition with a directional lean for risk assets.
type MacroEvent struct {
	Name   string
	Time   time.Time // zero time = standing condition
	Lean   models.Direction
	Weight float64 // 0..1 share of the macro score
}

// eventHorizon is how close a scheduled event must be to influence the
// verdict, on either side of now.
const eventHorizon = 48 * time.Hour

// MacroAnalyzer nudges the consensus with a coarse macro-calendar bias.
// It never contributes more than a weak verdict; missing calendar data
// only degrades confidence, never errors.
type MacroAnalyzer struct {
	calendar []MacroEvent
	now      func() time.Time
}

// NewMacroAnalyzer creates the analyzer over an injected calendar.
func NewMacroAnalyzer(calendar []MacroEvent) *MacroAnalyzer {
	return &MacroAnalyzer{calendar: calendar, now: time.Now}
}

func (a *MacroAnalyzer) Domain() models.Domain {
	return models.DomainMacro
}

func (a *MacroAnalyzer) Analyze(_ context.Context, candles []models.Candle, aux Aux) models.DomainVerdict {
	if len(candles) < aux.MinWindow {
		return neutralVerdict(a.Domain())
	}

	if len(a.calendar) == 0 {
		return models.DomainVerdict{
			Domain:     a.Domain(),
			Bias:       models.Neutral,
			Confidence: 10,
			Rationale:  "no macro calendar loaded",
			IsLive:     false,
		}
	}

	now := a.now()
	score := 0.0
	active := 0
	nearest := ""
	for _, ev := range a.calendar {
		if !ev.Time.IsZero() {
			d := ev.Time.Sub(now)
			if d < -eventHorizon || d > eventHorizon {
				continue
			}
		}
		score += float64(ev.Lean.Sign()) * ev.Weight * 100
		active++
		if nearest == "" {
			nearest = ev.Name
		}
	}
	score = math.Max(-100, math.Min(100, score))

	if active == 0 {
		return models.DomainVerdict{
			Domain:     a.Domain(),
			Bias:       models.Neutral,
			Confidence: 15,
			Rationale:  "no macro events inside the horizon",
			IsLive:     true,
		}
	}

	// Macro is a nudge, not a driver: confidence is capped well below
	// what the other domains can reach.
	return models.DomainVerdict{
		Domain:     a.Domain(),
		Bias:       biasFromScore(score, 5),
		Confidence: clampConfidence(math.Min(abs(score), 60)),
		Rationale:  rationale(fmt.Sprintf("%d active event(s), nearest %q", active, nearest), describeScore(score)),
		IsLive:     true,
	}
}

// DefaultCalendar is the standing macro context shipped with the
// engine. Deployments replace it via configuration or the API.
func DefaultCalendar() []MacroEvent {
	return []MacroEvent{
		{Name: "risk-on regime", Lean: models.Bullish, Weight: 0.2},
	}
}
