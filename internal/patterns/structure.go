package patterns

import (
	"fmt"

	"github.com/zikalyze/core/pkg/models"
)

const structureLookback = 20

// StructureBreak detects a close beyond the recent swing high or low,
// a break of market structure in that direction.
type StructureBreak struct{}

func (StructureBreak) Name() string { return "structure_break" }

func (d StructureBreak) Detect(candles []models.Candle) *models.Finding {
	if len(candles) < structureLookback+1 {
		return nil
	}
	window := candles[len(candles)-structureLookback-1 : len(candles)-1]
	last := candles[len(candles)-1]

	swingHigh, swingLow := window[0].High, window[0].Low
	for _, c := range window {
		if c.High > swingHigh {
			swingHigh = c.High
		}
		if c.Low < swingLow {
			swingLow = c.Low
		}
	}

	if last.Close > swingHigh {
		margin := (last.Close - swingHigh) / swingHigh * 100
		return &models.Finding{
			Pattern:      d.Name(),
			Direction:    models.Bullish,
			Strength:     clampStrength(55 + margin*20),
			TriggerPrice: swingHigh,
			Description:  fmt.Sprintf("close %.2f%% above %d-candle swing high", margin, structureLookback),
		}
	}

	if last.Close < swingLow {
		margin := (swingLow - last.Close) / swingLow * 100
		return &models.Finding{
			Pattern:      d.Name(),
			Direction:    models.Bearish,
			Strength:     clampStrength(55 + margin*20),
			TriggerPrice: swingLow,
			Description:  fmt.Sprintf("close %.2f%% below %d-candle swing low", margin, structureLookback),
		}
	}

	return nil
}

// OrderBlock detects the last opposing candle before an impulsive move
// and emits its zone, an approximation of institutional entry areas.
type OrderBlock struct{}

func (OrderBlock) Name() string { return "order_block" }

// impulseFactor is how much larger than the average body a move must
// be to count as impulsive.
const impulseFactor = 2.5

func (d OrderBlock) Detect(candles []models.Candle) *models.Finding {
	if len(candles) < 10 {
		return nil
	}

	avgBody := 0.0
	for _, c := range candles[len(candles)-10:] {
		avgBody += body(c)
	}
	avgBody /= 10
	if avgBody == 0 {
		return nil
	}

	// Walk back looking for an impulsive candle preceded by an
	// opposing one. Only the most recent block matters.
	for i := len(candles) - 1; i >= len(candles)-5 && i > 0; i-- {
		impulse := candles[i]
		block := candles[i-1]

		if body(impulse) < impulseFactor*avgBody {
			continue
		}

		if isBull(impulse) && isBear(block) {
			return &models.Finding{
				Pattern:      d.Name(),
				Direction:    models.Bullish,
				Strength:     clampStrength(45 + 10*body(impulse)/avgBody),
				TriggerPrice: block.Low,
				Description:  fmt.Sprintf("bullish order block %.2f-%.2f before impulsive move", block.Low, block.High),
			}
		}
		if isBear(impulse) && isBull(block) {
			return &models.Finding{
				Pattern:      d.Name(),
				Direction:    models.Bearish,
				Strength:     clampStrength(45 + 10*body(impulse)/avgBody),
				TriggerPrice: block.High,
				Description:  fmt.Sprintf("bearish order block %.2f-%.2f before impulsive move", block.Low, block.High),
			}
		}
	}

	return nil
}
