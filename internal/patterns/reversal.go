package patterns

import (
	"fmt"

	"github.com/zikalyze/core/pkg/models"
)

// BullishEngulfing detects a bearish candle fully engulfed by the
// following bullish candle.
type BullishEngulfing struct{}

func (BullishEngulfing) Name() string { return "bullish_engulfing" }

func (d BullishEngulfing) Detect(candles []models.Candle) *models.Finding {
	if len(candles) < 2 {
		return nil
	}
	prev := candles[len(candles)-2]
	last := candles[len(candles)-1]

	if !isBear(prev) || !isBull(last) {
		return nil
	}
	if last.Open > prev.Close || last.Close < prev.Open {
		return nil
	}
	if body(prev) == 0 {
		return nil
	}

	ratio := body(last) / body(prev)
	if ratio < 1.0 {
		return nil
	}

	return &models.Finding{
		Pattern:      d.Name(),
		Direction:    models.Bullish,
		Strength:     clampStrength(50 + 20*ratio),
		TriggerPrice: last.Close,
		Description:  fmt.Sprintf("bullish candle engulfs prior body %.1fx", ratio),
	}
}

// BearishEngulfing detects a bullish candle fully engulfed by the
// following bearish candle.
type BearishEngulfing struct{}

func (BearishEngulfing) Name() string { return "bearish_engulfing" }

func (d BearishEngulfing) Detect(candles []models.Candle) *models.Finding {
	if len(candles) < 2 {
		return nil
	}
	prev := candles[len(candles)-2]
	last := candles[len(candles)-1]

	if !isBull(prev) || !isBear(last) {
		return nil
	}
	if last.Open < prev.Close || last.Close > prev.Open {
		return nil
	}
	if body(prev) == 0 {
		return nil
	}

	ratio := body(last) / body(prev)
	if ratio < 1.0 {
		return nil
	}

	return &models.Finding{
		Pattern:      d.Name(),
		Direction:    models.Bearish,
		Strength:     clampStrength(50 + 20*ratio),
		TriggerPrice: last.Close,
		Description:  fmt.Sprintf("bearish candle engulfs prior body %.1fx", ratio),
	}
}

// wickSlack is the relative tolerance for wick/body comparisons, so
// float rounding at an exact boundary cannot flip a detection.
const wickSlack = 1e-9

// Hammer detects a long lower wick after a decline, a bullish
// reversal hint.
type Hammer struct{}

func (Hammer) Name() string { return "hammer" }

func (d Hammer) Detect(candles []models.Candle) *models.Finding {
	if len(candles) < 5 {
		return nil
	}
	last := candles[len(candles)-1]

	b := body(last)
	if b == 0 {
		return nil
	}
	bodyTop := last.Open
	if last.Close > last.Open {
		bodyTop = last.Close
	}
	bodyBottom := last.Open + last.Close - bodyTop

	lowerWick := bodyBottom - last.Low
	upperWick := last.High - bodyTop
	if lowerWick*(1+wickSlack) < 2*b || upperWick > b*(1+wickSlack) {
		return nil
	}

	// Only meaningful after a decline.
	lookback := candles[len(candles)-5]
	if last.Close >= lookback.Close {
		return nil
	}

	return &models.Finding{
		Pattern:      d.Name(),
		Direction:    models.Bullish,
		Strength:     clampStrength(40 + 10*lowerWick/b),
		TriggerPrice: last.Low,
		Description:  fmt.Sprintf("hammer with %.1fx lower wick after decline", lowerWick/b),
	}
}

// ShootingStar detects a long upper wick after an advance, a bearish
// reversal hint.
type ShootingStar struct{}

func (ShootingStar) Name() string { return "shooting_star" }

func (d ShootingStar) Detect(candles []models.Candle) *models.Finding {
	if len(candles) < 5 {
		return nil
	}
	last := candles[len(candles)-1]

	b := body(last)
	if b == 0 {
		return nil
	}
	bodyTop := last.Open
	if last.Close > last.Open {
		bodyTop = last.Close
	}
	bodyBottom := last.Open + last.Close - bodyTop

	upperWick := last.High - bodyTop
	lowerWick := bodyBottom - last.Low
	if upperWick*(1+wickSlack) < 2*b || lowerWick > b*(1+wickSlack) {
		return nil
	}

	lookback := candles[len(candles)-5]
	if last.Close <= lookback.Close {
		return nil
	}

	return &models.Finding{
		Pattern:      d.Name(),
		Direction:    models.Bearish,
		Strength:     clampStrength(40 + 10*upperWick/b),
		TriggerPrice: last.High,
		Description:  fmt.Sprintf("shooting star with %.1fx upper wick after advance", upperWick/b),
	}
}
