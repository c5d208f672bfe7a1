package indicators

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"github.com/zikalyze/core/pkg/models"
)

// DefaultMinWindow is the smallest candle count the library computes
// meaningful statistics from. Shorter sequences yield neutral results.
const DefaultMinWindow = 20

const (
	rsiPeriod = 14
	emaPeriod = 20
	atrPeriod = 14
)

// Stats bundles the scalar statistics derived from one candle window.
type Stats struct {
	Volatility float64 // stddev of percentage returns, in percent
	Velocity   float64 // percent change per hour over the window
	Trend      float64 // -100..+100, recent vs older moving average
	RSI        float64
	EMA        float64
	ATR        float64
	AvgVolume  float64
	LastClose  float64
}

// Neutral returns the zero-signal Stats used for short sequences.
func Neutral() Stats {
	return Stats{RSI: 50}
}

// Closes extracts close prices from a candle sequence.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Returns computes percentage returns between consecutive closes.
func Returns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			continue
		}
		out = append(out, (candles[i].Close-prev)/prev*100)
	}
	return out
}

// Volatility is the standard deviation of percentage returns.
func Volatility(candles []models.Candle) float64 {
	rets := Returns(candles)
	if len(rets) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	variance := 0.0
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(rets))
	return math.Sqrt(variance)
}

// Velocity is the percentage change per hour across the window.
func Velocity(candles []models.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	first, last := candles[0], candles[len(candles)-1]
	if first.Close == 0 {
		return 0
	}
	hours := last.Timestamp.Sub(first.Timestamp).Hours()
	if hours <= 0 {
		return 0
	}
	return (last.Close - first.Close) / first.Close * 100 / hours
}

// TrendStrength compares the recent-half moving average against the
// older half, normalized to -100..+100.
func TrendStrength(candles []models.Candle) float64 {
	n := len(candles)
	if n < 4 {
		return 0
	}
	half := n / 2
	older := mean(Closes(candles[:half]))
	recent := mean(Closes(candles[half:]))
	if older == 0 {
		return 0
	}
	// 5% divergence between halves saturates the scale
	strength := (recent - older) / older * 100 / 5 * 100
	return clamp(strength, -100, 100)
}

// Snapshot computes the full statistics bundle for a candle window.
// Sequences shorter than minWindow return the neutral result.
func Snapshot(candles []models.Candle, minWindow int) Stats {
	if minWindow <= 0 {
		minWindow = DefaultMinWindow
	}
	if len(candles) < minWindow {
		return Neutral()
	}

	closes := Closes(candles)
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	vols := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		vols[i] = c.Volume
	}

	stats := Stats{
		Volatility: Volatility(candles),
		Velocity:   Velocity(candles),
		Trend:      TrendStrength(candles),
		RSI:        50,
		AvgVolume:  mean(vols),
		LastClose:  closes[len(closes)-1],
	}

	if len(closes) > rsiPeriod {
		if rsi := talib.Rsi(closes, rsiPeriod); len(rsi) > 0 {
			stats.RSI = rsi[len(rsi)-1]
		}
	}
	if len(closes) >= emaPeriod {
		if ema := talib.Ema(closes, emaPeriod); len(ema) > 0 {
			stats.EMA = ema[len(ema)-1]
		}
	}
	if len(closes) > atrPeriod {
		if atr := talib.Atr(highs, lows, closes, atrPeriod); len(atr) > 0 {
			stats.ATR = atr[len(atr)-1]
		}
	}

	return stats
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
