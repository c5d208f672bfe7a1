package models

import (
	"fmt"
	"regexp"
	"time"
)

// Candle represents one OHLCV bar. Sequences passed to the analysis
// pipeline must be ordered by strictly increasing timestamp.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// PriceSample represents a single live tick. Several samples may fall
// inside one candle interval.
type PriceSample struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)

// ValidateSymbol checks that a symbol looks like an exchange pair
// (e.g. BTCUSDT). Invalid symbols are the caller's error, not a
// degraded result.
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol %q", symbol)
	}
	return nil
}

// SortCandles orders candles by timestamp ascending in place.
func SortCandles(candles []Candle) {
	// insertion sort keeps already-ordered feeds cheap
	for i := 1; i < len(candles); i++ {
		for j := i; j > 0 && candles[j].Timestamp.Before(candles[j-1].Timestamp); j-- {
			candles[j], candles[j-1] = candles[j-1], candles[j]
		}
	}
}

// ValidateCandles checks time ordering and numeric sanity. Returns an
// error only for genuinely malformed input; short sequences are valid.
func ValidateCandles(candles []Candle) error {
	for i, c := range candles {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return fmt.Errorf("candle %d has non-positive price", i)
		}
		if c.High < c.Low {
			return fmt.Errorf("candle %d has high below low", i)
		}
		if i > 0 && !candles[i-1].Timestamp.Before(c.Timestamp) {
			return fmt.Errorf("candle %d breaks timestamp ordering", i)
		}
	}
	return nil
}

// IntervalDuration maps an interval name to its duration. Unknown
// intervals default to one hour.
func IntervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
