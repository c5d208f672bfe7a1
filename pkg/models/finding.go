package models

// Direction is a directional verdict for a finding or an analysis domain.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Sign maps a direction to -1, 0 or +1 for weighted scoring.
func (d Direction) Sign() float64 {
	switch d {
	case Bullish:
		return 1
	case Bearish:
		return -1
	default:
		return 0
	}
}

// Finding is a single detected chart pattern. Findings are immutable
// once emitted and consumed read-only by the analyzers.
type Finding struct {
	Pattern      string    `json:"pattern"`
	Direction    Direction `json:"direction"`
	Strength     float64   `json:"strength"` // 0-100
	TriggerPrice float64   `json:"trigger_price"`
	Description  string    `json:"description"`
}
