package models

import "time"

// Domain identifies one of the independent analysis domains.
type Domain string

const (
	DomainTechnical     Domain = "technical"
	DomainInstitutional Domain = "institutional"
	DomainMacro         Domain = "macro"
)

// DomainVerdict is the output of one analyzer invocation. Ephemeral,
// recomputed on every analysis request.
type DomainVerdict struct {
	Domain     Domain        `json:"domain"`
	Bias       Direction     `json:"bias"`
	Confidence float64       `json:"confidence"` // 0-100
	Findings   []Finding     `json:"findings,omitempty"`
	Rationale  string        `json:"rationale"`
	IsLive     bool          `json:"is_live"`
	DataAge    time.Duration `json:"data_age,omitempty"`
}

// Weights holds the per-domain consensus weights. They sum to 1.0.
type Weights struct {
	Technical     float64 `json:"technical"`
	Institutional float64 `json:"institutional"`
	Macro         float64 `json:"macro"`
}

// DefaultWeights is the fixed configuration used until a symbol has
// collected enough feedback for adaptive weighting.
func DefaultWeights() Weights {
	return Weights{Technical: 0.5, Institutional: 0.3, Macro: 0.2}
}

// Of returns the weight assigned to a domain.
func (w Weights) Of(d Domain) float64 {
	switch d {
	case DomainTechnical:
		return w.Technical
	case DomainInstitutional:
		return w.Institutional
	case DomainMacro:
		return w.Macro
	default:
		return 0
	}
}

// Sum returns the total of all three weights.
func (w Weights) Sum() float64 {
	return w.Technical + w.Institutional + w.Macro
}

// ConsensusResult is the terminal artifact of one analysis.
type ConsensusResult struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	Interval          string          `json:"interval"`
	OverallBias       Direction       `json:"overall_bias"`
	OverallConfidence float64         `json:"overall_confidence"` // 0-100
	Weights           Weights         `json:"weights"`
	Verdicts          []DomainVerdict `json:"verdicts"`
	Report            string          `json:"report"`
	Source            string          `json:"source"` // candle provider tag
	GeneratedAt       time.Time       `json:"generated_at"`
}
