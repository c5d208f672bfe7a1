package patterns

import (
	"sort"

	"github.com/zikalyze/core/pkg/models"
)

// Detector scans a candle window for one named chart pattern. Detectors
// are pure functions of their input and hold no mutable state; an
// ambiguous shape yields nil (false negatives over false positives).
type Detector interface {
	Name() string
	Detect(candles []models.Candle) *models.Finding
}

// Registry holds the pluggable detector set.
type Registry struct {
	detectors []Detector
}

// NewRegistry creates a registry with the built-in detector set.
func NewRegistry() *Registry {
	return &Registry{
		detectors: []Detector{
			BullishEngulfing{},
			BearishEngulfing{},
			Hammer{},
			ShootingStar{},
			StructureBreak{},
			OrderBlock{},
		},
	}
}

// Register adds a custom detector.
func (r *Registry) Register(d Detector) {
	r.detectors = append(r.detectors, d)
}

// Scan runs every registered detector against the same candle window
// and returns the non-nil findings sorted by strength descending.
func (r *Registry) Scan(candles []models.Candle) []models.Finding {
	var findings []models.Finding
	for _, d := range r.detectors {
		if f := d.Detect(candles); f != nil {
			findings = append(findings, *f)
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Strength > findings[j].Strength
	})
	return findings
}

func body(c models.Candle) float64 {
	b := c.Close - c.Open
	if b < 0 {
		return -b
	}
	return b
}

func isBull(c models.Candle) bool { return c.Close > c.Open }
func isBear(c models.Candle) bool { return c.Close < c.Open }

func clampStrength(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
