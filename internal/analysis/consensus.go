package analysis

import (
	"math"

	"github.com/zikalyze/core/pkg/models"
)

// Aggregate combines per-domain verdicts into the overall bias and
// confidence. Weights for missing domains are renormalized over the
// ones present; when every weight vanishes the result is Neutral/0.
// The computation is deterministic: same verdicts and weights, same
// output.
func Aggregate(verdicts []models.DomainVerdict, weights models.Weights, disagreementPenalty float64) (models.Direction, float64) {
	if len(verdicts) == 0 {
		return models.Neutral, 0
	}

	total := 0.0
	for _, v := range verdicts {
		total += weights.Of(v.Domain)
	}
	if total <= 0 {
		return models.Neutral, 0
	}

	// Weighted signed score and weighted mean confidence.
	signed := 0.0
	meanConf := 0.0
	meanSign := 0.0
	for _, v := range verdicts {
		w := weights.Of(v.Domain) / total
		s := float64(v.Bias.Sign())
		signed += w * s * v.Confidence
		meanConf += w * v.Confidence
		meanSign += w * s
	}

	bias := models.Neutral
	const tie = 1e-9
	if signed > tie {
		bias = models.Bullish
	} else if signed < -tie {
		bias = models.Bearish
	}

	// Disagreement penalty: weighted variance of the bias signs scales
	// the confidence down. Unanimous domains leave it untouched.
	variance := 0.0
	for _, v := range verdicts {
		w := weights.Of(v.Domain) / total
		d := float64(v.Bias.Sign()) - meanSign
		variance += w * d * d
	}

	confidence := meanConf * (1 - disagreementPenalty*math.Min(variance, 1))
	return bias, clampConfidence(confidence)
}
