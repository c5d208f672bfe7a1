package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zikalyze/core/pkg/models"
)

func verdict(domain models.Domain, bias models.Direction, conf float64) models.DomainVerdict {
	return models.DomainVerdict{Domain: domain, Bias: bias, Confidence: conf, IsLive: true}
}

func TestAggregate_UnanimousDomains(t *testing.T) {
	verdicts := []models.DomainVerdict{
		verdict(models.DomainTechnical, models.Bullish, 80),
		verdict(models.DomainInstitutional, models.Bullish, 60),
		verdict(models.DomainMacro, models.Bullish, 40),
	}

	bias, conf := Aggregate(verdicts, models.DefaultWeights(), 0.5)
	assert.Equal(t, models.Bullish, bias)
	assert.InDelta(t, 0.5*80+0.3*60+0.2*40, conf, 1e-9, "no disagreement, no penalty")
}

func TestAggregate_TieIsNeutral(t *testing.T) {
	verdicts := []models.DomainVerdict{
		verdict(models.DomainTechnical, models.Bullish, 50),
		verdict(models.DomainInstitutional, models.Bearish, 50),
	}
	weights := models.Weights{Technical: 0.5, Institutional: 0.5}

	bias, _ := Aggregate(verdicts, weights, 0.5)
	assert.Equal(t, models.Neutral, bias)
}

func TestAggregate_MissingDomainRenormalizes(t *testing.T) {
	// Macro absent: technical and institutional split its weight
	// proportionally, so institutional can still win.
	verdicts := []models.DomainVerdict{
		verdict(models.DomainTechnical, models.Bullish, 30),
		verdict(models.DomainInstitutional, models.Bearish, 70),
	}

	bias, conf := Aggregate(verdicts, models.DefaultWeights(), 0)
	assert.Equal(t, models.Bearish, bias)
	// Renormalized weights: 0.5/0.8 and 0.3/0.8.
	assert.InDelta(t, (0.5*30+0.3*70)/0.8, conf, 1e-9)
}

func TestAggregate_EmptyAndZeroWeight(t *testing.T) {
	bias, conf := Aggregate(nil, models.DefaultWeights(), 0.5)
	assert.Equal(t, models.Neutral, bias)
	assert.Zero(t, conf)

	verdicts := []models.DomainVerdict{verdict(models.DomainTechnical, models.Bullish, 90)}
	bias, conf = Aggregate(verdicts, models.Weights{}, 0.5)
	assert.Equal(t, models.Neutral, bias)
	assert.Zero(t, conf)
}

// Holding individual confidences fixed, confidence must not increase
// as the domains disagree more.
func TestAggregate_DisagreementPenaltyMonotonic(t *testing.T) {
	weights := models.DefaultWeights()

	unanimous := []models.DomainVerdict{
		verdict(models.DomainTechnical, models.Bullish, 70),
		verdict(models.DomainInstitutional, models.Bullish, 70),
		verdict(models.DomainMacro, models.Bullish, 70),
	}
	oneNeutral := []models.DomainVerdict{
		verdict(models.DomainTechnical, models.Bullish, 70),
		verdict(models.DomainInstitutional, models.Bullish, 70),
		verdict(models.DomainMacro, models.Neutral, 70),
	}
	oneOpposed := []models.DomainVerdict{
		verdict(models.DomainTechnical, models.Bullish, 70),
		verdict(models.DomainInstitutional, models.Bullish, 70),
		verdict(models.DomainMacro, models.Bearish, 70),
	}

	_, c0 := Aggregate(unanimous, weights, 0.5)
	_, c1 := Aggregate(oneNeutral, weights, 0.5)
	_, c2 := Aggregate(oneOpposed, weights, 0.5)

	assert.GreaterOrEqual(t, c0, c1)
	assert.GreaterOrEqual(t, c1, c2)
	assert.Less(t, c2, c0, "full opposition must cost confidence")
}

func TestAggregate_Deterministic(t *testing.T) {
	verdicts := []models.DomainVerdict{
		verdict(models.DomainTechnical, models.Bullish, 64.2),
		verdict(models.DomainInstitutional, models.Bearish, 31.7),
		verdict(models.DomainMacro, models.Neutral, 12.5),
	}
	b1, c1 := Aggregate(verdicts, models.DefaultWeights(), 0.5)
	for i := 0; i < 10; i++ {
		b2, c2 := Aggregate(verdicts, models.DefaultWeights(), 0.5)
		assert.Equal(t, b1, b2)
		assert.Equal(t, c1, c2)
	}
}
