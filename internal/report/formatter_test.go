package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zikalyze/core/pkg/models"
)

func sampleResult() *models.ConsensusResult {
	return &models.ConsensusResult{
		Symbol:            "BTCUSDT",
		Interval:          "1h",
		OverallBias:       models.Bullish,
		OverallConfidence: 72,
		Weights:           models.DefaultWeights(),
		Source:            "binance",
		Verdicts: []models.DomainVerdict{
			{
				Domain: models.DomainTechnical, Bias: models.Bullish, Confidence: 80,
				Rationale: "trend +100; RSI 68", IsLive: true,
				Findings: []models.Finding{
					{Pattern: "structure_break", Direction: models.Bullish, Strength: 75, TriggerPrice: 51000, Description: "close above swing high"},
				},
			},
			{
				Domain: models.DomainInstitutional, Bias: models.Bearish, Confidence: 40,
				Rationale: "move on fading volume", IsLive: false, DataAge: 90e9,
			},
		},
	}
}

func TestRender_Sections(t *testing.T) {
	out := Render(sampleResult())

	assert.Contains(t, out, "## BTCUSDT — BULLISH (1h)")
	assert.Contains(t, out, "**Confidence: 72/100**")
	assert.Contains(t, out, "### Domain verdicts")
	assert.Contains(t, out, "### Patterns")
	assert.Contains(t, out, "`structure_break`")
	assert.Contains(t, out, "### Scenarios")
	assert.Contains(t, out, "If price holds above 51000.00")
	assert.Contains(t, out, "derived, data age 1m30s")
}

func TestRender_NoFindingsOmitsSections(t *testing.T) {
	r := sampleResult()
	r.Verdicts[0].Findings = nil

	out := Render(r)
	assert.NotContains(t, out, "### Patterns")
	assert.NotContains(t, out, "### Scenarios")
}

func TestRender_Stable(t *testing.T) {
	r := sampleResult()
	assert.Equal(t, Render(r), Render(r), "pure transform")
	assert.True(t, strings.HasPrefix(Render(r), "## "))
}
