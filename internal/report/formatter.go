package report

import (
	"fmt"
	"strings"

	"github.com/zikalyze/core/pkg/models"
)

// Render turns a consensus result into the markdown report shown to
// users. Pure transform: no I/O, no clock, stable section order.
func Render(result *models.ConsensusResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s — %s (%s)\n\n", result.Symbol, strings.ToUpper(string(result.OverallBias)), result.Interval)
	fmt.Fprintf(&b, "**Confidence: %.0f/100** · source: %s\n\n", result.OverallConfidence, result.Source)

	b.WriteString("### Domain verdicts\n\n")
	for _, v := range result.Verdicts {
		liveness := ""
		if !v.IsLive {
			liveness = fmt.Sprintf(" _(derived, data age %s)_", v.DataAge.Round(1e9))
		}
		fmt.Fprintf(&b, "- **%s** (weight %.0f%%): %s, %.0f/100%s — %s\n",
			v.Domain, result.Weights.Of(v.Domain)*100, v.Bias, v.Confidence, liveness, v.Rationale)
	}

	if findings := collectFindings(result); len(findings) > 0 {
		b.WriteString("\n### Patterns\n\n")
		for _, f := range findings {
			fmt.Fprintf(&b, "- `%s` (%s, %.0f): %s\n", f.Pattern, f.Direction, f.Strength, f.Description)
		}
	}

	if scenarios := buildScenarios(result); len(scenarios) > 0 {
		b.WriteString("\n### Scenarios\n\n")
		for _, s := range scenarios {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	return b.String()
}

// collectFindings flattens per-domain findings preserving each
// domain's strength ordering.
func collectFindings(result *models.ConsensusResult) []models.Finding {
	var out []models.Finding
	for _, v := range result.Verdicts {
		out = append(out, v.Findings...)
	}
	return out
}

// buildScenarios derives If/Then suggestions from the support and
// resistance trigger prices in the findings.
func buildScenarios(result *models.ConsensusResult) []string {
	var out []string
	seen := map[string]bool{}

	for _, f := range collectFindings(result) {
		if f.TriggerPrice <= 0 {
			continue
		}
		var s string
		switch f.Direction {
		case models.Bullish:
			s = fmt.Sprintf("If price holds above %.2f, the %s signal stays valid; a close below invalidates it.", f.TriggerPrice, f.Pattern)
		case models.Bearish:
			s = fmt.Sprintf("If price stays below %.2f, the %s signal stays valid; a close above invalidates it.", f.TriggerPrice, f.Pattern)
		default:
			continue
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
