// Package metrics derives coverage and quality scores from a requirement
// set and its open issue list.
package metrics

import (
	"github.com/exigo-ai/exigo/internal/model"
)

// Calculator computes CoverageMetrics after each verification pass
type Calculator struct{}

// NewCalculator creates a new calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Compute derives the metric set from the active requirements and the
// currently open issues. recallHint is the Verifier's own coverage
// estimate; pass a negative value when the verifier supplied none, in
// which case recall falls back to precision * traceability_score, a
// conservative proxy rather than a statistically sound estimate.
//
// Every ratio over zero requirements is 0.0.
func (c *Calculator) Compute(set *model.RequirementSet, openIssues []model.VerificationIssue, recallHint float64) model.CoverageMetrics {
	reqs := set.ActiveRequirements()
	total := len(reqs)

	m := model.CoverageMetrics{TotalRequirements: total}
	if total == 0 {
		return m
	}

	sources := set.SourceSet()
	criticalByReq := make(map[string]int)
	distortions := 0
	for _, iss := range openIssues {
		if !iss.ErrorType.IsCritical() {
			continue
		}
		if iss.RequirementID != "" {
			criticalByReq[iss.RequirementID]++
		}
		if iss.ErrorType == model.ErrorMeaningDistortion {
			distortions++
		}
	}

	traced, complete, clean := 0, 0, 0
	for _, r := range reqs {
		if r.HasMatchingCitation(sources) {
			traced++
		}
		if len(r.AcceptanceCriteria) > 0 && len(r.Stakeholders) > 0 {
			complete++
		}
		if criticalByReq[r.ID] == 0 {
			clean++
		}
	}

	n := float64(total)
	m.TraceabilityScore = float64(traced) / n
	m.CompletionRate = float64(complete) / n
	m.Precision = float64(clean) / n
	m.MisinterpretationRate = clamp01(float64(distortions) / n)

	if recallHint >= 0 {
		m.Recall = clamp01(recallHint)
	} else {
		m.Recall = m.Precision * m.TraceabilityScore
	}

	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
