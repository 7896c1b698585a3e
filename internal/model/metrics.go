package model

// CoverageMetrics holds the quality scores computed after each verification
// pass. All ratio fields are in [0,1]; with zero requirements every ratio
// is defined as 0.0.
//
// Recall is an estimate, not ground truth: no oracle of "all true
// requirements" exists, so the value is either the Verifier's own coverage
// estimate or a conservative proxy derived from precision and traceability.
// Callers must treat it as approximate.
type CoverageMetrics struct {
	TotalRequirements     int     `json:"total_requirements"`
	Recall                float64 `json:"recall"`
	Precision             float64 `json:"precision"`
	TraceabilityScore     float64 `json:"traceability_score"`
	CompletionRate        float64 `json:"completion_rate"`
	MisinterpretationRate float64 `json:"misinterpretation_rate"`
}
