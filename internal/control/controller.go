// Package control decides whether the verification loop continues,
// accepts, or rejects.
package control

import "github.com/exigo-ai/exigo/internal/model"

// Decision is the outcome of one verification+reconcile cycle
type Decision int

const (
	// Continue loops back into the fix stage
	Continue Decision = iota
	// Accept terminates the run with an accepted set
	Accept
	// Reject terminates the run after exhausting the iteration budget
	Reject
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "continue"
	}
}

// Controller tracks the clean-pass streak for one pipeline run.
//
// Acceptance requires a streak of clean verification passes, not a single
// lucky pass, to dampen noise from a probabilistic verifier: the streak
// resets to zero whenever a pass leaves a critical issue open or the
// completion rate drops below 1.0.
type Controller struct {
	maxIterations        int
	acceptanceThreshold  int
	consecutiveCleanRuns int
}

// NewController creates a controller with the configured bounds. The
// bounds are clamped to max_iterations 1-10 and acceptance_threshold 1-5.
func NewController(cfg model.PipelineConfig) *Controller {
	cfg.Normalize()
	return &Controller{
		maxIterations:       cfg.MaxIterations,
		acceptanceThreshold: cfg.AcceptanceThreshold,
	}
}

// Observe records the outcome of a verification pass and returns the
// decision for the current iteration count.
func (c *Controller) Observe(iterationCount int, hasCritical bool, completionRate float64) Decision {
	if !hasCritical && completionRate >= 1.0 {
		c.consecutiveCleanRuns++
	} else {
		c.consecutiveCleanRuns = 0
	}

	if c.consecutiveCleanRuns >= c.acceptanceThreshold {
		return Accept
	}
	if iterationCount >= c.maxIterations {
		return Reject
	}
	return Continue
}

// CleanStreak returns the current consecutive clean-pass count
func (c *Controller) CleanStreak() int {
	return c.consecutiveCleanRuns
}

// MaxIterations returns the clamped iteration budget
func (c *Controller) MaxIterations() int {
	return c.maxIterations
}
