// Package agent abstracts the two LLM agent roles the pipeline
// orchestrates: the Analyzer, which drafts and refines requirements, and
// the Verifier, which checks them against source text.
package agent

import (
	"context"

	"github.com/exigo-ai/exigo/internal/model"
)

// DraftResult is the Analyzer's output for the draft and refine operations
type DraftResult struct {
	Requirements []model.BusinessRequirement
	Hypotheses   []model.Hypothesis

	// True when the document corpus was truncated to fit the token budget
	Truncated bool
}

// VerifyReport is the Verifier's output
type VerifyReport struct {
	Issues []model.VerificationIssue

	// RecallHint is the verifier's own coverage estimate in [0,1];
	// negative when the verifier supplied none
	RecallHint float64

	Truncated bool
}

// Gateway exposes the four agent operations the orchestrator calls, one
// per pipeline stage. The gateway is stateless between calls: all state
// the agent needs is passed explicitly each time, so every call is safe
// to retry. Implementations return structurally well-formed results or an
// *Error; structural validation against set invariants is the caller's
// job.
type Gateway interface {
	// DraftInitial extracts requirement candidates from the parsed
	// document texts (stage 1)
	DraftInitial(ctx context.Context, documents map[string]string) (*DraftResult, error)

	// Refine improves the draft: dedupe, decompose, promote hypotheses
	// with found evidence (stage 2)
	Refine(ctx context.Context, requirements []model.BusinessRequirement, hypotheses []model.Hypothesis, documents map[string]string) (*DraftResult, error)

	// Verify checks requirements against the source text and reports
	// issues (stage 3)
	Verify(ctx context.Context, requirements []model.BusinessRequirement, documents map[string]string) (*VerifyReport, error)

	// Resolve revises requirements to address the open issues (stage 5)
	Resolve(ctx context.Context, requirements []model.BusinessRequirement, issues []model.VerificationIssue, documents map[string]string) ([]model.BusinessRequirement, error)
}
