package agent

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/exigo-ai/exigo/internal/model"
)

// Wire payloads for the four operations. Field names mirror the model's
// JSON tags so agent output decodes straight into the domain types.

type draftPayload struct {
	Requirements []model.BusinessRequirement `json:"requirements"`
	Hypotheses   []model.Hypothesis          `json:"hypotheses"`
}

type verifyPayload struct {
	Issues []model.VerificationIssue `json:"issues"`

	// The verifier's own coverage estimate; nil when not supplied
	CoverageEstimate *float64 `json:"coverage_estimate,omitempty"`
}

type resolvePayload struct {
	Requirements []model.BusinessRequirement `json:"requirements"`
}

func decodeDraft(op, content string) (*DraftResult, error) {
	var payload draftPayload
	if err := decodeJSON(content, &payload); err != nil {
		return nil, &Error{Kind: ErrMalformedOutput, Op: op, Err: err}
	}

	now := time.Now().UTC()
	for i := range payload.Requirements {
		fillRequirementDefaults(&payload.Requirements[i], now)
	}
	for i := range payload.Hypotheses {
		if payload.Hypotheses[i].ID == "" {
			payload.Hypotheses[i].ID = model.NewHypothesisID()
		}
		if payload.Hypotheses[i].CreatedAt.IsZero() {
			payload.Hypotheses[i].CreatedAt = now
		}
	}

	return &DraftResult{
		Requirements: payload.Requirements,
		Hypotheses:   payload.Hypotheses,
	}, nil
}

func decodeVerify(op, content string) (*VerifyReport, error) {
	var payload verifyPayload
	if err := decodeJSON(content, &payload); err != nil {
		return nil, &Error{Kind: ErrMalformedOutput, Op: op, Err: err}
	}

	now := time.Now().UTC()
	for i := range payload.Issues {
		iss := &payload.Issues[i]
		if iss.ID == "" {
			iss.ID = model.NewIssueID()
		}
		if iss.Severity == "" {
			iss.Severity = iss.ErrorType.DefaultSeverity()
		}
		if iss.CreatedAt.IsZero() {
			iss.CreatedAt = now
		}
	}

	recall := -1.0
	if payload.CoverageEstimate != nil {
		recall = *payload.CoverageEstimate
	}

	return &VerifyReport{Issues: payload.Issues, RecallHint: recall}, nil
}

func decodeResolve(op, content string) ([]model.BusinessRequirement, error) {
	var payload resolvePayload
	if err := decodeJSON(content, &payload); err != nil {
		return nil, &Error{Kind: ErrMalformedOutput, Op: op, Err: err}
	}

	now := time.Now().UTC()
	for i := range payload.Requirements {
		fillRequirementDefaults(&payload.Requirements[i], now)
		payload.Requirements[i].UpdatedAt = now
	}
	return payload.Requirements, nil
}

func fillRequirementDefaults(r *model.BusinessRequirement, now time.Time) {
	if r.ID == "" {
		r.ID = model.NewRequirementID()
	}
	if r.Kind == "" {
		r.Kind = model.KindFunctional
	}
	if r.Priority == "" {
		r.Priority = model.PriorityMedium
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
}

// decodeJSON parses a model response, tolerating markdown code fences
// some models wrap around JSON despite instructions.
func decodeJSON(content string, v interface{}) error {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	return json.Unmarshal([]byte(trimmed), v)
}
