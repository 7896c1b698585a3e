package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/exigo-ai/exigo/internal/model"
)

func TestDecodeDraft_FillsDefaults(t *testing.T) {
	content := `{
		"requirements": [
			{"title": "Login required", "description": "Users must sign in",
			 "citations": [{"quoted_text": "must sign in", "source_document": "brief.md"}]}
		],
		"hypotheses": [
			{"description": "SSO may be needed", "confidence_level": 0.4}
		]
	}`

	result, err := decodeDraft("draft", content)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Requirements) != 1 || len(result.Hypotheses) != 1 {
		t.Fatalf("unexpected counts: %d/%d", len(result.Requirements), len(result.Hypotheses))
	}

	r := result.Requirements[0]
	if r.ID == "" {
		t.Error("missing id must be generated")
	}
	if r.Kind != model.KindFunctional {
		t.Errorf("missing kind must default to functional, got %s", r.Kind)
	}
	if r.Priority != model.PriorityMedium {
		t.Errorf("missing priority must default to medium, got %s", r.Priority)
	}
	if r.CreatedAt.IsZero() || r.UpdatedAt.IsZero() {
		t.Error("timestamps must be set")
	}
	if result.Hypotheses[0].ID == "" {
		t.Error("hypothesis id must be generated")
	}
}

func TestDecodeDraft_MarkdownFences(t *testing.T) {
	content := "```json\n{\"requirements\": [], \"hypotheses\": []}\n```"
	if _, err := decodeDraft("draft", content); err != nil {
		t.Fatalf("fenced JSON must decode, got %v", err)
	}
}

func TestDecodeDraft_MalformedOutput(t *testing.T) {
	_, err := decodeDraft("draft", "I could not produce JSON, sorry.")
	agentErr, ok := IsAgentError(err)
	if !ok {
		t.Fatalf("expected an agent error, got %v", err)
	}
	if agentErr.Kind != ErrMalformedOutput {
		t.Errorf("expected malformed_output, got %s", agentErr.Kind)
	}
	if agentErr.Op != "draft" {
		t.Errorf("expected op draft, got %s", agentErr.Op)
	}
}

func TestDecodeVerify_CoverageEstimate(t *testing.T) {
	report, err := decodeVerify("verify", `{
		"issues": [
			{"requirement_id": "BR-1", "error_type": "citation_mismatch", "description": "quote differs"}
		],
		"coverage_estimate": 0.85
	}`)
	if err != nil {
		t.Fatal(err)
	}
	if report.RecallHint != 0.85 {
		t.Errorf("expected recall hint 0.85, got %f", report.RecallHint)
	}
	iss := report.Issues[0]
	if iss.ID == "" || iss.CreatedAt.IsZero() {
		t.Error("issue defaults must be filled")
	}
	if iss.Severity != model.SeverityCritical {
		t.Errorf("citation_mismatch defaults to critical severity, got %s", iss.Severity)
	}
}

func TestDecodeVerify_MissingEstimateIsNegative(t *testing.T) {
	report, err := decodeVerify("verify", `{"issues": []}`)
	if err != nil {
		t.Fatal(err)
	}
	if report.RecallHint >= 0 {
		t.Errorf("absent estimate must be negative, got %f", report.RecallHint)
	}
}

func TestDecodeResolve(t *testing.T) {
	reqs, err := decodeResolve("resolve", `{"requirements": [{"id": "BR-1", "title": "kept"}]}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 1 || reqs[0].ID != "BR-1" {
		t.Fatalf("unexpected requirements: %+v", reqs)
	}
	if reqs[0].UpdatedAt.IsZero() {
		t.Error("resolve must refresh updated_at")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{fmt.Errorf("call: %w", context.DeadlineExceeded), ErrTimeout},
		{errors.New("upstream said: rate limit exceeded"), ErrRateLimited},
		{errors.New("connection reset by peer"), ErrTransport},
	}
	for _, tc := range cases {
		got := classify("verify", tc.err)
		if got.Kind != tc.want {
			t.Errorf("classify(%v) = %s, want %s", tc.err, got.Kind, tc.want)
		}
		if got.Op != "verify" {
			t.Errorf("expected op preserved, got %s", got.Op)
		}
	}
}
