package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/exigo-ai/exigo/internal/model"
)

// Default system prompts for the two agent roles. Callers may override
// them through configuration; overrides are passed through opaquely.

const defaultAnalyzerPrompt = `You are the Analyzer, a senior business analyst extracting business requirements from source documents.

Principles:
- Clarity: each requirement is a single, unambiguous statement.
- Completeness: cover every requirement the documents state or clearly imply.
- Consistency: no requirement contradicts another without a declared conflict.
- Verifiability: every confirmed requirement cites the exact source text that supports it.

Rules:
1. Every citation must quote the source verbatim ("quoted_text") and name the source document exactly as given ("source_document").
2. A candidate without a supporting quote goes into "hypotheses", never into "requirements".
3. Keep requirements atomic: decompose compound statements into separate requirements.
4. Preserve numbers, units, and conditions exactly as the source states them.

Always respond with a single valid JSON object and nothing else.`

const defaultVerifierPrompt = `You are the Verifier, an adversarial reviewer checking business requirements against their source documents.

For each requirement check:
1. Traceability: every citation's quoted text appears in the named document.
2. Semantic consistency: the requirement says what the cited text says, without added interpretation.
3. Atomicity: the requirement is a single requirement, not a fusion of several.
4. Numbers and conditions: values, units, thresholds, and conditions match the source exactly.
5. Schema: title, description, stakeholders, and acceptance criteria are present and meaningful.

Classify each finding with one error_type:
- citation_mismatch, source_missing, meaning_distortion, missing_evidence (critical errors)
- incomplete_citation, weak_evidence, ambiguous_context, missing_metadata (justification gaps)

Report only real defects. Always respond with a single valid JSON object and nothing else.`

// LoadPromptFile reads a system prompt from a file, stripping lines that
// start with '#' so prompt files can carry comments.
func LoadPromptFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// resolvePrompt picks the effective system prompt for a role: explicit
// config string, then prompt file, then the built-in default.
func resolvePrompt(inline, file, fallback string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if file != "" {
		return LoadPromptFile(file)
	}
	return fallback, nil
}

const draftResponseSchema = `Respond with JSON:
{
  "requirements": [
    {
      "id": "BR-...", "title": "...", "description": "...",
      "kind": "functional|non_functional|business_rule|constraint",
      "priority": "critical|high|medium|low",
      "citations": [{"quoted_text": "...", "source_document": "...", "section": "...", "page_number": 0, "line_number": 0, "surrounding_context": "..."}],
      "stakeholders": ["..."], "business_value": "...",
      "acceptance_criteria": [{"id": "AC-1", "description": "...", "is_testable": true}],
      "dependencies": [], "conflicts": [],
      "assumptions": [], "constraints": [], "tags": []
    }
  ],
  "hypotheses": [
    {"id": "HYP-...", "description": "...", "rationale": "...", "confidence_level": 0.5, "evidence_needed": ["..."]}
  ]
}`

const verifyResponseSchema = `Respond with JSON:
{
  "issues": [
    {
      "requirement_id": "BR-... or empty for set-level findings",
      "error_type": "citation_mismatch|source_missing|meaning_distortion|missing_evidence|incomplete_citation|weak_evidence|ambiguous_context|missing_metadata",
      "severity": "critical|medium|low",
      "description": "...",
      "suggested_fix": "..."
    }
  ],
  "coverage_estimate": 0.9
}
"coverage_estimate" is your estimate in [0,1] of how completely the requirements cover the documents; omit it if you cannot estimate.`

func buildDraftPrompt(documentsSection string) string {
	return fmt.Sprintf(`Extract all business requirements from the following documents.

%s

Separate confirmed requirements (with verbatim citations) from hypotheses (plausible but uncited). %s`, documentsSection, draftResponseSchema)
}

func buildRefinePrompt(requirements []model.BusinessRequirement, hypotheses []model.Hypothesis, documentsSection string) string {
	return fmt.Sprintf(`Improve this requirement draft against its source documents:
- find requirements the draft missed,
- split compound requirements into atomic ones,
- merge near-duplicates (keep one id, union the citations),
- promote a hypothesis to a requirement when you can cite evidence for it,
- complete missing citations, stakeholders, and acceptance criteria.

Current requirements:
%s

Current hypotheses:
%s

%s

Return the complete improved draft. %s`, mustJSON(requirements), mustJSON(hypotheses), documentsSection, draftResponseSchema)
}

func buildVerifyPrompt(requirements []model.BusinessRequirement, documentsSection string) string {
	return fmt.Sprintf(`Verify these requirements against their source documents.

Requirements:
%s

%s

%s`, mustJSON(requirements), documentsSection, verifyResponseSchema)
}

func buildResolvePrompt(requirements []model.BusinessRequirement, issues []model.VerificationIssue, documentsSection string) string {
	return fmt.Sprintf(`Fix these requirements so every reported issue is resolved. Revise content in place: keep ids stable, refresh citations from the source text, and do not invent new evidence.

Requirements:
%s

Open issues:
%s

%s

Respond with JSON: {"requirements": [ ...the full corrected list... ]}`, mustJSON(requirements), mustJSON(issues), documentsSection)
}

// formatDocuments renders the corpus with per-document separators so the
// agent can attribute citations, in stable name order.
func formatDocuments(documents map[string]string) string {
	names := make([]string, 0, len(documents))
	for name := range documents {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Source documents:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "\n--- Document: %s ---\n%s\n", name, documents[name])
	}
	return b.String()
}

func mustJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
