package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/exigo-ai/exigo/internal/model"
)

// Renderer produces the final report for a requirement set.
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON returns the requirement set as indented JSON.
func (r *Renderer) RenderJSON(set *model.RequirementSet) (string, error) {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal requirement set: %w", err)
	}
	return string(data), nil
}

// RenderMarkdown returns a human-readable report.
func (r *Renderer) RenderMarkdown(set *model.RequirementSet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", set.Name)
	if set.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", set.Description)
	}
	fmt.Fprintf(&b, "**Status:** %s after %d iteration(s)\n\n", set.Status, set.IterationCount)

	if set.Metrics != nil {
		m := set.Metrics
		b.WriteString("## Coverage\n\n")
		b.WriteString("| Metric | Value |\n|---|---|\n")
		fmt.Fprintf(&b, "| Requirements | %d |\n", m.TotalRequirements)
		fmt.Fprintf(&b, "| Traceability | %.2f |\n", m.TraceabilityScore)
		fmt.Fprintf(&b, "| Completion | %.2f |\n", m.CompletionRate)
		fmt.Fprintf(&b, "| Precision | %.2f |\n", m.Precision)
		fmt.Fprintf(&b, "| Recall (approx.) | %.2f |\n", m.Recall)
		fmt.Fprintf(&b, "| Misinterpretation | %.2f |\n\n", m.MisinterpretationRate)
	}

	active := set.ActiveRequirements()
	byPriority := map[model.Priority][]model.BusinessRequirement{}
	for _, req := range active {
		byPriority[req.Priority] = append(byPriority[req.Priority], req)
	}
	b.WriteString("## Requirements\n\n")
	for _, prio := range []model.Priority{model.PriorityCritical, model.PriorityHigh, model.PriorityMedium, model.PriorityLow} {
		reqs := byPriority[prio]
		if len(reqs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", capitalize(string(prio)))
		for _, req := range reqs {
			r.renderRequirement(&b, req)
		}
	}

	if len(set.Hypotheses) > 0 {
		b.WriteString("## Hypotheses\n\n")
		b.WriteString("Unconfirmed candidates that need evidence before promotion.\n\n")
		for _, h := range set.Hypotheses {
			fmt.Fprintf(&b, "- **%s** (confidence %.2f): %s\n", h.ID, h.ConfidenceLevel, h.Description)
		}
		b.WriteString("\n")
	}

	if len(set.Issues) > 0 {
		b.WriteString("## Open Issues\n\n")
		for _, iss := range set.Issues {
			target := iss.RequirementID
			if target == "" {
				target = "set"
			}
			fmt.Fprintf(&b, "- [%s/%s] %s: %s\n", iss.ErrorType, iss.Severity, target, iss.Description)
		}
		b.WriteString("\n")
	}

	if len(set.FailedDocuments) > 0 {
		b.WriteString("## Unreadable Sources\n\n")
		failed := append([]string{}, set.FailedDocuments...)
		sort.Strings(failed)
		for _, doc := range failed {
			fmt.Fprintf(&b, "- %s\n", doc)
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		fmt.Fprintf(&b, "---\n\nGenerated by exigo from %d source document(s) on %s.\n",
			len(set.SourceDocuments), set.UpdatedAt.Format("2006-01-02"))
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (r *Renderer) renderRequirement(b *strings.Builder, req model.BusinessRequirement) {
	fmt.Fprintf(b, "#### %s: %s\n\n", req.ID, req.Title)
	fmt.Fprintf(b, "%s\n\n", req.Description)
	fmt.Fprintf(b, "- Kind: %s\n", req.Kind)
	if req.BusinessValue != "" {
		fmt.Fprintf(b, "- Business value: %s\n", req.BusinessValue)
	}
	if len(req.Stakeholders) > 0 {
		fmt.Fprintf(b, "- Stakeholders: %s\n", strings.Join(req.Stakeholders, ", "))
	}
	if len(req.Dependencies) > 0 {
		fmt.Fprintf(b, "- Depends on: %s\n", strings.Join(req.Dependencies, ", "))
	}
	if len(req.Conflicts) > 0 {
		fmt.Fprintf(b, "- Conflicts with: %s\n", strings.Join(req.Conflicts, ", "))
	}
	for _, c := range req.Citations {
		loc := c.SourceDocument
		if c.Section != "" {
			loc += ", " + c.Section
		}
		if c.PageNumber > 0 {
			loc += fmt.Sprintf(", p.%d", c.PageNumber)
		}
		fmt.Fprintf(b, "- Citation (%s): %q\n", loc, c.QuotedText)
	}
	for _, ac := range req.AcceptanceCriteria {
		marker := " "
		if ac.IsTestable {
			marker = "T"
		}
		fmt.Fprintf(b, "- [%s] %s\n", marker, ac.Description)
	}
	b.WriteString("\n")
}
