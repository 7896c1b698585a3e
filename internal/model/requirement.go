package model

import (
	"time"

	"github.com/google/uuid"
)

// RequirementKind categorizes the nature of a business requirement
type RequirementKind string

const (
	KindFunctional    RequirementKind = "functional"
	KindNonFunctional RequirementKind = "non_functional"
	KindBusinessRule  RequirementKind = "business_rule"
	KindConstraint    RequirementKind = "constraint"
)

// Priority is the requirement priority level
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Citation is a direct quote from a source document backing a requirement.
// SourceDocument must name one of the documents supplied as pipeline input;
// the validate package enforces this.
type Citation struct {
	QuotedText         string `json:"quoted_text"`
	SourceDocument     string `json:"source_document"`
	Section            string `json:"section,omitempty"`
	PageNumber         int    `json:"page_number,omitempty"`
	LineNumber         int    `json:"line_number,omitempty"`
	SurroundingContext string `json:"surrounding_context,omitempty"`
}

// AcceptanceCriterion describes one testable condition for a requirement
type AcceptanceCriterion struct {
	ID          string `json:"id"` // unique within its requirement
	Description string `json:"description"`
	IsTestable  bool   `json:"is_testable"`
}

// BusinessRequirement is a single extracted requirement with full traceability.
// Requirements are created in the drafting stage and mutated in place by the
// refine and fix stages; once confirmed they are never deleted, only merged
// into a near-duplicate (SupersededBy set) during refinement.
type BusinessRequirement struct {
	ID          string          `json:"id"` // globally unique within a set
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Kind        RequirementKind `json:"kind"`
	Priority    Priority        `json:"priority"`

	// Traceability
	Citations []Citation `json:"citations"`

	// Stakeholders and value
	Stakeholders  []string `json:"stakeholders"`
	BusinessValue string   `json:"business_value,omitempty"`

	AcceptanceCriteria []AcceptanceCriterion `json:"acceptance_criteria"`

	// IDs of related requirements in the same set
	Dependencies []string `json:"dependencies,omitempty"`
	Conflicts    []string `json:"conflicts,omitempty"`

	Assumptions []string `json:"assumptions,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// Set when this requirement was merged into a near-duplicate
	SupersededBy string `json:"superseded_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the requirement still counts toward the set
// (not merged away).
func (r *BusinessRequirement) Active() bool {
	return r.SupersededBy == ""
}

// HasMatchingCitation reports whether at least one citation references a
// document in the given source set.
func (r *BusinessRequirement) HasMatchingCitation(sources map[string]bool) bool {
	for _, c := range r.Citations {
		if sources[c.SourceDocument] {
			return true
		}
	}
	return false
}

// MergeFrom folds a near-duplicate into this requirement: citations are
// unioned (deduplicated by quoted text + document) and the earliest
// CreatedAt is preserved. The caller marks dup superseded.
func (r *BusinessRequirement) MergeFrom(dup *BusinessRequirement) {
	seen := make(map[string]bool, len(r.Citations))
	for _, c := range r.Citations {
		seen[c.SourceDocument+"\x00"+c.QuotedText] = true
	}
	for _, c := range dup.Citations {
		key := c.SourceDocument + "\x00" + c.QuotedText
		if !seen[key] {
			seen[key] = true
			r.Citations = append(r.Citations, c)
		}
	}
	if dup.CreatedAt.Before(r.CreatedAt) {
		r.CreatedAt = dup.CreatedAt
	}
	r.UpdatedAt = time.Now().UTC()
}

// Hypothesis is a requirement-shaped candidate lacking a direct citation.
// It may be promoted to a BusinessRequirement once evidence is found,
// otherwise it is dropped before the final decision stage.
type Hypothesis struct {
	ID              string    `json:"id"`
	Description     string    `json:"description"`
	Rationale       string    `json:"rationale,omitempty"`
	ConfidenceLevel float64   `json:"confidence_level"` // 0-1
	EvidenceNeeded  []string  `json:"evidence_needed,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewRequirementID returns a fresh requirement identifier
func NewRequirementID() string {
	return "BR-" + uuid.NewString()[:8]
}

// NewHypothesisID returns a fresh hypothesis identifier
func NewHypothesisID() string {
	return "HYP-" + uuid.NewString()[:8]
}
