package model

import (
	"time"

	"github.com/google/uuid"
)

// ErrorType classifies a verification issue
type ErrorType string

const (
	// Critical error types: factual defects in the requirement itself
	ErrorCitationMismatch  ErrorType = "citation_mismatch"
	ErrorSourceMissing     ErrorType = "source_missing"
	ErrorMeaningDistortion ErrorType = "meaning_distortion"
	ErrorMissingEvidence   ErrorType = "missing_evidence"

	// Justification gaps: citation quality problems, not factual errors
	ErrorIncompleteCitation ErrorType = "incomplete_citation"
	ErrorWeakEvidence       ErrorType = "weak_evidence"
	ErrorAmbiguousContext   ErrorType = "ambiguous_context"
	ErrorMissingMetadata    ErrorType = "missing_metadata"
)

// Severity indicates issue importance
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IsCritical reports whether the error type is classified as critical
// rather than a justification gap.
func (t ErrorType) IsCritical() bool {
	switch t {
	case ErrorCitationMismatch, ErrorSourceMissing, ErrorMeaningDistortion, ErrorMissingEvidence:
		return true
	}
	return false
}

// DefaultSeverity maps an error type to its severity class
func (t ErrorType) DefaultSeverity() Severity {
	if t.IsCritical() {
		return SeverityCritical
	}
	return SeverityMedium
}

// VerificationIssue is a defect reported by the Verifier against one
// requirement, or against the set as a whole when RequirementID is empty.
type VerificationIssue struct {
	ID            string    `json:"id"`
	RequirementID string    `json:"requirement_id,omitempty"` // empty: set-level issue
	ErrorType     ErrorType `json:"error_type"`
	Severity      Severity  `json:"severity"`
	Description   string    `json:"description"`
	SuggestedFix  string    `json:"suggested_fix,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	// Set when the issue stopped appearing in verification reports
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// SetLevel reports whether the issue applies to the whole set
func (i *VerificationIssue) SetLevel() bool {
	return i.RequirementID == ""
}

// NewIssueID returns a fresh issue identifier
func NewIssueID() string {
	return "ISS-" + uuid.NewString()[:8]
}

// NewSetLevelIssue builds a set-level issue for a structural validation
// failure, so excluded items remain visible in the final report.
func NewSetLevelIssue(errorType ErrorType, description string) VerificationIssue {
	return VerificationIssue{
		ID:          NewIssueID(),
		ErrorType:   errorType,
		Severity:    errorType.DefaultSeverity(),
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}
