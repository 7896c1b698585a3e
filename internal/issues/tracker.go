// Package issues threads verification issues across pipeline iterations.
package issues

import (
	"time"

	"github.com/exigo-ai/exigo/internal/model"
)

// Tracker reconciles fresh verification reports with the open issues from
// the previous iteration. Two issues are the same logical issue across
// iterations when they share (requirement id, error type); set-level issues
// thread by error type alone.
type Tracker struct{}

// NewTracker creates a new tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Reconcile merges a fresh issue report into the previous open list.
//
// An issue present in both keeps its original id and created_at (the
// description and suggested fix are refreshed from the new report). An
// issue absent from the new report is considered resolved and archived,
// not deleted. hasCritical reports whether any open issue has a critical
// error type.
//
// Reconciling the same report twice yields identical open issues.
func (t *Tracker) Reconcile(previousOpen []model.VerificationIssue, newReport []model.VerificationIssue) (open, resolved []model.VerificationIssue, hasCritical bool) {
	prevByKey := make(map[issueKey]model.VerificationIssue, len(previousOpen))
	for _, iss := range previousOpen {
		prevByKey[keyOf(iss)] = iss
	}

	seen := make(map[issueKey]bool, len(newReport))
	for _, iss := range newReport {
		key := keyOf(iss)
		if seen[key] {
			continue // duplicate within one report
		}
		seen[key] = true

		if prev, ok := prevByKey[key]; ok {
			prev.Description = iss.Description
			prev.SuggestedFix = iss.SuggestedFix
			prev.Severity = iss.Severity
			open = append(open, prev)
		} else {
			if iss.ID == "" {
				iss.ID = model.NewIssueID()
			}
			if iss.CreatedAt.IsZero() {
				iss.CreatedAt = time.Now().UTC()
			}
			if iss.Severity == "" {
				iss.Severity = iss.ErrorType.DefaultSeverity()
			}
			open = append(open, iss)
		}

		if iss.ErrorType.IsCritical() {
			hasCritical = true
		}
	}

	// Anything previously open and not re-reported is resolved
	now := time.Now().UTC()
	for _, iss := range previousOpen {
		if !seen[keyOf(iss)] {
			iss.ResolvedAt = &now
			resolved = append(resolved, iss)
		}
	}

	return open, resolved, hasCritical
}

// OpenCritical counts open issues with a critical error type, optionally
// filtered to a single error type when errType is non-empty.
func OpenCritical(open []model.VerificationIssue, errType model.ErrorType) int {
	n := 0
	for _, iss := range open {
		if !iss.ErrorType.IsCritical() {
			continue
		}
		if errType != "" && iss.ErrorType != errType {
			continue
		}
		n++
	}
	return n
}

type issueKey struct {
	requirementID string
	errorType     model.ErrorType
}

func keyOf(iss model.VerificationIssue) issueKey {
	return issueKey{requirementID: iss.RequirementID, errorType: iss.ErrorType}
}
