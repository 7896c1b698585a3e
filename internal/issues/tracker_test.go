package issues

import (
	"testing"
	"time"

	"github.com/exigo-ai/exigo/internal/model"
)

func issue(reqID string, errType model.ErrorType, description string) model.VerificationIssue {
	return model.VerificationIssue{
		ID:            model.NewIssueID(),
		RequirementID: reqID,
		ErrorType:     errType,
		Severity:      errType.DefaultSeverity(),
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestTracker_PersistentIssueKeepsIdentity(t *testing.T) {
	tracker := NewTracker()

	first := issue("BR-1", model.ErrorCitationMismatch, "quote does not match")
	open, resolved, hasCritical := tracker.Reconcile(nil, []model.VerificationIssue{first})
	if len(open) != 1 || len(resolved) != 0 {
		t.Fatalf("expected 1 open, 0 resolved, got %d/%d", len(open), len(resolved))
	}
	if !hasCritical {
		t.Error("citation_mismatch should be critical")
	}

	// Same logical issue re-reported with new wording and a fresh id.
	again := issue("BR-1", model.ErrorCitationMismatch, "quote still wrong")
	open2, resolved2, _ := tracker.Reconcile(open, []model.VerificationIssue{again})
	if len(open2) != 1 || len(resolved2) != 0 {
		t.Fatalf("expected 1 open, 0 resolved, got %d/%d", len(open2), len(resolved2))
	}
	if open2[0].ID != open[0].ID {
		t.Errorf("re-reported issue must keep its original id: got %s, want %s", open2[0].ID, open[0].ID)
	}
	if !open2[0].CreatedAt.Equal(open[0].CreatedAt) {
		t.Error("re-reported issue must keep its original created_at")
	}
	if open2[0].Description != "quote still wrong" {
		t.Errorf("description should refresh from the new report, got %q", open2[0].Description)
	}
}

func TestTracker_AbsentIssueIsArchived(t *testing.T) {
	tracker := NewTracker()

	stale := issue("BR-1", model.ErrorSourceMissing, "document not in corpus")
	fresh := issue("BR-2", model.ErrorWeakEvidence, "single vague citation")

	open, resolved, hasCritical := tracker.Reconcile(
		[]model.VerificationIssue{stale},
		[]model.VerificationIssue{fresh},
	)

	if len(open) != 1 || open[0].RequirementID != "BR-2" {
		t.Fatalf("expected only the fresh issue open, got %+v", open)
	}
	if len(resolved) != 1 || resolved[0].ID != stale.ID {
		t.Fatalf("expected the stale issue archived, got %+v", resolved)
	}
	if resolved[0].ResolvedAt == nil {
		t.Error("archived issue must carry resolved_at")
	}
	if hasCritical {
		t.Error("weak_evidence alone is not critical")
	}
}

func TestTracker_ReconcileIsIdempotent(t *testing.T) {
	tracker := NewTracker()

	report := []model.VerificationIssue{
		issue("BR-1", model.ErrorMissingEvidence, "no citations"),
		issue("", model.ErrorMissingMetadata, "truncated corpus"),
	}

	open1, _, _ := tracker.Reconcile(nil, report)
	open2, resolved, _ := tracker.Reconcile(open1, report)

	if len(resolved) != 0 {
		t.Fatalf("re-applying the same report must resolve nothing, got %d", len(resolved))
	}
	if len(open2) != len(open1) {
		t.Fatalf("open count changed: %d vs %d", len(open2), len(open1))
	}
	for i := range open1 {
		if open2[i].ID != open1[i].ID {
			t.Errorf("issue %d changed identity: %s vs %s", i, open2[i].ID, open1[i].ID)
		}
	}
}

func TestTracker_DuplicatesWithinReportCollapse(t *testing.T) {
	tracker := NewTracker()

	report := []model.VerificationIssue{
		issue("BR-1", model.ErrorAmbiguousContext, "first wording"),
		issue("BR-1", model.ErrorAmbiguousContext, "second wording"),
	}

	open, _, _ := tracker.Reconcile(nil, report)
	if len(open) != 1 {
		t.Fatalf("expected duplicates collapsed to 1, got %d", len(open))
	}
}

func TestTracker_SetLevelThreadsByErrorType(t *testing.T) {
	tracker := NewTracker()

	first := issue("", model.ErrorMissingMetadata, "agent item excluded")
	open, _, _ := tracker.Reconcile(nil, []model.VerificationIssue{first})

	second := issue("", model.ErrorMissingMetadata, "another exclusion")
	open2, resolved, _ := tracker.Reconcile(open, []model.VerificationIssue{second})

	if len(open2) != 1 || len(resolved) != 0 {
		t.Fatalf("set-level issues of one type must thread together, got %d open %d resolved", len(open2), len(resolved))
	}
	if open2[0].ID != open[0].ID {
		t.Error("threaded set-level issue must keep its id")
	}
}

func TestOpenCritical(t *testing.T) {
	open := []model.VerificationIssue{
		issue("BR-1", model.ErrorCitationMismatch, ""),
		issue("BR-2", model.ErrorMeaningDistortion, ""),
		issue("BR-3", model.ErrorWeakEvidence, ""),
	}

	if got := OpenCritical(open, ""); got != 2 {
		t.Errorf("expected 2 critical, got %d", got)
	}
	if got := OpenCritical(open, model.ErrorMeaningDistortion); got != 1 {
		t.Errorf("expected 1 distortion, got %d", got)
	}
}
