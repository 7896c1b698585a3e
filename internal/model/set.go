package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SetStatus is the processing status of a requirement set
type SetStatus string

const (
	StatusDraft      SetStatus = "draft"
	StatusInProgress SetStatus = "in_progress"
	StatusAccepted   SetStatus = "accepted"
	StatusRejected   SetStatus = "rejected"
	StatusFailed     SetStatus = "failed"
)

// Terminal reports whether the status ends a run
func (s SetStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusFailed
}

// Pipeline stage numbers (1..6)
const (
	StageDraft    = 1
	StageRefine   = 2
	StageVerify   = 3
	StageReview   = 4
	StageFix      = 5
	StageDecision = 6
)

// RequirementSet is the aggregate root for one pipeline run and the sole
// artifact returned to callers. It is exclusively owned by its run's
// orchestrator; nothing else mutates it.
type RequirementSet struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Requirements []BusinessRequirement `json:"requirements"`
	Hypotheses   []Hypothesis          `json:"hypotheses"`

	// Open issues from the most recent verification pass plus any
	// set-level validation issues; resolved issues move to ResolvedIssues.
	Issues         []VerificationIssue `json:"issues"`
	ResolvedIssues []VerificationIssue `json:"resolved_issues,omitempty"`

	Metrics *CoverageMetrics `json:"metrics,omitempty"`

	Stage          int       `json:"stage"` // 1..6
	IterationCount int       `json:"iteration_count"`
	Status         SetStatus `json:"status"`

	SourceDocuments []string `json:"source_documents"`

	// Input documents that failed to parse; excluded from SourceDocuments
	FailedDocuments []string `json:"failed_documents,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRequirementSet initializes an empty set for the given sources
func NewRequirementSet(name, description string, sourceDocuments []string) *RequirementSet {
	now := time.Now().UTC()
	return &RequirementSet{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     description,
		Requirements:    []BusinessRequirement{},
		Hypotheses:      []Hypothesis{},
		Issues:          []VerificationIssue{},
		Stage:           StageDraft,
		Status:          StatusDraft,
		SourceDocuments: sourceDocuments,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Touch refreshes the update timestamp
func (s *RequirementSet) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// SourceSet returns the source document names as a lookup set
func (s *RequirementSet) SourceSet() map[string]bool {
	set := make(map[string]bool, len(s.SourceDocuments))
	for _, name := range s.SourceDocuments {
		set[name] = true
	}
	return set
}

// ActiveRequirements returns the requirements that still count toward the
// set (not superseded by a merge).
func (s *RequirementSet) ActiveRequirements() []BusinessRequirement {
	active := make([]BusinessRequirement, 0, len(s.Requirements))
	for _, r := range s.Requirements {
		if r.Active() {
			active = append(active, r)
		}
	}
	return active
}

// RequirementIDs returns the ids of all requirements in the set, including
// superseded ones (their ids stay reserved for audit).
func (s *RequirementSet) RequirementIDs() map[string]bool {
	ids := make(map[string]bool, len(s.Requirements))
	for _, r := range s.Requirements {
		ids[r.ID] = true
	}
	return ids
}

// InstallRequirements replaces the requirement list with refreshed agent
// output while enforcing the lifecycle rule: a requirement already in the
// set is never deleted. A refreshed entry with a known id updates that
// requirement in place (keeping its original CreatedAt). A previous
// requirement absent from the output is folded into a same-titled
// survivor via MergeFrom and kept as a superseded tombstone; when no
// survivor matches it stays active so the verifier can judge it.
func (s *RequirementSet) InstallRequirements(refreshed []BusinessRequirement) {
	if len(s.Requirements) == 0 {
		s.Requirements = refreshed
		return
	}

	byID := make(map[string]int, len(refreshed))
	byTitle := make(map[string]int, len(refreshed))
	for i, r := range refreshed {
		byID[r.ID] = i
		if key := normalizeTitle(r.Title); key != "" {
			byTitle[key] = i
		}
	}

	next := make([]BusinessRequirement, 0, len(s.Requirements)+len(refreshed))
	replaced := make(map[int]bool, len(refreshed))
	for _, prev := range s.Requirements {
		if !prev.Active() {
			// tombstones stay for audit
			next = append(next, prev)
			continue
		}
		if i, ok := byID[prev.ID]; ok {
			fresh := refreshed[i]
			if fresh.CreatedAt.IsZero() || prev.CreatedAt.Before(fresh.CreatedAt) {
				fresh.CreatedAt = prev.CreatedAt
			}
			next = append(next, fresh)
			replaced[i] = true
			continue
		}
		if i, ok := byTitle[normalizeTitle(prev.Title)]; ok {
			refreshed[i].MergeFrom(&prev)
			prev.SupersededBy = refreshed[i].ID
			prev.UpdatedAt = time.Now().UTC()
			next = append(next, prev)
			continue
		}
		next = append(next, prev)
	}
	for i, r := range refreshed {
		if !replaced[i] {
			next = append(next, r)
		}
	}
	s.Requirements = next
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// DropUncitedHypotheses removes hypotheses before the decision stage; a
// hypothesis that never gained evidence does not enter the final set.
func (s *RequirementSet) DropUncitedHypotheses() int {
	dropped := len(s.Hypotheses)
	s.Hypotheses = []Hypothesis{}
	return dropped
}
