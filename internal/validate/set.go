// Package validate checks agent output against the requirement-set
// invariants. Malformed items are excluded from the set and reported as
// set-level verification issues; they are never silently dropped.
package validate

import (
	"fmt"

	"github.com/exigo-ai/exigo/internal/model"
)

// Result carries the surviving items plus one set-level issue per
// excluded item.
type Result struct {
	Requirements []model.BusinessRequirement
	Issues       []model.VerificationIssue
}

// Requirements validates a requirement list returned by an agent call.
// A requirement is excluded when:
//   - its id is empty or duplicates an earlier requirement's id
//   - a citation references a document outside sourceDocuments
//   - it lists itself as a dependency or conflict
//
// Dependency/conflict references to unknown ids are pruned from the
// requirement (reported as an issue) rather than excluding it, since the
// target may simply have been excluded in the same pass.
func Requirements(reqs []model.BusinessRequirement, sourceDocuments []string) Result {
	sources := make(map[string]bool, len(sourceDocuments))
	for _, name := range sourceDocuments {
		sources[name] = true
	}

	ids := make(map[string]bool, len(reqs))
	var kept []model.BusinessRequirement
	var issues []model.VerificationIssue

	for _, r := range reqs {
		if r.ID == "" {
			issues = append(issues, model.NewSetLevelIssue(model.ErrorMissingMetadata,
				fmt.Sprintf("requirement %q excluded: empty id", r.Title)))
			continue
		}
		if ids[r.ID] {
			issues = append(issues, model.NewSetLevelIssue(model.ErrorMissingMetadata,
				fmt.Sprintf("requirement %s excluded: duplicate id", r.ID)))
			continue
		}
		if issue, ok := checkCitations(&r, sources); !ok {
			issues = append(issues, issue)
			continue
		}
		if selfRef(&r) {
			issues = append(issues, model.NewSetLevelIssue(model.ErrorMissingMetadata,
				fmt.Sprintf("requirement %s excluded: references itself", r.ID)))
			continue
		}
		ids[r.ID] = true
		kept = append(kept, r)
	}

	// Prune dangling relationship ids now that the surviving id set is known
	for i := range kept {
		kept[i].Dependencies, issues = pruneRefs(kept[i].ID, "dependency", kept[i].Dependencies, ids, issues)
		kept[i].Conflicts, issues = pruneRefs(kept[i].ID, "conflict", kept[i].Conflicts, ids, issues)
	}

	return Result{Requirements: kept, Issues: issues}
}

// Issues validates a verification report against the current requirement
// ids. An issue pointing at a nonexistent requirement is excluded and
// replaced by a set-level issue so the defect stays visible.
func Issues(issues []model.VerificationIssue, requirementIDs map[string]bool) ([]model.VerificationIssue, []model.VerificationIssue) {
	var kept, rejected []model.VerificationIssue
	for _, iss := range issues {
		if iss.RequirementID != "" && !requirementIDs[iss.RequirementID] {
			rejected = append(rejected, model.NewSetLevelIssue(model.ErrorMissingMetadata,
				fmt.Sprintf("verifier issue %s excluded: unknown requirement %s", iss.ID, iss.RequirementID)))
			continue
		}
		kept = append(kept, iss)
	}
	return kept, rejected
}

func checkCitations(r *model.BusinessRequirement, sources map[string]bool) (model.VerificationIssue, bool) {
	for _, c := range r.Citations {
		if !sources[c.SourceDocument] {
			return model.NewSetLevelIssue(model.ErrorSourceMissing,
				fmt.Sprintf("requirement %s excluded: citation references unknown document %q", r.ID, c.SourceDocument)), false
		}
		if c.QuotedText == "" {
			return model.NewSetLevelIssue(model.ErrorIncompleteCitation,
				fmt.Sprintf("requirement %s excluded: citation with empty quoted text", r.ID)), false
		}
	}
	return model.VerificationIssue{}, true
}

func selfRef(r *model.BusinessRequirement) bool {
	for _, id := range r.Dependencies {
		if id == r.ID {
			return true
		}
	}
	for _, id := range r.Conflicts {
		if id == r.ID {
			return true
		}
	}
	return false
}

func pruneRefs(owner, kind string, refs []string, ids map[string]bool, issues []model.VerificationIssue) ([]string, []model.VerificationIssue) {
	var kept []string
	for _, id := range refs {
		if ids[id] {
			kept = append(kept, id)
			continue
		}
		issues = append(issues, model.NewSetLevelIssue(model.ErrorMissingMetadata,
			fmt.Sprintf("requirement %s: pruned %s reference to unknown id %s", owner, kind, id)))
	}
	return kept, issues
}
