package gitrepo

import (
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"launchnav/internal/flow"
)

// StepDiff lists step ids by what happened to them between two revisions.
type StepDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed []string `json:"changed"`
	// Header is set when the document name or description changed.
	Header bool `json:"header,omitempty"`
}

// Empty reports whether the revisions are identical.
func (d StepDiff) Empty() bool {
	return !d.Header && len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffSteps compares two documents by step id. A step that only moved
// within the list counts as changed because its order field differs.
func DiffSteps(from, to flow.Document) StepDiff {
	diff := StepDiff{
		Added:   []string{},
		Removed: []string{},
		Changed: []string{},
		Header:  from.Name != to.Name || from.Description != to.Description,
	}
	before := make(map[string]flow.Step, len(from.Steps))
	for _, step := range from.Steps {
		before[step.ID] = step
	}
	seen := make(map[string]bool, len(to.Steps))
	for _, step := range to.Steps {
		seen[step.ID] = true
		old, ok := before[step.ID]
		switch {
		case !ok:
			diff.Added = append(diff.Added, step.ID)
		case !cmp.Equal(old, step, cmpopts.EquateEmpty()):
			diff.Changed = append(diff.Changed, step.ID)
		}
	}
	for _, step := range from.Steps {
		if !seen[step.ID] {
			diff.Removed = append(diff.Removed, step.ID)
		}
	}
	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Changed)
	return diff
}
