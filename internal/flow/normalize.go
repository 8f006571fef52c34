package flow

import (
	"math"
	"sort"
	"strings"

	"launchnav/internal/util"
)

// NewID returns a fresh step id.
func NewID() string {
	return util.NewID("")
}

// Normalize repairs doc in place: ids, enumerations, defaults, volume bounds,
// per-phase order, and the (phase, order) sequence. It never adds or drops a
// step and running it twice yields the same document.
func Normalize(doc *Document) {
	if doc.Steps == nil {
		doc.Steps = []Step{}
	}

	seen := make(map[string]struct{}, len(doc.Steps))
	for i := range doc.Steps {
		step := &doc.Steps[i]
		step.ID = strings.TrimSpace(step.ID)
		if _, dup := seen[step.ID]; step.ID == "" || dup {
			step.ID = NewID()
		}
		seen[step.ID] = struct{}{}

		step.Phase = ParsePhase(string(step.Phase))
		step.Path = ParsePath(string(step.Path))
		step.Status = ParseStatus(string(step.Status))
		step.Volume = ClampVolume(step.Volume)
		if step.Links == nil {
			step.Links = []string{}
		}
		if step.Attachments == nil {
			step.Attachments = []string{}
		}
	}

	for _, phase := range Phases {
		var members []int
		for i := range doc.Steps {
			if doc.Steps[i].Phase == phase {
				members = append(members, i)
			}
		}
		sort.SliceStable(members, func(a, b int) bool {
			return doc.Steps[members[a]].Order < doc.Steps[members[b]].Order
		})
		for rank, i := range members {
			doc.Steps[i].Order = rank
		}
	}

	sort.SliceStable(doc.Steps, func(a, b int) bool {
		pa, pb := doc.Steps[a].Phase.Index(), doc.Steps[b].Phase.Index()
		if pa != pb {
			return pa < pb
		}
		return doc.Steps[a].Order < doc.Steps[b].Order
	})
}

// ClampVolume bounds v to [0,100]; NaN becomes DefaultVolume.
func ClampVolume(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return DefaultVolume
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
