// Package metrics derives the dashboard summary figures from a document.
package metrics

import (
	"fmt"
	"math"

	"launchnav/internal/flow"
)

// Summary holds the aggregate figures. AvgSuccess is nil when no step has a
// parseable success rate, which is distinct from an average of zero.
type Summary struct {
	StepCount    int                 `json:"stepCount"`
	ActiveCount  int                 `json:"activeCount"`
	AvgSuccess   *float64            `json:"avgSuccess"`
	RatedCount   int                 `json:"ratedCount"`
	PhaseCounts  map[flow.Phase]int  `json:"phaseCounts"`
	PathCounts   map[flow.Path]int   `json:"pathCounts"`
	StatusCounts map[flow.Status]int `json:"statusCounts"`
}

// Compute is a pure function of doc.
func Compute(doc flow.Document) Summary {
	summary := Summary{
		StepCount:    len(doc.Steps),
		PhaseCounts:  make(map[flow.Phase]int, len(flow.Phases)),
		PathCounts:   make(map[flow.Path]int, len(flow.Paths)),
		StatusCounts: make(map[flow.Status]int, len(flow.Statuses)),
	}

	var total float64
	for _, step := range doc.Steps {
		if step.Status == flow.StatusInProgress || step.Status == flow.StatusPlanned {
			summary.ActiveCount++
		}
		summary.PhaseCounts[step.Phase]++
		summary.PathCounts[step.Path]++
		summary.StatusCounts[step.Status]++

		if v, ok := step.Success.Value(); ok {
			total += v
			summary.RatedCount++
		}
	}

	if summary.RatedCount > 0 {
		avg := round1(total / float64(summary.RatedCount))
		summary.AvgSuccess = &avg
	}
	return summary
}

// AvgSuccessText renders the average as the dashboard does: "85.0%" or "—".
func (s Summary) AvgSuccessText() string {
	if s.AvgSuccess == nil {
		return "—"
	}
	return fmt.Sprintf("%.1f%%", *s.AvgSuccess)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
