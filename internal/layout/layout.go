// Package layout projects a launch document onto a left-to-right flow
// diagram: node positions and colors plus weighted links between
// consecutive steps.
package layout

import "launchnav/internal/flow"

// Canvas is the drawing area in abstract units.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Margin float64 `json:"margin"`
}

// DefaultCanvas matches the dashboard chart area.
var DefaultCanvas = Canvas{Width: 1000, Height: 420, Margin: 40}

const (
	NeutralColor = "rgba(200, 200, 200, 0.9)"
	LinkColor    = "rgba(180, 180, 190, 0.5)"
)

var phaseColors = map[flow.Phase]string{
	flow.PhasePilot:   "rgba(230, 236, 245, 0.9)",
	flow.PhasePrepare: "rgba(230, 245, 240, 0.9)",
	flow.PhaseExecute: "rgba(244, 234, 245, 0.9)",
	flow.PhaseClose:   "rgba(245, 240, 230, 0.9)",
}

var pathColors = map[flow.Path]string{
	flow.PathPrimary:     "rgba(120, 144, 180, 0.45)",
	flow.PathAlternative: "rgba(140, 190, 165, 0.45)",
	flow.PathEnhanced:    "rgba(175, 145, 200, 0.45)",
	flow.PathExit:        "rgba(210, 140, 130, 0.45)",
}

// Node is one positioned step.
type Node struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Phase flow.Phase `json:"phase"`
	Path  flow.Path  `json:"path"`
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
	Color string     `json:"color"`
}

// Link joins step Source to step Target (indexes into Nodes).
type Link struct {
	Source   int     `json:"source"`
	Target   int     `json:"target"`
	SourceID string  `json:"sourceId"`
	TargetID string  `json:"targetId"`
	Value    float64 `json:"value"`
	Color    string  `json:"color"`
}

// Diagram is the full projection. An empty document yields empty, non-nil
// slices; the caller renders a placeholder.
type Diagram struct {
	Canvas Canvas `json:"canvas"`
	Nodes  []Node `json:"nodes"`
	Links  []Link `json:"links"`
}

// Empty reports whether there is nothing to draw.
func (d Diagram) Empty() bool {
	return len(d.Nodes) == 0
}

// PhaseColor returns the fill for a phase, gray when unknown.
func PhaseColor(p flow.Phase) string {
	if c, ok := phaseColors[p]; ok {
		return c
	}
	return NeutralColor
}

// PathColor returns the ribbon color for links leaving a step on path p.
func PathColor(p flow.Path) string {
	if c, ok := pathColors[p]; ok {
		return c
	}
	return LinkColor
}

// Compute lays doc out on canvas. It reads doc only.
//
// Link value is the destination step's volume. A zero volume is drawn as
// 100, as the dashboard did, so the ribbon stays visible.
func Compute(doc flow.Document, canvas Canvas) Diagram {
	n := len(doc.Steps)
	diagram := Diagram{
		Canvas: canvas,
		Nodes:  make([]Node, 0, n),
		Links:  make([]Link, 0, max(n-1, 0)),
	}
	if n == 0 {
		return diagram
	}

	for i, step := range doc.Steps {
		diagram.Nodes = append(diagram.Nodes, Node{
			ID:    step.ID,
			Label: step.Title,
			Phase: step.Phase,
			Path:  step.Path,
			X:     xAt(i, n, canvas),
			Y:     laneY(step.Path, canvas),
			Color: PhaseColor(step.Phase),
		})
	}

	for i := 0; i+1 < n; i++ {
		src, dst := doc.Steps[i], doc.Steps[i+1]
		value := dst.Volume
		if value == 0 {
			value = flow.DefaultVolume
		}
		diagram.Links = append(diagram.Links, Link{
			Source:   i,
			Target:   i + 1,
			SourceID: src.ID,
			TargetID: dst.ID,
			Value:    value,
			Color:    PathColor(src.Path),
		})
	}
	return diagram
}

func xAt(i, n int, c Canvas) float64 {
	if n == 1 {
		return c.Width / 2
	}
	span := c.Width - 2*c.Margin
	return c.Margin + float64(i)*span/float64(n-1)
}

// laneY centers a node in the horizontal lane of its path; unknown paths
// share the first lane.
func laneY(p flow.Path, c Canvas) float64 {
	lane := 0
	for i, candidate := range flow.Paths {
		if candidate == p {
			lane = i
			break
		}
	}
	laneHeight := (c.Height - 2*c.Margin) / float64(len(flow.Paths))
	return c.Margin + laneHeight*(float64(lane)+0.5)
}
