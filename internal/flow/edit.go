package flow

import (
	"fmt"
	"strings"
)

// Patch is a partial step update; nil fields are left unchanged.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Phase       *string   `json:"phase,omitempty"`
	Path        *string   `json:"path,omitempty"`
	Description *string   `json:"description,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	Owner       *string   `json:"owner,omitempty"`
	Timeline    *string   `json:"timeline,omitempty"`
	Volume      *float64  `json:"volume,omitempty"`
	Success     *Rate     `json:"success,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Order       *int      `json:"order,omitempty"`
	Links       *[]string `json:"links,omitempty"`
	LinksText   *string   `json:"linksText,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply writes the set fields onto s, coercing enumerations and volume the
// same way Normalize does.
func (p Patch) Apply(s *Step) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Phase != nil {
		s.Phase = ParsePhase(*p.Phase)
	}
	if p.Path != nil {
		s.Path = ParsePath(*p.Path)
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.Notes != nil {
		s.Notes = *p.Notes
	}
	if p.Owner != nil {
		s.Owner = *p.Owner
	}
	if p.Timeline != nil {
		s.Timeline = *p.Timeline
	}
	if p.Volume != nil {
		s.Volume = ClampVolume(*p.Volume)
	}
	if p.Success != nil {
		s.Success = *p.Success
	}
	if p.Status != nil {
		s.Status = ParseStatus(*p.Status)
	}
	if p.Order != nil {
		s.Order = *p.Order
	}
	if p.Links != nil {
		s.Links = cleanList(*p.Links)
	}
	if p.LinksText != nil {
		s.Links = ParseLinks(*p.LinksText)
	}
}

// UpdateStep applies patch to the step with the given id. The document is
// not re-sorted; a phase or order change takes effect on the next Normalize.
func (d *Document) UpdateStep(id string, patch Patch) (Step, error) {
	step, ok := d.Step(id)
	if !ok {
		return Step{}, fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}
	patch.Apply(step)
	return *step, nil
}

// NewStep returns a step with an id and every default filled in.
func NewStep(title string, phase Phase) Step {
	return Step{
		ID:          NewID(),
		Title:       title,
		Phase:       ParsePhase(string(phase)),
		Path:        PathPrimary,
		Volume:      DefaultVolume,
		Status:      StatusPlanned,
		Links:       []string{},
		Attachments: []string{},
	}
}

// AddStep appends s at the end of its phase group and renormalizes. A blank
// or already used id is replaced.
func (d *Document) AddStep(s Step) Step {
	if s.ID == "" || d.Index(s.ID) >= 0 {
		s.ID = NewID()
	}
	s.Phase = ParsePhase(string(s.Phase))
	s.Order = 0
	for _, existing := range d.Steps {
		if existing.Phase == s.Phase && existing.Order >= s.Order {
			s.Order = existing.Order + 1
		}
	}
	d.Steps = append(d.Steps, s)
	Normalize(d)
	added, _ := d.Step(s.ID)
	return *added
}

// RemoveStep deletes the step with the given id.
func (d *Document) RemoveStep(id string) error {
	i := d.Index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}
	d.Steps = append(d.Steps[:i], d.Steps[i+1:]...)
	Normalize(d)
	return nil
}

// AddAttachment records a stored attachment path on the step.
func (d *Document) AddAttachment(id, relPath string) error {
	step, ok := d.Step(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}
	for _, existing := range step.Attachments {
		if existing == relPath {
			return nil
		}
	}
	step.Attachments = append(step.Attachments, relPath)
	return nil
}

// ParseLinks splits editor text into one link per non-blank line.
func ParseLinks(text string) []string {
	return cleanList(strings.Split(text, "\n"))
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
