// Package flow holds the launch journey document model: steps, their closed
// enumerations, normalization and the JSON document store.
package flow

import (
	"errors"
	"strings"
)

// Phase is one of the four fixed macro-stages of a launch journey.
type Phase string

const (
	PhasePilot   Phase = "Pilot & Initiate"
	PhasePrepare Phase = "Prepare & Startup"
	PhaseExecute Phase = "Execute & Adopt"
	PhaseClose   Phase = "Close & Sustain"
)

// Phases lists the phases in display order.
var Phases = []Phase{PhasePilot, PhasePrepare, PhaseExecute, PhaseClose}

// Path is the branch classification of a step, used for color coding.
type Path string

const (
	PathPrimary     Path = "Primary"
	PathAlternative Path = "DataPrep/Alternative"
	PathEnhanced    Path = "Enhanced"
	PathExit        Path = "Exit"
)

// Paths lists the paths in legend order.
var Paths = []Path{PathPrimary, PathAlternative, PathEnhanced, PathExit}

// Status is the progress state of a step.
type Status string

const (
	StatusPlanned    Status = "Planned"
	StatusInProgress Status = "In progress"
	StatusBlocked    Status = "Blocked"
	StatusCompleted  Status = "Completed"
)

// Statuses lists the statuses in editor order.
var Statuses = []Status{StatusPlanned, StatusInProgress, StatusBlocked, StatusCompleted}

// DefaultVolume is the volume_pct of a step that does not specify one.
const DefaultVolume = 100.0

// Document is a launch journey: a name, a description and ordered steps.
type Document struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       []Step `json:"steps"`
}

// Step is one unit of work in the journey.
type Step struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Phase       Phase    `json:"phase"`
	Path        Path     `json:"path"`
	Description string   `json:"description"`
	Notes       string   `json:"notes"`
	Owner       string   `json:"owner"`
	Timeline    string   `json:"timeline"`
	Volume      float64  `json:"volume"`
	Success     Rate     `json:"success"`
	Status      Status   `json:"status"`
	Order       int      `json:"order"`
	Links       []string `json:"links"`
	Attachments []string `json:"attachments"`
}

var (
	// ErrParse indicates the source bytes are not a launch document.
	ErrParse = errors.New("parse launch document")
	// ErrWrite indicates the document could not be persisted.
	ErrWrite = errors.New("write launch document")
	// ErrStepNotFound indicates no step carries the requested id.
	ErrStepNotFound = errors.New("step not found")
)

// Index returns the position of phase p in display order, or -1.
func (p Phase) Index() int {
	for i, candidate := range Phases {
		if candidate == p {
			return i
		}
	}
	return -1
}

// ParsePhase maps free text onto a Phase. Case, surrounding blanks and
// "and" in place of "&" are tolerated; anything else yields PhasePilot.
func ParsePhase(raw string) Phase {
	key := enumKey(raw)
	for _, p := range Phases {
		if enumKey(string(p)) == key {
			return p
		}
	}
	return PhasePilot
}

// ParsePath maps free text onto a Path, defaulting to PathPrimary.
func ParsePath(raw string) Path {
	key := enumKey(raw)
	switch key {
	case "dataprep", "alternative", "dataprepalternative":
		return PathAlternative
	}
	for _, p := range Paths {
		if enumKey(string(p)) == key {
			return p
		}
	}
	return PathPrimary
}

// ParseStatus maps free text onto a Status, defaulting to StatusPlanned.
func ParseStatus(raw string) Status {
	key := enumKey(raw)
	for _, s := range Statuses {
		if enumKey(string(s)) == key {
			return s
		}
	}
	return StatusPlanned
}

func enumKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " and ", "&")
	var b strings.Builder
	for _, r := range key {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '&' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Step returns a pointer to the step with the given id.
func (d *Document) Step(id string) (*Step, bool) {
	i := d.Index(id)
	if i < 0 {
		return nil, false
	}
	return &d.Steps[i], true
}

// Index returns the position of the step with the given id, or -1.
func (d *Document) Index(id string) int {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy, so derived views never alias editor state.
func (d Document) Clone() Document {
	out := d
	out.Steps = make([]Step, len(d.Steps))
	for i, s := range d.Steps {
		s.Links = append([]string(nil), s.Links...)
		s.Attachments = append([]string(nil), s.Attachments...)
		if s.Links == nil {
			s.Links = []string{}
		}
		if s.Attachments == nil {
			s.Attachments = []string{}
		}
		out.Steps[i] = s
	}
	return out
}
