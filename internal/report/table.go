package report

import (
	"fmt"
	"strings"

	"launchnav/internal/flow"
)

// Row is one line of the steps table.
type Row struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Phase    string `json:"phase"`
	Status   string `json:"status"`
	Owner    string `json:"owner"`
	Timeline string `json:"timeline"`
	Success  string `json:"success"`
	Volume   string `json:"volume"`
}

// Table lists the steps in document order.
func Table(doc flow.Document) []Row {
	rows := make([]Row, 0, len(doc.Steps))
	for i, step := range doc.Steps {
		rows = append(rows, Row{
			Index:    i + 1,
			ID:       step.ID,
			Title:    step.Title,
			Phase:    string(step.Phase),
			Status:   string(step.Status),
			Owner:    orPlaceholder(step.Owner),
			Timeline: orPlaceholder(step.Timeline),
			Success:  formatRate(step.Success),
			Volume:   formatVolume(step.Volume),
		})
	}
	return rows
}

// String renders the row as a single report line.
func (r Row) String() string {
	return fmt.Sprintf("%d. %s | %s | %s | %s | %s | %s",
		r.Index, r.Title, r.Phase, r.Status, r.Owner, r.Success, r.Volume)
}

// TableText renders the table with a header, one row per line, for plain
// text output.
func TableText(rows []Row) string {
	var b strings.Builder
	b.WriteString("# | Title | Phase | Status | Owner | Timeline | Success | Volume\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%d | %s | %s | %s | %s | %s | %s | %s\n",
			r.Index, r.Title, r.Phase, r.Status, r.Owner, r.Timeline, r.Success, r.Volume)
	}
	return b.String()
}
