// Package search indexes launch steps for full-text lookup across all
// documents. Meilisearch is preferred; Postgres full-text search and an
// in-process index back it up.
package search

import (
	"strings"

	"launchnav/internal/flow"
	"launchnav/internal/util"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID           string `json:"id"`
	DocumentName string `json:"documentName"`
	StepID       string `json:"stepId"`
	Title        string `json:"title"`
	Snippet      string `json:"snippet"`
	Phase        string `json:"phase"`
	Status       string `json:"status"`
}

// Query describes a search request.
type Query struct {
	Text string
	// FilterDocument restricts hits to one document file name.
	FilterDocument string
	FilterPhase    flow.Phase
	Limit          int
	Offset         int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return 20
	}
	return q.Limit
}

func (q Query) offset() int {
	if q.Offset < 0 {
		return 0
	}
	return q.Offset
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// StepRecord is the data we index for a step.
type StepRecord struct {
	ID           string `json:"id"`
	DocumentName string `json:"documentName"`
	StepID       string `json:"stepId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Notes        string `json:"notes"`
	Owner        string `json:"owner"`
	Phase        string `json:"phase"`
	Path         string `json:"path"`
	Status       string `json:"status"`
}

// RecordID is the index key of a step: the escaped document stem and step
// id joined by "__", using only characters Meilisearch accepts in primary
// keys.
func RecordID(documentName, stepID string) string {
	stem := strings.TrimSuffix(documentName, ".json")
	return util.EscapeSegment(stem) + "__" + util.EscapeSegment(stepID)
}

// Records flattens a document into one record per step.
func Records(documentName string, doc flow.Document) []StepRecord {
	records := make([]StepRecord, 0, len(doc.Steps))
	for _, step := range doc.Steps {
		records = append(records, StepRecord{
			ID:           RecordID(documentName, step.ID),
			DocumentName: documentName,
			StepID:       step.ID,
			Title:        step.Title,
			Description:  step.Description,
			Notes:        step.Notes,
			Owner:        step.Owner,
			Phase:        string(step.Phase),
			Path:         string(step.Path),
			Status:       string(step.Status),
		})
	}
	return records
}

func (r StepRecord) result(snippet string) Result {
	return Result{
		ID:           r.ID,
		DocumentName: r.DocumentName,
		StepID:       r.StepID,
		Title:        r.Title,
		Snippet:      snippet,
		Phase:        r.Phase,
		Status:       r.Status,
	}
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
