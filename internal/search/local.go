package search

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

const snippetRunes = 120

// Local is an in-process step index. Every query term must occur in one
// of the indexed fields; hits in the title rank first.
type Local struct {
	mu        sync.RWMutex
	documents map[string][]StepRecord
}

func NewLocal() *Local {
	return &Local{documents: map[string][]StepRecord{}}
}

func (l *Local) Healthy() bool { return true }

// Replace swaps the records of one document and returns the ids that are
// no longer present.
func (l *Local) Replace(documentName string, records []StepRecord) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	keep := make(map[string]bool, len(records))
	for _, r := range records {
		keep[r.ID] = true
	}
	stale := []string{}
	for _, r := range l.documents[documentName] {
		if !keep[r.ID] {
			stale = append(stale, r.ID)
		}
	}
	l.documents[documentName] = append([]StepRecord(nil), records...)
	return stale
}

func (l *Local) Search(q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 {
		return nil, 0, nil
	}

	type scored struct {
		record StepRecord
		score  int
	}
	var hits []scored

	l.mu.RLock()
	for name, records := range l.documents {
		if q.FilterDocument != "" && name != q.FilterDocument {
			continue
		}
		for _, r := range records {
			if q.FilterPhase != "" && r.Phase != string(q.FilterPhase) {
				continue
			}
			if score, ok := match(r, terms); ok {
				hits = append(hits, scored{record: r, score: score})
			}
		}
	}
	l.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].record.ID < hits[j].record.ID
	})

	total := len(hits)
	start := min(q.offset(), total)
	end := min(start+q.limit(), total)
	results := make([]Result, 0, end-start)
	for _, h := range hits[start:end] {
		results = append(results, h.record.result(snippet(h.record, terms[0])))
	}
	return results, total, nil
}

func match(r StepRecord, terms []string) (int, bool) {
	title := strings.ToLower(r.Title)
	body := strings.ToLower(strings.Join([]string{r.Owner, r.Description, r.Notes}, " "))
	score := 0
	for _, term := range terms {
		switch {
		case strings.Contains(title, term):
			score += 2
		case strings.Contains(body, term):
			score++
		default:
			return 0, false
		}
	}
	return score, true
}

// snippet cuts description or notes around the first occurrence of term.
func snippet(r StepRecord, term string) string {
	text := firstNonBlank(r.Description, r.Notes)
	for _, candidate := range []string{r.Description, r.Notes} {
		if strings.Contains(strings.ToLower(candidate), term) {
			text = candidate
			break
		}
	}
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= snippetRunes {
		return text
	}
	runes := []rune(text)
	at := strings.Index(strings.ToLower(text), term)
	start := 0
	if at > 0 && at <= len(text) {
		start = max(utf8.RuneCountInString(text[:at])-snippetRunes/4, 0)
	}
	end := min(start+snippetRunes, len(runes))
	out := string(runes[start:end])
	if start > 0 {
		out = "…" + out
	}
	if end < len(runes) {
		out += "…"
	}
	return out
}
