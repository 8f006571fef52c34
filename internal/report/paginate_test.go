package report

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchnav/internal/flow"
)

func fiveSteps() flow.Document {
	doc := flow.Document{Name: "Five", Description: "Five step launch"}
	for i := 1; i <= 5; i++ {
		doc.Steps = append(doc.Steps, flow.Step{
			ID:          fmt.Sprintf("s%d", i),
			Title:       fmt.Sprintf("Step title %d", i),
			Phase:       flow.Phases[(i-1)%len(flow.Phases)],
			Owner:       fmt.Sprintf("Owner %d", i),
			Timeline:    fmt.Sprintf("%d weeks", i),
			Volume:      float64(100 - i),
			Success:     flow.RateOf(float64(80 + i)),
			Description: fmt.Sprintf("Description %d line one\nDescription %d line two", i, i),
			Notes:       fmt.Sprintf("Notes %d", i),
			Links:       []string{fmt.Sprintf("https://example.com/%d", i)},
		})
	}
	flow.Normalize(&doc)
	return doc
}

func twoLineSpec() PageSpec {
	spec := DefaultPageSpec
	spec.Height = 2*spec.Margin + 2*spec.LineHeight
	return spec
}

func TestPaginateOverflowDetailed(t *testing.T) {
	doc := fiveSteps()
	pages := Paginate(doc, ModeDetailed, twoLineSpec())

	require.Greater(t, len(pages), 1)

	lines := Lines(pages)
	count := map[string]int{}
	for _, line := range lines {
		count[line]++
	}

	for _, step := range doc.Steps {
		n := strings.TrimPrefix(step.ID, "s")
		for _, want := range []string{
			"Title: " + step.Title,
			"Phase: " + string(step.Phase),
			"Owner: " + step.Owner,
			"Timeline: " + step.Timeline,
			fmt.Sprintf("Volume: %g%%", step.Volume),
			"Description " + n + " line one",
			"Description " + n + " line two",
			"Notes " + n,
			"- https://example.com/" + n,
		} {
			if want == "Phase: "+string(step.Phase) {
				continue // phases repeat across steps
			}
			assert.Equal(t, 1, count[want], "line %q", want)
		}
	}

	for i, page := range pages {
		assert.Equal(t, i+1, page.Number)
		texts := 0
		for _, in := range page.Instructions {
			if in.Kind == KindText {
				texts++
				assert.LessOrEqual(t, in.Y, twoLineSpec().Height-twoLineSpec().Margin, "line below bottom margin on page %d", page.Number)
			}
		}
		assert.LessOrEqual(t, texts, 2)
	}
}

func TestPaginateRepeatsSectionHeader(t *testing.T) {
	pages := Paginate(fiveSteps(), ModeDetailed, twoLineSpec())
	lines := Lines(pages)

	assert.Contains(t, lines, "Step 1: Step title 1")
	assert.Contains(t, lines, "Step 1: Step title 1"+ContinuedSuffix)
	assert.Contains(t, lines, "Steps"+ContinuedSuffix)

	for _, page := range pages[1:] {
		var first string
		for _, in := range page.Instructions {
			if in.Kind == KindText {
				first = in.Text
				break
			}
		}
		if strings.HasSuffix(first, ContinuedSuffix) {
			continue
		}
		assert.True(t, first == "Overview" || first == "Steps" || strings.HasPrefix(first, "Step "),
			"page %d starts with %q, expected a section header", page.Number, first)
	}
}

func TestPaginateSummaryOverflow(t *testing.T) {
	doc := fiveSteps()
	spec := DefaultPageSpec
	spec.Height = 2*spec.Margin + 4*spec.LineHeight

	pages := Paginate(doc, ModeSummary, spec)
	require.Greater(t, len(pages), 1)

	lines := Lines(pages)
	for _, row := range Table(doc) {
		assert.Contains(t, lines, row.String())
	}
	for _, line := range lines {
		assert.False(t, strings.HasPrefix(line, "Title: "), "summary mode printed step details")
	}
}

func TestPaginateSinglePage(t *testing.T) {
	pages := Paginate(fiveSteps(), ModeSummary, DefaultPageSpec)
	require.Len(t, pages, 1)

	lines := Lines(pages)
	assert.Equal(t, "Five", lines[0])
	assert.Contains(t, lines, "Steps: 5")
	assert.Contains(t, lines, "Average success: 83.0%")
	assert.Contains(t, lines, "Active steps: 5")
}

func TestPaginatePlaceholders(t *testing.T) {
	doc := flow.Document{Steps: []flow.Step{{ID: "x"}}}
	flow.Normalize(&doc)

	lines := Lines(Paginate(doc, ModeDetailed, DefaultPageSpec))
	assert.Equal(t, "Untitled launch", lines[0])
	assert.Equal(t, Placeholder, lines[1])
	for _, want := range []string{"Owner: N/A", "Description: N/A", "Notes: N/A", "Links: none", "Attachments: none", "Average success: —"} {
		assert.Contains(t, lines, want)
	}
}

func TestPaginateEmptyDocument(t *testing.T) {
	lines := Lines(Paginate(flow.Document{}, ModeDetailed, DefaultPageSpec))
	assert.Contains(t, lines, "No steps defined.")
	assert.Contains(t, lines, "Steps: 0")
}

func TestPaginateDegenerateSpec(t *testing.T) {
	spec := PageSpec{Width: 100, Height: 10, Margin: 20, LineHeight: 14}
	pages := Paginate(fiveSteps(), ModeSummary, spec)
	for _, page := range pages {
		texts := 0
		for _, in := range page.Instructions {
			if in.Kind == KindText {
				texts++
			}
		}
		assert.Equal(t, 1, texts)
	}
	assert.Equal(t, len(Lines(pages)), len(pages))
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"newlines", "a\nb", 10, []string{"a", "b"}},
		{"words", "one two three four", 9, []string{"one two", "three", "four"}},
		{"long word", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"disabled", "one two three", 0, []string{"one two three"}},
		{"crlf", "a\r\nb", 10, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(tt.text, tt.width))
		})
	}
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeDetailed, ParseMode(" Detailed "))
	assert.Equal(t, ModeSummary, ParseMode("full"))
}

func TestPaginateSectionHeaderNeverEndsPage(t *testing.T) {
	doc := fiveSteps()
	for capacity := 3; capacity <= 12; capacity++ {
		spec := DefaultPageSpec
		spec.Height = 2*spec.Margin + float64(capacity)*spec.LineHeight

		for _, mode := range []Mode{ModeSummary, ModeDetailed} {
			pages := Paginate(doc, mode, spec)
			for _, page := range pages[:len(pages)-1] {
				var last Instruction
				for _, in := range page.Instructions {
					if in.Kind == KindText {
						last = in
					}
				}
				assert.False(t, last.Bold && last.Size == spec.FontSize*headerScale,
					"capacity %d, %s mode: page %d ends with header %q", capacity, mode, page.Number, last.Text)
			}
		}
	}
}

func TestPaginateWrapsTableRows(t *testing.T) {
	doc := fiveSteps()
	doc.Steps[0].Title = strings.Repeat("Regional readiness ", 8)
	doc.Steps[0].Owner = "Launch programme office and regional go-to-market leads"
	spec := DefaultPageSpec
	spec.WrapChars = 40

	lines := Lines(Paginate(doc, ModeSummary, spec))
	for _, line := range lines[1:] {
		assert.LessOrEqual(t, len([]rune(line)), spec.WrapChars, "line %q", line)
	}
	joined := strings.Join(lines, " ")
	assert.Contains(t, joined, "Launch programme office and regional go-to-market leads")
	assert.NotContains(t, lines, Table(doc)[0].String())
}
