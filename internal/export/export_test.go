package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"launchnav/internal/flow"
	"launchnav/internal/report"
)

func testDocument() flow.Document {
	doc := flow.Document{
		Name:        "Wave <1>",
		Description: "Pilot & rollout",
		Steps: []flow.Step{
			{ID: "a", Title: "Kick-off", Phase: flow.PhasePilot, Success: "90%"},
			{ID: "b", Title: "Go-live", Phase: flow.PhaseExecute, Success: "80"},
		},
	}
	flow.Normalize(&doc)
	return doc
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"Wave 1 v1.2", "Wave-1-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "launch-report"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"é", "%C3%A9"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderReportHTML(t *testing.T) {
	doc := testDocument()
	pages := report.Paginate(doc, report.ModeDetailed, report.DefaultPageSpec)

	html, err := RenderReportHTML(TemplateData{Title: doc.Name, Page: report.DefaultPageSpec, Pages: pages})
	if err != nil {
		t.Fatalf("RenderReportHTML() error = %v", err)
	}

	if !strings.Contains(html, "Wave &lt;1&gt;") {
		t.Error("HTML title should be escaped")
	}
	if !strings.Contains(html, "Pilot &amp; rollout") {
		t.Error("HTML missing description")
	}
	if !strings.Contains(html, "Step 2: Go-live") {
		t.Error("HTML missing step section")
	}
	if strings.Count(html, `class="page"`) != len(pages) {
		t.Errorf("expected %d page sections", len(pages))
	}
	if !strings.Contains(html, "612.00pt") {
		t.Error("HTML page width not applied")
	}
}

func TestRenderText(t *testing.T) {
	spec := report.DefaultPageSpec
	spec.Height = 2*spec.Margin + 3*spec.LineHeight
	pages := report.Paginate(testDocument(), report.ModeSummary, spec)

	text := RenderText(pages)
	if strings.Count(text, "\f") != len(pages)-1 {
		t.Errorf("expected %d page breaks in %q", len(pages)-1, text)
	}
	if !strings.HasPrefix(text, "Wave <1>\n") {
		t.Errorf("unexpected text start: %q", text[:20])
	}
}

func TestExportFormats(t *testing.T) {
	svc := NewService(zap.NewNop())
	var printedSpec report.PageSpec
	svc.pdf = func(_ context.Context, html string, spec report.PageSpec) ([]byte, error) {
		printedSpec = spec
		if !strings.Contains(html, "Kick-off") {
			t.Error("pdf input missing content")
		}
		return []byte("%PDF-fake"), nil
	}
	svc.docx = func(context.Context, string) ([]byte, error) {
		return nil, ErrDOCXDependencyMissing
	}
	ctx := context.Background()
	doc := testDocument()

	pdf, err := svc.Export(ctx, doc, Request{Format: FormatPDF, Mode: report.ModeDetailed})
	if err != nil {
		t.Fatalf("Export(pdf) error = %v", err)
	}
	if pdf.MimeType != "application/pdf" || pdf.Filename != "Wave-1-detailed.pdf" || string(pdf.Data) != "%PDF-fake" {
		t.Errorf("unexpected pdf result: %+v", pdf)
	}
	if printedSpec != report.DefaultPageSpec {
		t.Errorf("pdf printed with %+v", printedSpec)
	}

	js, err := svc.Export(ctx, doc, Request{Format: FormatJSON})
	if err != nil {
		t.Fatalf("Export(json) error = %v", err)
	}
	var pages []report.Page
	if err := json.Unmarshal(js.Data, &pages); err != nil || len(pages) != js.Pages {
		t.Fatalf("json pages = %d (%v), want %d", len(pages), err, js.Pages)
	}

	if _, err := svc.Export(ctx, doc, Request{Format: FormatDOCX}); !errors.Is(err, ErrDOCXDependencyMissing) {
		t.Errorf("Export(docx) error = %v", err)
	}
	if _, err := svc.Export(ctx, doc, Request{Format: "odt"}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Export(odt) error = %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	if f, ok := ParseFormat(""); !ok || f != FormatPDF {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, ok)
	}
	if f, ok := ParseFormat("TXT"); !ok || f != FormatText {
		t.Errorf("ParseFormat(TXT) = %v, %v", f, ok)
	}
	if _, ok := ParseFormat("odt"); ok {
		t.Error("ParseFormat(odt) should fail")
	}
}
