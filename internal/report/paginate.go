// Package report walks a launch document into fixed-size pages of draw
// instructions. The export package turns those pages into PDF, HTML, DOCX
// or plain text.
package report

import (
	"fmt"
	"math"
	"strings"

	"launchnav/internal/flow"
	"launchnav/internal/metrics"
)

// Mode selects how much of the document is printed.
type Mode string

const (
	ModeSummary  Mode = "summary"
	ModeDetailed Mode = "detailed"
)

// ParseMode defaults anything unrecognized to ModeSummary.
func ParseMode(raw string) Mode {
	if strings.EqualFold(strings.TrimSpace(raw), string(ModeDetailed)) {
		return ModeDetailed
	}
	return ModeSummary
}

// Placeholder stands in for empty description, notes and owner.
const Placeholder = "N/A"

// ContinuedSuffix marks a section header repeated on a new page.
const ContinuedSuffix = " (cont.)"

// PageSpec sizes a page in points. WrapChars is the widest body line.
type PageSpec struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Margin     float64 `json:"margin"`
	LineHeight float64 `json:"lineHeight"`
	FontSize   float64 `json:"fontSize"`
	WrapChars  int     `json:"wrapChars"`
}

// DefaultPageSpec is US Letter with 0.75in margins.
var DefaultPageSpec = PageSpec{
	Width:      612,
	Height:     792,
	Margin:     54,
	LineHeight: 14,
	FontSize:   10,
	WrapChars:  90,
}

// Capacity is the number of lines that fit between the margins, at least one.
func (s PageSpec) Capacity() int {
	if s.LineHeight <= 0 {
		return 1
	}
	n := int(math.Floor((s.Height - 2*s.Margin) / s.LineHeight))
	if n < 1 {
		return 1
	}
	return n
}

// Kind distinguishes draw instructions.
type Kind string

const (
	KindText Kind = "text"
	KindRect Kind = "rect"
)

// Instruction is a text line at (X, Y baseline) or a filled rectangle with
// top-left (X, Y).
type Instruction struct {
	Kind Kind    `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text,omitempty"`
	Size float64 `json:"size,omitempty"`
	Bold bool    `json:"bold,omitempty"`
	W    float64 `json:"w,omitempty"`
	H    float64 `json:"h,omitempty"`
	Fill string  `json:"fill,omitempty"`
}

// Page is one output page.
type Page struct {
	Number       int           `json:"number"`
	Instructions []Instruction `json:"instructions"`
}

const (
	headerFill  = "#EEF1F6"
	titleScale  = 1.8
	headerScale = 1.2
	indent      = 12.0
)

// Paginate lays doc out page by page. It never fails: degenerate specs
// still place one line per page.
func Paginate(doc flow.Document, mode Mode, spec PageSpec) []Page {
	if spec.FontSize <= 0 {
		spec.FontSize = DefaultPageSpec.FontSize
	}
	if spec.LineHeight <= 0 {
		spec.LineHeight = DefaultPageSpec.LineHeight
	}

	p := &paginator{spec: spec, capacity: spec.Capacity()}
	p.summary(doc)
	if mode == ModeDetailed {
		for i, step := range doc.Steps {
			p.stepSection(i, step)
		}
	}
	return p.finish()
}

// Lines returns the text of every text instruction in draw order.
func Lines(pages []Page) []string {
	var out []string
	for _, page := range pages {
		for _, in := range page.Instructions {
			if in.Kind == KindText {
				out = append(out, in.Text)
			}
		}
	}
	return out
}

type paginator struct {
	spec     PageSpec
	capacity int
	pages    []Page
	current  *Page
	used     int
	header   string
}

func (p *paginator) summary(doc flow.Document) {
	title := strings.TrimSpace(doc.Name)
	if title == "" {
		title = "Untitled launch"
	}
	p.text(title, 0, p.spec.FontSize*titleScale, true)
	for _, line := range p.wrap(orPlaceholder(doc.Description)) {
		p.text(line, 0, p.spec.FontSize, false)
	}

	summary := metrics.Compute(doc)
	p.section("Overview")
	p.text(fmt.Sprintf("Steps: %d", summary.StepCount), 0, p.spec.FontSize, false)
	p.text("Average success: "+summary.AvgSuccessText(), 0, p.spec.FontSize, false)
	p.text(fmt.Sprintf("Active steps: %d", summary.ActiveCount), 0, p.spec.FontSize, false)

	p.section("Steps")
	if len(doc.Steps) == 0 {
		p.text("No steps defined.", 0, p.spec.FontSize, false)
		return
	}
	for _, row := range Table(doc) {
		for i, line := range p.wrap(row.String()) {
			dx := 0.0
			if i > 0 {
				dx = indent
			}
			p.text(line, dx, p.spec.FontSize, false)
		}
	}
}

func (p *paginator) stepSection(i int, step flow.Step) {
	title := strings.TrimSpace(step.Title)
	if title == "" {
		title = "Untitled step"
	}
	p.section(fmt.Sprintf("Step %d: %s", i+1, title))

	size := p.spec.FontSize
	p.text("Title: "+title, 0, size, false)
	p.text("Phase: "+string(step.Phase), 0, size, false)
	p.text("Path: "+string(step.Path), 0, size, false)
	p.text("Status: "+string(step.Status), 0, size, false)
	p.text("Owner: "+orPlaceholder(step.Owner), 0, size, false)
	p.text("Timeline: "+orPlaceholder(step.Timeline), 0, size, false)
	p.text("Volume: "+formatVolume(step.Volume), 0, size, false)
	p.text("Success rate: "+formatRate(step.Success), 0, size, false)
	p.block("Description", step.Description)
	p.block("Notes", step.Notes)
	p.list("Links", step.Links)
	p.list("Attachments", step.Attachments)
}

// block prints a multi-line field: the label, then the text split at
// newlines and wrapped, indented.
func (p *paginator) block(label, value string) {
	if strings.TrimSpace(value) == "" {
		p.text(label+": "+Placeholder, 0, p.spec.FontSize, false)
		return
	}
	p.text(label+":", 0, p.spec.FontSize, false)
	for _, line := range p.wrap(value) {
		p.text(line, indent, p.spec.FontSize, false)
	}
}

func (p *paginator) list(label string, items []string) {
	if len(items) == 0 {
		p.text(label+": none", 0, p.spec.FontSize, false)
		return
	}
	p.text(label+":", 0, p.spec.FontSize, false)
	for _, item := range items {
		p.text("- "+item, indent, p.spec.FontSize, false)
	}
}

// section starts a titled section; the title is repeated with
// ContinuedSuffix at the top of every page the section spills onto. On
// pages of three or more lines a header never takes the last line.
func (p *paginator) section(title string) {
	p.header = ""
	if p.current != nil && p.capacity >= 3 && p.capacity-p.used < 2 {
		p.newPage()
	}
	p.headerLine(title)
	p.header = title
}

func (p *paginator) headerLine(title string) {
	p.reserve()
	top := p.spec.Margin + float64(p.used)*p.spec.LineHeight
	p.current.Instructions = append(p.current.Instructions, Instruction{
		Kind: KindRect,
		X:    p.spec.Margin,
		Y:    top,
		W:    p.spec.Width - 2*p.spec.Margin,
		H:    p.spec.LineHeight,
		Fill: headerFill,
	})
	p.place(title, 0, p.spec.FontSize*headerScale, true)
}

func (p *paginator) text(line string, dx, size float64, bold bool) {
	p.reserve()
	p.place(line, dx, size, bold)
}

// reserve makes sure the current page has room for one more line, opening
// a new page (and repeating the section header) when it does not.
func (p *paginator) reserve() {
	if p.current != nil && p.used < p.capacity {
		return
	}
	p.newPage()
	if p.header != "" && p.capacity >= 2 {
		header := p.header
		p.header = ""
		p.headerLine(header + ContinuedSuffix)
		p.header = header
	}
}

func (p *paginator) place(line string, dx, size float64, bold bool) {
	p.used++
	p.current.Instructions = append(p.current.Instructions, Instruction{
		Kind: KindText,
		X:    p.spec.Margin + dx,
		Y:    p.spec.Margin + float64(p.used)*p.spec.LineHeight,
		Text: line,
		Size: size,
		Bold: bold,
	})
}

func (p *paginator) newPage() {
	p.flush()
	p.current = &Page{Number: len(p.pages) + 1, Instructions: []Instruction{}}
	p.used = 0
}

func (p *paginator) flush() {
	if p.current != nil {
		p.pages = append(p.pages, *p.current)
		p.current = nil
	}
}

func (p *paginator) finish() []Page {
	p.flush()
	return p.pages
}

func (p *paginator) wrap(text string) []string {
	return Wrap(text, p.spec.WrapChars)
}

// Wrap splits text at newlines, then word-wraps each line to width runes.
// Words longer than width are cut. width <= 0 disables word wrapping.
func Wrap(text string, width int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t")
		if width <= 0 || len([]rune(line)) <= width {
			out = append(out, line)
			continue
		}
		out = append(out, wrapLine(line, width)...)
	}
	return out
}

func wrapLine(line string, width int) []string {
	var (
		out     []string
		current []rune
	)
	for _, word := range strings.Fields(line) {
		w := []rune(word)
		for len(w) > width {
			if len(current) > 0 {
				out = append(out, string(current))
				current = nil
			}
			out = append(out, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(current) == 0:
			current = w
		case len(current)+1+len(w) <= width:
			current = append(append(current, ' '), w...)
		default:
			out = append(out, string(current))
			current = w
		}
	}
	if len(current) > 0 {
		out = append(out, string(current))
	}
	return out
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

func formatVolume(v float64) string {
	return fmt.Sprintf("%g%%", v)
}

func formatRate(r flow.Rate) string {
	if v, ok := r.Value(); ok {
		return fmt.Sprintf("%g%%", v)
	}
	if strings.TrimSpace(string(r)) == "" {
		return Placeholder
	}
	return string(r)
}
