// Package export renders paginated launch reports as PDF, DOCX, HTML or
// plain text.
package export

import (
	"errors"
	"strings"

	"launchnav/internal/report"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatHTML Format = "html"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat maps a query value onto a Format; unknown values report false.
func ParseFormat(raw string) (Format, bool) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatPDF, FormatDOCX, FormatHTML, FormatText, FormatJSON:
		return f, true
	case "":
		return FormatPDF, true
	case "txt":
		return FormatText, true
	default:
		return "", false
	}
}

// Request contains parameters for an export operation
type Request struct {
	Mode   report.Mode
	Format Format
	// Page overrides report.DefaultPageSpec when its height is set.
	Page report.PageSpec
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	Pages    int
}

var (
	// ErrUnsupportedFormat indicates the requested format is unknown.
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
