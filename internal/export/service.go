package export

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"launchnav/internal/flow"
	"launchnav/internal/report"
)

type (
	pdfFunc  func(ctx context.Context, html string, spec report.PageSpec) ([]byte, error)
	docxFunc func(ctx context.Context, html string) ([]byte, error)
)

// Service provides launch report export functionality
type Service struct {
	logger *zap.Logger
	pdf    pdfFunc
	docx   docxFunc
}

// NewService creates an export service backed by headless Chrome and pandoc.
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger, pdf: printPDF, docx: convertDOCX}
}

// Available reports which external converters are installed.
func (s *Service) Available() map[Format]bool {
	return map[Format]bool{
		FormatPDF:  chromeAvailable(),
		FormatDOCX: pandocAvailable(),
		FormatHTML: true,
		FormatText: true,
		FormatJSON: true,
	}
}

// Export paginates doc and renders the pages in the requested format.
func (s *Service) Export(ctx context.Context, doc flow.Document, req Request) (*Result, error) {
	spec := req.Page
	if spec.Height == 0 {
		spec = report.DefaultPageSpec
	}
	mode := req.Mode
	if mode == "" {
		mode = report.ModeSummary
	}
	format := req.Format
	if format == "" {
		format = FormatPDF
	}

	pages := report.Paginate(doc, mode, spec)
	base := sanitizeFilename(doc.Name) + "-" + string(mode)

	s.logger.Debug("export report",
		zap.String("document", doc.Name),
		zap.String("mode", string(mode)),
		zap.String("format", string(format)),
		zap.Int("pages", len(pages)))

	switch format {
	case FormatText:
		return &Result{
			Data:     []byte(RenderText(pages)),
			Filename: base + ".txt",
			MimeType: "text/plain; charset=utf-8",
			Pages:    len(pages),
		}, nil
	case FormatJSON:
		payload, err := json.Marshal(pages)
		if err != nil {
			return nil, fmt.Errorf("marshal pages: %w", err)
		}
		return &Result{Data: payload, Filename: base + ".json", MimeType: "application/json", Pages: len(pages)}, nil
	}

	html, err := RenderReportHTML(TemplateData{Title: doc.Name, Page: spec, Pages: pages})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatHTML:
		return &Result{Data: []byte(html), Filename: base + ".html", MimeType: "text/html; charset=utf-8", Pages: len(pages)}, nil
	case FormatPDF:
		data, err := s.pdf(ctx, html, spec)
		if err != nil {
			return nil, err
		}
		return &Result{Data: data, Filename: base + ".pdf", MimeType: "application/pdf", Pages: len(pages)}, nil
	case FormatDOCX:
		data, err := s.docx(ctx, html)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: base + ".docx",
			MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			Pages:    len(pages),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
