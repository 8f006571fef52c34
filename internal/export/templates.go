package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"launchnav/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"pt": func(v float64) string {
			return fmt.Sprintf("%.2fpt", v)
		},
		// Instructions carry baselines; CSS positions boxes by their top.
		"top": func(in report.Instruction) float64 {
			if in.Kind == report.KindText {
				return in.Y - in.Size
			}
			return in.Y
		},
		"isText": func(in report.Instruction) bool {
			return in.Kind == report.KindText
		},
	}

	templateContent, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		// Fallback to built-in template if file not found
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for report template rendering
type TemplateData struct {
	Title string
	Page  report.PageSpec
	Pages []report.Page
}

// RenderReportHTML renders paginated pages as fixed-size HTML pages whose
// elements sit at the instruction coordinates.
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderText joins the text lines, separating pages with a form feed.
func RenderText(pages []report.Page) string {
	var b strings.Builder
	for i, page := range pages {
		if i > 0 {
			b.WriteString("\f\n")
		}
		for _, line := range report.Lines([]report.Page{page}) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    @page { size: {{pt .Page.Width}} {{pt .Page.Height}}; margin: 0; }
    body { margin: 0; font-family: Helvetica, Arial, sans-serif; }
    .page { position: relative; width: {{pt .Page.Width}}; height: {{pt .Page.Height}}; page-break-after: always; overflow: hidden; }
    .page > * { position: absolute; }
  </style>
</head>
<body>
{{range .Pages}}<section class="page" data-page="{{.Number}}">
{{range .Instructions}}{{if isText .}}<div style="left: {{pt .X}}; top: {{pt (top .)}}; font-size: {{pt .Size}};{{if .Bold}} font-weight: 700;{{end}}">{{.Text}}</div>
{{else}}<div style="left: {{pt .X}}; top: {{pt .Y}}; width: {{pt .W}}; height: {{pt .H}}; background: {{.Fill}};"></div>
{{end}}{{end}}</section>
{{end}}
</body>
</html>`
