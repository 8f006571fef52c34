package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"launchnav/internal/export"
	"launchnav/internal/report"
)

var reportFlags struct {
	mode   string
	format string
	out    string
}

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Paginate the launch report and render it",
	Long: "Paginates the document in summary or detailed mode and renders the\n" +
		"pages as text, JSON draw instructions, HTML, PDF (headless Chrome) or\n" +
		"DOCX (pandoc).",
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.mode, "mode", string(report.ModeSummary), "Report mode (summary, detailed)")
	f.StringVar(&reportFlags.format, "format", string(export.FormatText), "Output format (text, json, html, pdf, docx)")
	f.StringVarP(&reportFlags.out, "out", "o", "", "Output file (default stdout for text formats)")
}

func runReport(cmd *cobra.Command, args []string) error {
	format, ok := export.ParseFormat(reportFlags.format)
	if !ok {
		return fmt.Errorf("%w: %s", export.ErrUnsupportedFormat, reportFlags.format)
	}
	if reportFlags.out == "" && (format == export.FormatPDF || format == export.FormatDOCX) {
		return fmt.Errorf("--out is required for %s output", format)
	}
	doc := loadDocument(args[0])

	result, err := export.NewService(logger).Export(cmd.Context(), doc, export.Request{
		Mode:   report.ParseMode(reportFlags.mode),
		Format: format,
	})
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}

	if reportFlags.out == "" {
		_, err := cmd.OutOrStdout().Write(result.Data)
		return err
	}
	if err := os.WriteFile(reportFlags.out, result.Data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Info("report written",
		zap.String("path", reportFlags.out),
		zap.Int("pages", result.Pages))
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d pages)\n", reportFlags.out, result.Pages)
	return nil
}
