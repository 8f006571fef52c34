package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"launchnav/internal/flow"
	"launchnav/internal/metrics"
	"launchnav/internal/report"
)

var metricsFlags struct {
	json  bool
	table bool
}

var metricsCmd = &cobra.Command{
	Use:   "metrics <file>",
	Short: "Print step counts, average success and legend counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetrics,
}

func init() {
	f := metricsCmd.Flags()
	f.BoolVar(&metricsFlags.json, "json", false, "Print the summary as JSON")
	f.BoolVar(&metricsFlags.table, "table", false, "Also print the steps table")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	doc := loadDocument(args[0])
	summary := metrics.Compute(doc)
	out := cmd.OutOrStdout()

	if metricsFlags.json {
		return writeJSON(out, summary)
	}

	fmt.Fprintf(out, "Document:      %s\n", doc.Name)
	fmt.Fprintf(out, "Steps:         %d\n", summary.StepCount)
	fmt.Fprintf(out, "Active:        %d\n", summary.ActiveCount)
	fmt.Fprintf(out, "Avg. success:  %s\n", summary.AvgSuccessText())
	fmt.Fprintln(out, "Phases:")
	for _, phase := range flow.Phases {
		fmt.Fprintf(out, "  %-20s %d\n", phase, summary.PhaseCounts[phase])
	}
	fmt.Fprintln(out, "Paths:")
	for _, path := range flow.Paths {
		fmt.Fprintf(out, "  %-20s %d\n", path, summary.PathCounts[path])
	}
	fmt.Fprintln(out, "Status:")
	for _, status := range flow.Statuses {
		fmt.Fprintf(out, "  %-20s %d\n", status, summary.StatusCounts[status])
	}
	if metricsFlags.table {
		fmt.Fprintln(out)
		fmt.Fprint(out, report.TableText(report.Table(doc)))
	}
	return nil
}
