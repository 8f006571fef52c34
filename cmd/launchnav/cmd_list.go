package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"launchnav/internal/store"
)

var listFlags struct {
	dir         string
	defaultFile string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List launch files in a data directory",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listFlags.dir, "dir", ".", "Data directory")
	f.StringVar(&listFlags.defaultFile, "default", "default_flow.json", "Default launch file name")
}

func runList(cmd *cobra.Command, _ []string) error {
	infos, err := store.NewFileStore(listFlags.dir, listFlags.defaultFile).List(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTITLE\tSTEPS\tDEFAULT")
	for _, info := range infos {
		title := info.Title
		steps := fmt.Sprint(info.StepCount)
		if !info.Valid {
			title, steps = "(unreadable)", "-"
		}
		marker := ""
		if info.Default {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, title, steps, marker)
	}
	return tw.Flush()
}
