package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"launchnav/internal/flow"
)

var normalizeFlags struct {
	write bool
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file>",
	Short: "Repair ids, enumerations and ordering; migrate legacy files",
	Long: "Loads the file (including the legacy nodes shape), normalizes it and\n" +
		"prints the canonical JSON. With --write the file is rewritten in place.",
	Args: cobra.ExactArgs(1),
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().BoolVarP(&normalizeFlags.write, "write", "w", false, "Rewrite the file in place")
}

func runNormalize(cmd *cobra.Command, args []string) error {
	path := args[0]
	result := flow.LoadFile(path)
	if result.FellBack {
		// Never rewrite a file that did not load.
		return fmt.Errorf("load %s: %w", path, result.Err)
	}

	if !normalizeFlags.write {
		data, err := flow.Encode(result.Document)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := flow.SaveFile(result.Document, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Normalized %s (%d steps)\n", path, len(result.Document.Steps))
	return nil
}
