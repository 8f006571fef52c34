package main

import (
	"github.com/spf13/cobra"

	"launchnav/internal/layout"
)

var layoutFlags struct {
	width  float64
	height float64
	margin float64
}

var layoutCmd = &cobra.Command{
	Use:   "layout <file>",
	Short: "Print the flow diagram nodes and links as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayout,
}

func init() {
	f := layoutCmd.Flags()
	f.Float64Var(&layoutFlags.width, "width", layout.DefaultCanvas.Width, "Canvas width")
	f.Float64Var(&layoutFlags.height, "height", layout.DefaultCanvas.Height, "Canvas height")
	f.Float64Var(&layoutFlags.margin, "margin", layout.DefaultCanvas.Margin, "Canvas margin")
}

func runLayout(cmd *cobra.Command, args []string) error {
	doc := loadDocument(args[0])
	diagram := layout.Compute(doc, layout.Canvas{
		Width:  layoutFlags.width,
		Height: layoutFlags.height,
		Margin: layoutFlags.margin,
	})
	return writeJSON(cmd.OutOrStdout(), diagram)
}
