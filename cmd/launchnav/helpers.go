package main

import (
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"launchnav/internal/flow"
)

// loadDocument loads path the way the editor does: an unreadable file
// yields the built-in default, reported as a warning.
func loadDocument(path string) flow.Document {
	result := flow.LoadFile(path)
	if result.FellBack {
		logger.Warn("using default launch document",
			zap.String("path", path),
			zap.Error(result.Err))
	}
	return result.Document
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
