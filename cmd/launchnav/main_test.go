package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchnav/internal/flow"
)

const legacyFile = `{
	"name": "Wave 1",
	"description": "legacy",
	"nodes": [
		{"id": 1, "label": "Kick-off", "phase": "Pilot & Initiate", "success_rate": "90%"},
		{"id": 2, "label": "Go-live", "phase": "Execute & Adopt", "success_rate": "80"}
	]
}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	metricsFlags.json, metricsFlags.table = false, false
	normalizeFlags.write = false
	reportFlags.out, reportFlags.format, reportFlags.mode = "", "text", "summary"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestMetricsCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wave.json", legacyFile)

	out, err := execute(t, "metrics", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Steps:         2")
	assert.Contains(t, out, "Avg. success:  85.0%")

	out, err = execute(t, "metrics", "--json", path)
	require.NoError(t, err)
	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.EqualValues(t, 2, summary["stepCount"])
	assert.InDelta(t, 85.0, summary["avgSuccess"], 1e-9)
}

func TestMetricsCommandFallsBackOnMissingFile(t *testing.T) {
	out, err := execute(t, "metrics", filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Contains(t, out, flow.Default().Name)
}

func TestLayoutCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wave.json", legacyFile)

	out, err := execute(t, "layout", "--width", "500", path)
	require.NoError(t, err)
	var diagram struct {
		Nodes []map[string]any `json:"nodes"`
		Links []map[string]any `json:"links"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &diagram))
	assert.Len(t, diagram.Nodes, 2)
	assert.Len(t, diagram.Links, 1)
}

func TestNormalizeWriteMigratesLegacyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wave.json", legacyFile)

	out, err := execute(t, "normalize", "--write", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Normalized")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"steps"`)
	assert.NotContains(t, string(data), `"nodes"`)

	loaded := flow.LoadFile(path)
	require.False(t, loaded.FellBack)
	assert.Equal(t, "Kick-off", loaded.Document.Steps[0].Title)
}

func TestNormalizeRefusesUnreadableFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.json", "{not json")

	_, err := execute(t, "normalize", "--write", path)
	require.Error(t, err)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "{not json", string(data))
}

func TestReportCommandText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wave.json", legacyFile)

	out, err := execute(t, "report", "--mode", "detailed", "--format", "text", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wave 1")
	assert.Contains(t, out, "Go-live")

	_, err = execute(t, "report", "--format", "pdf", path)
	require.Error(t, err)

	_, err = execute(t, "report", "--format", "odt", path)
	require.Error(t, err)
}

func TestListCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", legacyFile)
	writeFile(t, dir, "default_flow.json", legacyFile)
	writeFile(t, dir, "example_backup.json", legacyFile)
	writeFile(t, dir, "broken.json", "nope")

	out, err := execute(t, "list", "--dir", dir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "default_flow.json"))
	assert.Contains(t, out, "(unreadable)")
	assert.NotContains(t, out, "example_backup.json")
}
