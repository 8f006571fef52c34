package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadResult is the outcome of a load that never fails. FellBack reports
// that Document is the built-in default; Err carries the reason.
type LoadResult struct {
	Document Document
	FellBack bool
	Err      error
}

// Load reads a launch document from r. Any read or parse failure yields the
// default document. The result is normalized.
func Load(r io.Reader) LoadResult {
	data, err := io.ReadAll(r)
	if err != nil {
		return Fallback(fmt.Errorf("%w: read: %v", ErrParse, err))
	}
	return LoadBytes(data)
}

// LoadBytes is Load over an in-memory body.
func LoadBytes(data []byte) LoadResult {
	doc, err := Decode(data)
	if err != nil {
		return Fallback(err)
	}
	Normalize(&doc)
	return LoadResult{Document: doc}
}

// LoadFile opens path and loads it; a missing file falls back like a
// malformed one.
func LoadFile(path string) LoadResult {
	f, err := os.Open(path)
	if err != nil {
		return Fallback(fmt.Errorf("%w: open %s: %v", ErrParse, path, err))
	}
	defer f.Close()
	return Load(f)
}

// Fallback is the normalized default document, recording why it was used.
func Fallback(cause error) LoadResult {
	doc := Default()
	Normalize(&doc)
	return LoadResult{Document: doc, FellBack: true, Err: cause}
}

// Decode parses either the canonical {"steps": [...]} shape or the legacy
// {"nodes": [...]} shape. It does not normalize.
func Decode(data []byte) (Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if top == nil {
		return Document{}, fmt.Errorf("%w: document is null", ErrParse)
	}

	doc := Document{
		Name:        textField(top, "name"),
		Description: textField(top, "description"),
	}

	var (
		items   []json.RawMessage
		convert func(fields) Step
	)
	if raw, ok := top["steps"]; ok {
		convert = decodeStep
		if err := json.Unmarshal(raw, &items); err != nil {
			return Document{}, fmt.Errorf("%w: steps: %v", ErrParse, err)
		}
	} else if raw, ok := top["nodes"]; ok {
		convert = migrateNode
		if err := json.Unmarshal(raw, &items); err != nil {
			return Document{}, fmt.Errorf("%w: nodes: %v", ErrParse, err)
		}
	} else {
		return Document{}, fmt.Errorf("%w: neither steps nor nodes present", ErrParse)
	}

	doc.Steps = make([]Step, 0, len(items))
	for i, item := range items {
		var f fields
		if err := json.Unmarshal(item, &f); err != nil || f == nil {
			return Document{}, fmt.Errorf("%w: step %d is not an object", ErrParse, i)
		}
		doc.Steps = append(doc.Steps, convert(f))
	}
	return doc, nil
}

// Encode renders the canonical indented form.
func Encode(doc Document) ([]byte, error) {
	out := doc.Clone()
	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal launch document: %w", err)
	}
	return append(payload, '\n'), nil
}

// SaveFile replaces path with the encoded document. The bytes go to a temp
// file in the same directory which is renamed over path, so a failed save
// leaves the previous file as it was.
func SaveFile(doc Document, path string) (err error) {
	payload, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp in %s: %v", ErrWrite, dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(payload); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrWrite, tmpName, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %v", ErrWrite, tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrWrite, tmpName, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %v", ErrWrite, tmpName, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: rename onto %s: %v", ErrWrite, path, err)
	}
	return nil
}

// fields is one raw step object. Lookups take several keys so canonical
// files written by hand may still use the legacy spellings.
type fields map[string]json.RawMessage

func decodeStep(f fields) Step {
	return Step{
		ID:          f.id(),
		Title:       f.text("title", "label"),
		Phase:       Phase(f.text("phase")),
		Path:        Path(f.text("path")),
		Description: f.text("description"),
		Notes:       f.text("notes"),
		Owner:       f.text("owner"),
		Timeline:    f.text("timeline", "time_estimate"),
		Volume:      f.volume("volume", "volume_pct"),
		Success:     f.rate("success", "success_rate"),
		Status:      Status(f.text("status")),
		Order:       f.order(),
		Links:       f.list("links"),
		Attachments: f.list("attachments"),
	}
}

// migrateNode maps a legacy dashboard node onto a Step. Legacy rates were
// stored with their percent sign, which is dropped here.
func migrateNode(f fields) Step {
	step := decodeStep(f)
	step.Title = f.text("label", "title")
	step.Timeline = f.text("time_estimate", "timeline")
	step.Volume = f.volume("volume_pct", "volume")
	rate := strings.TrimSpace(string(f.rate("success_rate", "success")))
	step.Success = Rate(strings.TrimSpace(strings.TrimSuffix(rate, "%")))
	return step
}

func (f fields) raw(keys ...string) (json.RawMessage, bool) {
	for _, key := range keys {
		raw, ok := f[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		return raw, true
	}
	return nil, false
}

func (f fields) text(keys ...string) string {
	raw, ok := f.raw(keys...)
	if !ok {
		return ""
	}
	return rawText(raw)
}

func (f fields) id() string {
	raw, ok := f.raw("id")
	if !ok {
		return ""
	}
	return strings.TrimSpace(rawText(raw))
}

func (f fields) rate(keys ...string) Rate {
	raw, ok := f.raw(keys...)
	if !ok {
		return ""
	}
	return rateFromRaw(raw)
}

func (f fields) volume(keys ...string) float64 {
	raw, ok := f.raw(keys...)
	if !ok {
		return DefaultVolume
	}
	v, ok := rawNumber(raw)
	if !ok {
		return DefaultVolume
	}
	return v
}

func (f fields) order() int {
	raw, ok := f.raw("order")
	if !ok {
		return 0
	}
	v, ok := rawNumber(raw)
	if !ok {
		return 0
	}
	return int(v)
}

// list accepts a JSON array of strings or a newline separated string.
func (f fields) list(key string) []string {
	raw, ok := f.raw(key)
	if !ok {
		return []string{}
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return ParseLinks(rawText(raw))
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return out
}

func textField(m map[string]json.RawMessage, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	return rawText(raw)
}

// rawText renders strings as-is and numbers or booleans as their literal.
func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

func rawNumber(raw json.RawMessage) (float64, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	return Rate(s).Value()
}
