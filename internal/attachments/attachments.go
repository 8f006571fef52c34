// Package attachments stores files uploaded against launch steps. Only the
// relative key is recorded on the step; contents are never read back.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"launchnav/internal/util"
)

var ErrInvalidFilename = errors.New("invalid attachment filename")

// Store writes attachment bytes under a key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// Key builds attachments/launch_<document>/step_<id>/<basename>. The
// document name has spaces replaced by underscores; the step id is escaped
// so distinct ids never share a directory.
func Key(documentName, stepID, filename string) (string, error) {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return path.Join(
		"attachments",
		"launch_"+util.Slug(documentName),
		"step_"+util.EscapeSegment(stepID),
		base,
	), nil
}

// ContentType guesses a MIME type from the key's extension.
func ContentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// LocalStore writes attachments below a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create attachment dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return fmt.Errorf("create attachment temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		return fmt.Errorf("write attachment: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close attachment: %w", err)
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("store attachment: %w", err)
	}
	return nil
}
