package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"launchnav/internal/flow"
)

// CleanName reduces a user supplied file name to a bare "*.json" name inside
// the data directory. Directory parts are dropped.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	base := filepath.Base(name)
	if name == "" || base == "." || base == "/" || base == ".." || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !strings.EqualFold(filepath.Ext(base), ".json") {
		base += ".json"
	}
	return base, nil
}

// FileStore keeps one JSON file per launch document in a directory.
type FileStore struct {
	dir         string
	defaultName string
}

func NewFileStore(dir, defaultName string) *FileStore {
	return &FileStore{dir: dir, defaultName: defaultName}
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Path(name string) (string, error) {
	clean, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, clean), nil
}

// List returns the *.json files of the directory, default document first,
// the rest by name. The backup file is skipped.
func (s *FileStore) List(ctx context.Context) ([]DocumentInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []DocumentInfo{}, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	infos := make([]DocumentInfo, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".json") || name == BackupFile {
			continue
		}
		infos = append(infos, s.describe(name, entry))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	sortDefaultFirst(infos)
	return infos, nil
}

func (s *FileStore) describe(name string, entry os.DirEntry) DocumentInfo {
	info := DocumentInfo{Name: name, Default: name == s.defaultName}
	if fi, err := entry.Info(); err == nil {
		info.UpdatedAt = fi.ModTime().UTC()
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return info
	}
	doc, err := flow.Decode(data)
	if err != nil {
		return info
	}
	info.Valid = true
	info.Title = doc.Name
	info.StepCount = len(doc.Steps)
	return info
}

func (s *FileStore) Load(_ context.Context, name string) (flow.LoadResult, error) {
	path, err := s.Path(name)
	if err != nil {
		return flow.LoadResult{}, err
	}
	return flow.LoadFile(path), nil
}

func (s *FileStore) Save(_ context.Context, name string, doc flow.Document) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create data dir: %v", flow.ErrWrite, err)
	}
	return flow.SaveFile(doc, path)
}
