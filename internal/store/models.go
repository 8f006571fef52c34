package store

import (
	"context"
	"errors"
	"time"

	"launchnav/internal/flow"
)

// BackupFile is never offered as a launch document.
const BackupFile = "example_backup.json"

var (
	ErrInvalidName = errors.New("invalid launch document name")
	ErrNotFound    = errors.New("launch document not found")
)

// DocumentInfo describes one stored launch document.
type DocumentInfo struct {
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	StepCount int       `json:"stepCount"`
	Default   bool      `json:"default"`
	Valid     bool      `json:"valid"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Catalog stores launch documents by file name.
type Catalog interface {
	List(ctx context.Context) ([]DocumentInfo, error)
	// Load never fails on a missing or malformed document; it reports a
	// fallback through flow.LoadResult. Errors are infrastructure failures.
	Load(ctx context.Context, name string) (flow.LoadResult, error)
	Save(ctx context.Context, name string, doc flow.Document) error
}

func sortDefaultFirst(infos []DocumentInfo) {
	for i := range infos {
		if infos[i].Default && i > 0 {
			def := infos[i]
			copy(infos[1:i+1], infos[:i])
			infos[0] = def
			return
		}
	}
}
