package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchnav/internal/flow"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"wave1_launch.json", "wave1_launch.json", false},
		{"wave1", "wave1.json", false},
		{" Wave 1.JSON ", "Wave 1.JSON", false},
		{"../../etc/passwd", "passwd.json", false},
		{`..\secret.json`, "secret.json", false},
		{"", "", true},
		{"..", "", true},
		{".hidden.json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := CleanName(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidName), "err = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileStoreListDefaultFirstAndSkipsBackup(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("alpha.json", `{"name":"Alpha","steps":[{"id":"1","title":"a"}]}`)
	write("default_flow.json", `{"name":"Default","steps":[]}`)
	write(BackupFile, `{"steps":[]}`)
	write("broken.json", `{`)
	write("notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	infos, err := NewFileStore(dir, "default_flow.json").List(context.Background())
	require.NoError(t, err)

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	assert.Equal(t, []string{"default_flow.json", "alpha.json", "broken.json"}, names)
	assert.True(t, infos[0].Default)
	assert.Equal(t, "Alpha", infos[1].Title)
	assert.Equal(t, 1, infos[1].StepCount)
	assert.False(t, infos[2].Valid)
}

func TestFileStoreListMissingDir(t *testing.T) {
	infos, err := NewFileStore(filepath.Join(t.TempDir(), "absent"), "default_flow.json").List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestFileStoreSaveAsAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s := NewFileStore(dir, "default_flow.json")
	ctx := context.Background()

	missing, err := s.Load(ctx, "default_flow.json")
	require.NoError(t, err)
	assert.True(t, missing.FellBack)

	doc := missing.Document
	doc.Name = "Wave 2"
	require.NoError(t, s.Save(ctx, "wave2", doc))

	_, err = os.Stat(filepath.Join(dir, "wave2.json"))
	require.NoError(t, err)

	loaded, err := s.Load(ctx, "wave2.json")
	require.NoError(t, err)
	assert.False(t, loaded.FellBack)
	assert.Equal(t, "Wave 2", loaded.Document.Name)
	assert.Equal(t, doc.Steps, loaded.Document.Steps)

	_, err = s.Load(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestFileStoreSaveFailureIsWriteError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := NewFileStore(filepath.Join(blocker, "data"), "default_flow.json").Save(context.Background(), "wave", flow.Default())
	assert.ErrorIs(t, err, flow.ErrWrite)
}
