package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"launchnav/internal/flow"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, s
}

func testRecord(id string) Record {
	doc := flow.Default()
	flow.Normalize(&doc)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return Record{
		ID:           id,
		DocumentName: "default_flow.json",
		Role:         "editor",
		Document:     doc,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url", time.Hour); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestRedisPutAndGet(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	record := testRecord("sess-1")
	record.Document.Steps[0].Success = "87,5"
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !s.Exists("launch-session:sess-1") {
		t.Fatal("expected prefixed key in redis")
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.DocumentName != record.DocumentName || got.Role != "editor" {
		t.Errorf("unexpected record: %+v", got)
	}
	if len(got.Document.Steps) != len(record.Document.Steps) {
		t.Fatalf("expected %d steps, got %d", len(record.Document.Steps), len(got.Document.Steps))
	}
	if got.Document.Steps[0].Success != "87,5" {
		t.Errorf("success text not preserved: %q", got.Document.Steps[0].Success)
	}
	if !got.CreatedAt.Equal(record.CreatedAt) {
		t.Errorf("created at = %v", got.CreatedAt)
	}
}

func TestRedisSessionExpires(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Put(ctx, testRecord("sess-2")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	s.FastForward(30 * time.Minute)
	if _, err := store.Get(ctx, "sess-2"); err != nil {
		t.Fatalf("Get within ttl failed: %v", err)
	}

	// Get slid the expiry forward.
	s.FastForward(45 * time.Minute)
	if _, err := store.Get(ctx, "sess-2"); err != nil {
		t.Fatalf("Get after refresh failed: %v", err)
	}

	s.FastForward(2 * time.Hour)
	if _, err := store.Get(ctx, "sess-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestRedisDelete(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Put(ctx, testRecord("sess-3")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "sess-3"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "sess-3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete for missing session failed: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	record := testRecord("mem-1")
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Mutating the caller's copy must not change the stored record.
	record.Document.Steps[0].Title = "changed"
	got, err := store.Get(ctx, "mem-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Document.Steps[0].Title == "changed" {
		t.Error("stored record shares memory with caller")
	}
	got.Document.Steps[0].Title = "changed again"
	again, _ := store.Get(ctx, "mem-1")
	if again.Document.Steps[0].Title == "changed again" {
		t.Error("returned record shares memory with store")
	}

	now = now.Add(2 * time.Hour)
	if _, err := store.Get(ctx, "mem-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expected no live sessions, got %d", store.Len())
	}
}

func TestMemoryStoreSweepsAbandonedSessions(t *testing.T) {
	store := NewMemoryStore(time.Second)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if err := store.Put(ctx, testRecord(fmt.Sprintf("old-%d", i))); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	now = now.Add(1100 * time.Millisecond)
	if err := store.Put(ctx, testRecord("fresh")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	store.mu.Lock()
	held := len(store.records)
	store.mu.Unlock()
	if held != 1 {
		t.Errorf("expected only the fresh record to be held, got %d", held)
	}

	now = now.Add(2 * time.Second)
	if removed := store.Sweep(); removed != 1 {
		t.Errorf("expected Sweep to remove 1 record, got %d", removed)
	}
}
