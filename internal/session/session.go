// Package session holds editing sessions: one working copy of a launch
// document per session, kept in memory or in Redis.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"launchnav/internal/flow"
)

var ErrNotFound = errors.New("session not found or expired")

// Record is the state of one editing session.
type Record struct {
	ID           string        `json:"id"`
	DocumentName string        `json:"document_name"`
	Role         string        `json:"role"`
	Document     flow.Document `json:"document"`
	// Dirty is set by edits and cleared by an explicit save.
	Dirty     bool      `json:"dirty"`
	FellBack  bool      `json:"fell_back"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists session records. Put refreshes the record's expiry.
type Store interface {
	Get(ctx context.Context, id string) (Record, error)
	Put(ctx context.Context, record Record) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process. Expired records are dropped on
// access and swept on every Put.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[string]memoryEntry
}

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, records: map[string]memoryEntry{}}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.records, id)
		return Record{}, ErrNotFound
	}
	entry.expiresAt = s.now().Add(s.ttl)
	s.records[id] = entry
	record := entry.record
	record.Document = record.Document.Clone()
	return record, nil
}

func (s *MemoryStore) Put(_ context.Context, record Record) error {
	record.Document = record.Document.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.records[record.ID] = memoryEntry{record: record, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Len counts live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.records)
}

// Sweep drops every expired record and reports how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

func (s *MemoryStore) sweepLocked() int {
	now := s.now()
	removed := 0
	for id, entry := range s.records {
		if !now.Before(entry.expiresAt) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}
