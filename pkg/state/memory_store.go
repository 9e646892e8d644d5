package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a minimal in-memory Store intended for tests and examples.
// It keys records by Ref.Identifier().
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	snapshot Snapshot
	meta     Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}, now: time.Now}
}

func (s *MemoryStore) Load(_ context.Context, ref Ref) (Snapshot, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Snapshot{}, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, Meta{}, false, nil
	}
	return cloneSnapshot(record.snapshot), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, ref Ref, snapshot Snapshot, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkETag(meta.ETag, s.records[key].meta.ETag); err != nil {
		return Meta{}, err
	}
	stored, _, err := stamp(snapshot, meta, s.now())
	if err != nil {
		return Meta{}, err
	}
	s.records[key] = memoryRecord{snapshot: cloneSnapshot(snapshot), meta: stored}
	return cloneMeta(stored), nil
}
