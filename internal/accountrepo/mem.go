package accountrepo

import (
	"context"
	"encoding/json"
	"sync"
)

// MemStore keeps the last snapshot in memory. It is used for ephemeral runs
// and in tests.
type MemStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Load returns a copy of the last saved snapshot.
func (s *MemStore) Load(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	if s.data == nil {
		return snap, nil
	}

	err := json.Unmarshal(s.data, &snap)

	return snap, err
}

// Save replaces the stored snapshot.
func (s *MemStore) Save(ctx context.Context, snap Snapshot) error {
	snap.Meta.Storage = "memory"

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()

	return nil
}
