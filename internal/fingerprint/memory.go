package fingerprint

import (
	"context"
	"sync"
)

// MemoryStore keeps fingerprint records in process memory. It is the default
// when no durable storage is configured.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// Compile-time check to ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Save(ctx context.Context, sessionID string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[sessionID] = rec
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[sessionID]
	return rec, ok, nil
}

func (m *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, sessionID)
	return nil
}
