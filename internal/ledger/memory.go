package ledger

import "context"

// MemoryStore keeps the ledger in memory only.
type MemoryStore struct {
	*seenSet
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seenSet: newSeenSet()}
}

func (m *MemoryStore) Load(context.Context) (LoadStatus, error) {
	if m.Len() == 0 {
		return StatusAbsent, nil
	}
	return StatusLoaded, nil
}

func (m *MemoryStore) Flush(context.Context) error {
	m.takePending()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
