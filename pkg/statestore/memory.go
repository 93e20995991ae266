package statestore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the log in process memory.
type MemoryStore struct {
	seq       *sequencer
	snapshots []Snapshot
	mu        sync.Mutex
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seq: newSequencer(time.Now)}
}

// Append implements Appender.
func (m *MemoryStore) Append(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors pass through
	}
	if err := validate(&snap); err != nil {
		return err
	}
	snap.State = append([]byte(nil), snap.State...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq.stamp(&snap)
	m.snapshots = append(m.snapshots, snap)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, workflowID string) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Snapshot
	for i := range m.snapshots {
		if workflowID == "" || m.snapshots[i].WorkflowID == workflowID {
			out = append(out, m.snapshots[i])
		}
	}
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
