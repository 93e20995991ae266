package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/statestore"
)

// ErrStoreUnavailable is returned by FailingStateStore.
var ErrStoreUnavailable = errors.New("state store unavailable")

// FailingStateStore rejects every Append and counts the attempts.
type FailingStateStore struct {
	Err      error
	attempts int
	mu       sync.Mutex
}

// NewFailingStateStore returns a store failing with ErrStoreUnavailable.
func NewFailingStateStore() *FailingStateStore {
	return &FailingStateStore{Err: ErrStoreUnavailable}
}

// Append implements statestore.Appender.
func (s *FailingStateStore) Append(_ context.Context, _ statestore.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	return s.Err
}

// Attempts returns how many appends were tried.
func (s *FailingStateStore) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}
