// Package statestore is the append-only workflow state log. Every Append
// writes a new record; records are never updated, deleted or compacted.
package statestore

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ErrDigestMismatch is returned by Verify when the state was altered after hashing.
var ErrDigestMismatch = errors.New("snapshot digest mismatch")

// Snapshot is one persisted workflow state record.
type Snapshot struct {
	Timestamp  time.Time       `json:"timestamp"`
	UpdatedAt  time.Time       `json:"updated_at"`
	WorkflowID string          `json:"workflow_id"`
	Agent      string          `json:"agent_name"`
	Status     string          `json:"status"`
	Digest     string          `json:"digest"`
	State      json.RawMessage `json:"state"`
}

// NewSnapshot serializes state and computes its digest. Timestamps are
// assigned by the store on Append.
func NewSnapshot(workflowID, agent, status string, state any) (Snapshot, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to serialize state for %s: %w", workflowID, err)
	}
	return Snapshot{
		WorkflowID: workflowID,
		Agent:      agent,
		Status:     status,
		State:      raw,
		Digest:     Digest(raw),
	}, nil
}

// Digest returns the hex BLAKE2b-256 of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify checks the stored digest against the state bytes.
func (s *Snapshot) Verify() error {
	if Digest(s.State) != s.Digest {
		return fmt.Errorf("%w: workflow %s at %s", ErrDigestMismatch, s.WorkflowID, s.Timestamp.Format(time.RFC3339Nano))
	}
	return nil
}

// Decode unmarshals the state into v.
func (s *Snapshot) Decode(v any) error {
	if err := json.Unmarshal(s.State, v); err != nil {
		return fmt.Errorf("failed to decode state for %s: %w", s.WorkflowID, err)
	}
	return nil
}

// Appender is the write side used by the orchestrator.
type Appender interface {
	Append(ctx context.Context, snap Snapshot) error
}

// Store is the full state store surface.
type Store interface {
	Appender
	// List returns snapshots in append order; an empty workflowID lists all.
	List(ctx context.Context, workflowID string) ([]Snapshot, error)
	Close() error
}

// validate rejects snapshots that would corrupt the log.
func validate(snap *Snapshot) error {
	if snap.WorkflowID == "" {
		return fmt.Errorf("snapshot has no workflow id")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, snap.State); err != nil || compact.Len() == 0 {
		return fmt.Errorf("snapshot for %s has invalid state", snap.WorkflowID)
	}
	snap.State = compact.Bytes()
	if snap.Digest == "" {
		snap.Digest = Digest(snap.State)
	}
	return nil
}

// sequencer hands out strictly increasing timestamps, so two appends in the
// same clock tick still order correctly.
type sequencer struct {
	now  func() time.Time
	last time.Time
	mu   sync.Mutex
}

func newSequencer(now func() time.Time) *sequencer {
	if now == nil {
		now = time.Now
	}
	return &sequencer{now: now}
}

// seed raises the floor, e.g. to the newest timestamp already on disk.
func (s *sequencer) seed(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.After(s.last) {
		s.last = t
	}
}

func (s *sequencer) next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

// stamp assigns the next timestamp to snap.
func (s *sequencer) stamp(snap *Snapshot) {
	t := s.next()
	snap.Timestamp = t
	snap.UpdatedAt = t
}
