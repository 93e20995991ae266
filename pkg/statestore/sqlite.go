package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
)

// SQLiteStore appends snapshots to the shared database. The database
// handle belongs to the caller; Close leaves it open.
type SQLiteStore struct {
	db     *sql.DB
	seq    *sequencer
	logger *logx.Logger

	// mu serializes stamp and insert so row order matches timestamp order.
	mu sync.Mutex
}

// NewSQLiteStore wraps a database opened with persistence.Open.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{
		db:     db,
		seq:    newSequencer(time.Now),
		logger: logx.NewLogger("state-sqlite"),
	}

	var newest sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(timestamp_ns) FROM workflow_snapshots`).Scan(&newest); err != nil {
		return nil, fmt.Errorf("failed to read newest snapshot: %w", err)
	}
	if newest.Valid {
		s.seq.seed(time.Unix(0, newest.Int64).UTC())
	}
	return s, nil
}

// Append inserts a new row.
func (s *SQLiteStore) Append(ctx context.Context, snap Snapshot) error {
	if err := validate(&snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq.stamp(&snap)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_snapshots (workflow_id, timestamp_ns, agent, status, state, digest, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.WorkflowID, snap.Timestamp.UnixNano(), snap.Agent, snap.Status, string(snap.State), snap.Digest,
		snap.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append snapshot for %s: %w", snap.WorkflowID, err)
	}
	s.logger.Debug("Appended snapshot workflow=%s status=%s", snap.WorkflowID, snap.Status)
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, workflowID string) ([]Snapshot, error) {
	query := `SELECT workflow_id, timestamp_ns, agent, status, state, digest, updated_at FROM workflow_snapshots`
	var args []any
	if workflowID != "" {
		query += ` WHERE workflow_id = ?`
		args = append(args, workflowID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			snap    Snapshot
			tsNanos int64
			state   string
			updated string
		)
		if err := rows.Scan(&snap.WorkflowID, &tsNanos, &snap.Agent, &snap.Status, &state, &snap.Digest, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.Timestamp = time.Unix(0, tsNanos).UTC()
		snap.State = []byte(state)
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			snap.UpdatedAt = t
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return out, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return nil }
