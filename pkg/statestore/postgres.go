package statestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
)

var postgresSchema = []string{`
CREATE TABLE IF NOT EXISTS workflow_snapshots (
	id BIGSERIAL PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	timestamp_ns BIGINT NOT NULL,
	agent TEXT NOT NULL,
	status TEXT NOT NULL,
	state JSON NOT NULL,
	digest TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_workflow_snapshots_workflow ON workflow_snapshots (workflow_id, timestamp_ns)`,
}

// PostgresStore appends snapshots to a PostgreSQL table through a pgx pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	seq    *sequencer
	logger *logx.Logger

	// mu serializes stamp and insert so row order matches timestamp order.
	mu sync.Mutex
}

// NewPostgresStore connects to dsn, creates the table if needed and seeds
// the timestamp floor from existing rows.
func NewPostgresStore(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres connection string: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connection ping failed: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create snapshot table: %w", err)
		}
	}

	s := &PostgresStore{
		pool:   pool,
		seq:    newSequencer(time.Now),
		logger: logx.NewLogger("state-postgres"),
	}

	var newest *int64
	if err := pool.QueryRow(ctx, `SELECT MAX(timestamp_ns) FROM workflow_snapshots`).Scan(&newest); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to read newest snapshot: %w", err)
	}
	if newest != nil {
		s.seq.seed(time.Unix(0, *newest).UTC())
	}

	s.logger.Info("📦 Postgres state store ready")
	return s, nil
}

// Append inserts a new row.
func (s *PostgresStore) Append(ctx context.Context, snap Snapshot) error {
	if err := validate(&snap); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq.stamp(&snap)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_snapshots (workflow_id, timestamp_ns, agent, status, state, digest, updated_at)
		VALUES ($1, $2, $3, $4, $5::json, $6, $7)`,
		snap.WorkflowID, snap.Timestamp.UnixNano(), snap.Agent, snap.Status, string(snap.State), snap.Digest, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to append snapshot for %s: %w", snap.WorkflowID, err)
	}
	return nil
}

// List implements Store. The json column keeps the text as written, so digests verify.
func (s *PostgresStore) List(ctx context.Context, workflowID string) ([]Snapshot, error) {
	query := `SELECT workflow_id, timestamp_ns, agent, status, state::text, digest, updated_at FROM workflow_snapshots`
	var args []any
	if workflowID != "" {
		query += ` WHERE workflow_id = $1`
		args = append(args, workflowID)
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
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
		)
		if err := rows.Scan(&snap.WorkflowID, &tsNanos, &snap.Agent, &snap.Status, &state, &snap.Digest, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.Timestamp = time.Unix(0, tsNanos).UTC()
		snap.UpdatedAt = snap.UpdatedAt.UTC()
		snap.State = []byte(state)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return out, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
