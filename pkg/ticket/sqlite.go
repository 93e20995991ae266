package ticket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/triage"
)

// SQLiteRegistry persists tickets in the shared database. The sequence
// counter is the highest stored seq, so numbering survives restarts.
type SQLiteRegistry struct {
	db      *sql.DB
	logger  *logx.Logger
	now     func() time.Time
	baseURL string
	mu      sync.Mutex
}

// NewSQLiteRegistry wraps a database opened with persistence.Open.
func NewSQLiteRegistry(db *sql.DB, baseURL string) *SQLiteRegistry {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &SQLiteRegistry{
		db:      db,
		logger:  logx.NewLogger("jira-sqlite"),
		now:     time.Now,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Create inserts the ticket under the next sequence number.
func (r *SQLiteRegistry) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	req = req.withDefaults()
	if err := req.validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin ticket transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM tickets`).Scan(&seq); err != nil {
		return nil, fmt.Errorf("failed to allocate ticket number: %w", err)
	}

	id := FormatID(req.Type, seq)
	t := &Ticket{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Type:        req.Type,
		Status:      StatusOpen,
		URL:         r.baseURL + "/" + id,
		CreatedAt:   r.now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tickets (id, seq, title, description, priority, type, status, assignee, url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		t.ID, seq, t.Title, t.Description, string(t.Priority), t.Type, t.Status, t.URL,
		t.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to insert ticket %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ticket %s: %w", id, err)
	}

	r.logger.Info("Ticket created: %s - %s", id, t.Title)
	return &CreateResult{Success: true, TicketID: id, TicketURL: t.URL, Ticket: t}, nil
}

const selectTicket = `SELECT id, title, description, priority, type, status, assignee, url, created_at FROM tickets`

// Get returns the ticket or ErrTicketNotFound.
func (r *SQLiteRegistry) Get(ctx context.Context, id string) (*Ticket, error) {
	row := r.db.QueryRowContext(ctx, selectTicket+` WHERE id = ?`, id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket %s: %w", id, err)
	}
	return t, nil
}

// Search scans tickets in creation order and returns up to limit matches.
// Matching happens in Go so case folding covers non-ASCII text.
func (r *SQLiteRegistry) Search(ctx context.Context, query string, limit int) ([]*Ticket, error) {
	limit = normalizeLimit(limit)
	lower := strings.ToLower(query)

	rows, err := r.db.QueryContext(ctx, selectTicket+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to search tickets: %w", err)
	}
	defer rows.Close()

	var results []*Ticket
	for rows.Next() && len(results) < limit {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		if t.matches(lower) {
			results = append(results, t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*Ticket, error) {
	var (
		t        Ticket
		priority string
		assignee sql.NullString
		created  string
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &priority, &t.Type, &t.Status, &assignee, &t.URL, &created); err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}
	t.Priority = triage.Priority(priority)
	if assignee.Valid {
		t.Assignee = &assignee.String
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		t.CreatedAt = ts
	}
	return &t, nil
}
