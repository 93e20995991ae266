package ticket

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
)

// MemoryRegistry keeps tickets in process memory.
type MemoryRegistry struct {
	logger  *logx.Logger
	now     func() time.Time
	byID    map[string]*Ticket
	baseURL string
	tickets []*Ticket
	counter int64
	mu      sync.Mutex
}

// NewMemoryRegistry creates an empty registry. An empty baseURL uses DefaultBaseURL.
func NewMemoryRegistry(baseURL string) *MemoryRegistry {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &MemoryRegistry{
		logger:  logx.NewLogger("jira-mcp"),
		now:     time.Now,
		byID:    make(map[string]*Ticket),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Create assigns the next sequence number and stores the ticket.
func (r *MemoryRegistry) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors pass through
	}
	req = req.withDefaults()
	if err := req.validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.counter++
	id := FormatID(req.Type, r.counter)
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
	r.tickets = append(r.tickets, t)
	r.byID[id] = t
	r.mu.Unlock()

	r.logger.Info("Ticket created: %s - %s", id, t.Title)
	return &CreateResult{Success: true, TicketID: id, TicketURL: t.URL, Ticket: t.clone()}, nil
}

// Get returns a copy of the ticket or ErrTicketNotFound.
func (r *MemoryRegistry) Get(_ context.Context, id string) (*Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	return t.clone(), nil
}

// Search returns up to limit tickets in creation order.
func (r *MemoryRegistry) Search(_ context.Context, query string, limit int) ([]*Ticket, error) {
	limit = normalizeLimit(limit)
	lower := strings.ToLower(query)

	r.mu.Lock()
	defer r.mu.Unlock()
	results := make([]*Ticket, 0, min(limit, len(r.tickets)))
	for _, t := range r.tickets {
		if len(results) == limit {
			break
		}
		if t.matches(lower) {
			results = append(results, t.clone())
		}
	}
	r.logger.Debug("Search found %d tickets for: %s", len(results), query)
	return results, nil
}
