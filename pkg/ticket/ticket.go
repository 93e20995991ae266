// Package ticket is the issue-tracker registry: it creates tickets with
// sequential, type-prefixed identifiers and serves lookups and searches.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/triage"
)

// Defaults applied to a CreateRequest.
const (
	DefaultBaseURL = "https://jira.example.com/browse"
	DefaultTitle   = "Untitled"
	DefaultType    = "Task"
	StatusOpen     = "Open"

	// DefaultSearchLimit applies when Search is called with a non-positive limit.
	DefaultSearchLimit = 10
)

// ErrTicketNotFound is returned by Get for an unknown id.
var ErrTicketNotFound = errors.New("ticket not found")

// Ticket is a registry record.
type Ticket struct {
	CreatedAt   time.Time       `json:"created_at"`
	Assignee    *string         `json:"assignee"`
	ID          string          `json:"ticket_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    triage.Priority `json:"priority"`
	Type        string          `json:"ticket_type"`
	Status      string          `json:"status"`
	URL         string          `json:"ticket_url"`
}

// CreateRequest carries the caller-supplied ticket fields.
type CreateRequest struct {
	Title       string
	Description string
	Priority    triage.Priority
	Type        string
}

// CreateResult is returned by a successful Create.
type CreateResult struct {
	Ticket    *Ticket `json:"ticket"`
	TicketID  string  `json:"ticket_id"`
	TicketURL string  `json:"ticket_url"`
	Success   bool    `json:"success"`
}

// Registry is the full ticket registry surface.
type Registry interface {
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)
	Get(ctx context.Context, id string) (*Ticket, error)
	Search(ctx context.Context, query string, limit int) ([]*Ticket, error)
}

// Prefix returns the id prefix for a ticket type: its first three characters upper-cased.
func Prefix(ticketType string) string {
	upper := []rune(strings.ToUpper(ticketType))
	if len(upper) > 3 {
		upper = upper[:3]
	}
	return string(upper)
}

// FormatID builds "<PREFIX>-<n>".
func FormatID(ticketType string, n int64) string {
	return fmt.Sprintf("%s-%d", Prefix(ticketType), n)
}

// withDefaults fills empty fields the way the tracker does for sparse requests.
func (r CreateRequest) withDefaults() CreateRequest {
	if strings.TrimSpace(r.Title) == "" {
		r.Title = DefaultTitle
	}
	if strings.TrimSpace(r.Type) == "" {
		r.Type = DefaultType
	}
	if r.Priority == "" {
		r.Priority = triage.PriorityP3
	}
	return r
}

// validate rejects requests the tracker would refuse.
func (r CreateRequest) validate() error {
	if !r.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", r.Priority)
	}
	return nil
}

// matches reports whether t's title or description contains the lower-cased query.
func (t *Ticket) matches(lowerQuery string) bool {
	return strings.Contains(strings.ToLower(t.Title), lowerQuery) ||
		strings.Contains(strings.ToLower(t.Description), lowerQuery)
}

func (t *Ticket) clone() *Ticket {
	c := *t
	if t.Assignee != nil {
		a := *t.Assignee
		c.Assignee = &a
	}
	return &c
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return limit
}
