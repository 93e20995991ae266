package actions

import (
	"context"
	"errors"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/ticket"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/triage"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/utils"
)

// JiraServerName is the routing name of the ticket server.
const JiraServerName = "jira"

// JiraServer exposes a ticket.Registry as create_ticket, get_ticket and search_tickets.
type JiraServer struct {
	registry ticket.Registry
	logger   *logx.Logger
}

// NewJiraServer wraps registry.
func NewJiraServer(registry ticket.Registry) *JiraServer {
	return &JiraServer{registry: registry, logger: logx.NewLogger("jira-mcp")}
}

// Name implements Server.
func (s *JiraServer) Name() string { return JiraServerName }

// Tools implements Server.
func (s *JiraServer) Tools() []ToolDescriptor {
	return []ToolDescriptor{
		{
			Name:        "create_ticket",
			Description: "Create a Jira ticket",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"title":       {Type: "string", Description: "Ticket title/summary"},
					"description": {Type: "string", Description: "Detailed description"},
					"priority":    {Type: "string", Description: "P0/P1/P2/P3"},
					"ticket_type": {Type: "string", Description: "Bug/Feature/Task"},
				},
			},
		},
		{
			Name:        "get_ticket",
			Description: "Get ticket by ID",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"ticket_id": {Type: "string", Description: "Ticket ID (e.g., BUG-123)"},
				},
				Required: []string{"ticket_id"},
			},
		},
		{
			Name:        "search_tickets",
			Description: "Search for tickets",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query": {Type: "string", Description: "Search query"},
					"limit": {Type: "integer", Description: "Max results (default: 10)"},
				},
			},
		},
	}
}

// Execute implements Server.
func (s *JiraServer) Execute(ctx context.Context, action string, params map[string]any) Result {
	s.logger.Debug("Executing: %s", action)

	switch action {
	case "create_ticket":
		return s.createTicket(ctx, params)
	case "get_ticket":
		return s.getTicket(ctx, params)
	case "search_tickets":
		return s.searchTickets(ctx, params)
	default:
		return UnknownAction(action)
	}
}

func (s *JiraServer) createTicket(ctx context.Context, params map[string]any) Result {
	req := ticket.CreateRequest{
		Title:       utils.GetMapFieldOr(params, "title", ""),
		Description: utils.GetMapFieldOr(params, "description", ""),
		Priority:    triage.Priority(utils.GetMapFieldOr(params, "priority", "")),
		Type:        utils.GetMapFieldOr(params, "ticket_type", ""),
	}
	res, err := s.registry.Create(ctx, req)
	if err != nil {
		return Fail("%v", err)
	}
	return Ok(map[string]any{
		"ticket_id":  res.TicketID,
		"ticket_url": res.TicketURL,
		"ticket":     res.Ticket,
	})
}

func (s *JiraServer) getTicket(ctx context.Context, params map[string]any) Result {
	id := utils.GetMapFieldOr(params, "ticket_id", "")
	t, err := s.registry.Get(ctx, id)
	if errors.Is(err, ticket.ErrTicketNotFound) {
		return Fail("Ticket %s not found", id)
	}
	if err != nil {
		return Fail("%v", err)
	}
	return Ok(map[string]any{"ticket": t})
}

func (s *JiraServer) searchTickets(ctx context.Context, params map[string]any) Result {
	query := utils.GetMapFieldOr(params, "query", "")
	limit := utils.GetIntOr(params, "limit", ticket.DefaultSearchLimit)
	found, err := s.registry.Search(ctx, query, limit)
	if err != nil {
		return Fail("%v", err)
	}
	return Ok(map[string]any{"tickets": found, "count": len(found)})
}
