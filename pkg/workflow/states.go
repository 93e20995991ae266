// Package workflow runs the request-to-ticket pipeline: triage a free-text
// request, open a ticket for it, notify the relevant channels and record the
// outcome in the state log.
package workflow

import (
	"errors"
	"fmt"
)

// Status is a workflow state.
type Status string

// Workflow states, in pipeline order. StatusFailed is absorbing.
const (
	StatusStarted       Status = "started"
	StatusTriaged       Status = "triaged"
	StatusTicketCreated Status = "ticket_created"
	StatusNotified      Status = "notified"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

// ErrInvalidTransition is returned when a status change is not in the transition table.
var ErrInvalidTransition = errors.New("invalid status transition")

// validTransitions defines the pipeline state machine.
//
//nolint:gochecknoglobals // state machine definition
var validTransitions = map[Status][]Status{
	StatusStarted:       {StatusTriaged, StatusFailed},
	StatusTriaged:       {StatusTicketCreated, StatusFailed},
	StatusTicketCreated: {StatusNotified, StatusFailed},
	StatusNotified:      {StatusCompleted, StatusFailed},
	StatusCompleted:     {},
	StatusFailed:        {},
}

// IsValidTransition checks if from → to is allowed.
func IsValidTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidNextStates returns the allowed successors of s.
func ValidNextStates(s Status) []Status {
	return validTransitions[s]
}

// AllStatuses returns every state in pipeline order.
func AllStatuses() []Status {
	return []Status{StatusStarted, StatusTriaged, StatusTicketCreated, StatusNotified, StatusCompleted, StatusFailed}
}

func checkTransition(from, to Status) error {
	if !IsValidTransition(from, to) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	return nil
}
