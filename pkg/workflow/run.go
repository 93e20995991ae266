package workflow

import (
	"time"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/ticket"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/triage"
)

// Transition is one recorded status change.
type Transition struct {
	At   time.Time `json:"at"`
	From Status    `json:"from"`
	To   Status    `json:"to"`
}

// NotificationRecord is the outcome of one channel delivery attempt.
type NotificationRecord struct {
	Channel   string `json:"channel"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Success   bool   `json:"success"`
}

// Run is the state of one workflow. Each stage writes only its own fields.
type Run struct {
	StartedAt      time.Time              `json:"started_at"`
	CompletedAt    time.Time              `json:"completed_at,omitempty"`
	Classification *triage.Classification `json:"classification,omitempty"`
	Ticket         *ticket.Ticket         `json:"ticket,omitempty"`
	ID             string                 `json:"workflow_id"`
	UserInput      string                 `json:"user_input"`
	DefaultChannel string                 `json:"default_channel"`
	TicketURL      string                 `json:"ticket_url,omitempty"`
	Status         Status                 `json:"status"`
	FailedStage    string                 `json:"failed_stage,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Notifications  []NotificationRecord   `json:"notifications"`
	Transitions    []Transition           `json:"transitions"`
}

func newRun(id, userInput, channel string, now time.Time) *Run {
	return &Run{
		ID:             id,
		UserInput:      userInput,
		DefaultChannel: channel,
		Status:         StatusStarted,
		StartedAt:      now,
		Notifications:  []NotificationRecord{},
		Transitions:    []Transition{},
	}
}

// TicketID returns the created ticket's id, or "" before ticket creation.
func (r *Run) TicketID() string {
	if r.Ticket == nil {
		return ""
	}
	return r.Ticket.ID
}

// Succeeded reports whether the run reached completed without error.
func (r *Run) Succeeded() bool {
	return r.Status == StatusCompleted && r.Error == ""
}

// LastStatus returns the last status reached before failing, or the current
// status for a run that has not failed.
func (r *Run) LastStatus() Status {
	if r.Status != StatusFailed {
		return r.Status
	}
	for i := len(r.Transitions) - 1; i >= 0; i-- {
		if r.Transitions[i].To == StatusFailed {
			return r.Transitions[i].From
		}
	}
	return StatusStarted
}

// NotificationsDelivered counts successful deliveries.
func (r *Run) NotificationsDelivered() int {
	n := 0
	for _, rec := range r.Notifications {
		if rec.Success {
			n++
		}
	}
	return n
}

func (r *Run) advance(to Status, now time.Time) error {
	if err := checkTransition(r.Status, to); err != nil {
		return err
	}
	r.Transitions = append(r.Transitions, Transition{From: r.Status, To: to, At: now})
	r.Status = to
	return nil
}

// fail records err and moves the run to failed. Failing a terminal run is a no-op.
func (r *Run) fail(stage string, err error, now time.Time) {
	if IsTerminal(r.Status) {
		return
	}
	r.Error = err.Error()
	r.FailedStage = stage
	_ = r.advance(StatusFailed, now)
}
