// Package notify delivers workflow announcements to named chat channels and
// keeps a per-channel message history.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Defaults.
const (
	DefaultChannel      = "#general"
	DefaultHistoryLimit = 10
	// Sender is recorded as the author of every message.
	Sender = "workflow-agent"
)

// Message is one delivered channel message.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	MessageID string    `json:"message_id"`
	Channel   string    `json:"channel"`
	Text      string    `json:"text"`
	User      string    `json:"user"`
}

// SendResult is returned by a successful Send.
type SendResult struct {
	MessageID string `json:"message_id"`
	Channel   string `json:"channel"`
	Success   bool   `json:"success"`
}

// Notifier is the full notifier surface.
type Notifier interface {
	Send(ctx context.Context, channel, text string) (*SendResult, error)
	History(ctx context.Context, channel string, limit int) ([]Message, error)
}

// Journal stores delivered messages for History. The memory and sqlite
// notifiers are journals; the bus and webhook notifiers write through one.
type Journal interface {
	Record(ctx context.Context, msg Message) error
	History(ctx context.Context, channel string, limit int) ([]Message, error)
}

func newMessage(channel, text string, now time.Time) Message {
	if channel == "" {
		channel = DefaultChannel
	}
	return Message{
		Timestamp: now.UTC(),
		MessageID: uuid.NewString(),
		Channel:   channel,
		Text:      text,
		User:      Sender,
	}
}

func (m *Message) result() *SendResult {
	return &SendResult{Success: true, MessageID: m.MessageID, Channel: m.Channel}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

// lastN returns the trailing n elements of msgs.
func lastN(msgs []Message, n int) []Message {
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
