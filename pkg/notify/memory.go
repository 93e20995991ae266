package notify

import (
	"context"
	"sync"
	"time"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/utils"
)

// MemoryNotifier records messages in process memory, standing in for a chat workspace.
type MemoryNotifier struct {
	logger    *logx.Logger
	now       func() time.Time
	byChannel map[string][]Message
	mu        sync.Mutex
}

// NewMemoryNotifier creates an empty notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{
		logger:    logx.NewLogger("slack-mcp"),
		now:       time.Now,
		byChannel: make(map[string][]Message),
	}
}

// Send appends the message to the channel.
func (n *MemoryNotifier) Send(ctx context.Context, channel, text string) (*SendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors pass through
	}
	msg := newMessage(channel, text, n.now())
	if err := n.Record(ctx, msg); err != nil {
		return nil, err
	}
	n.logger.Info("Message sent to %s: %s...", msg.Channel, utils.TruncateRunes(text, 50))
	return msg.result(), nil
}

// Record appends an already-built message.
func (n *MemoryNotifier) Record(_ context.Context, msg Message) error {
	n.mu.Lock()
	n.byChannel[msg.Channel] = append(n.byChannel[msg.Channel], msg)
	n.mu.Unlock()
	return nil
}

// History returns the last limit messages of the channel, oldest first.
func (n *MemoryNotifier) History(_ context.Context, channel string, limit int) ([]Message, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	msgs := lastN(n.byChannel[channel], normalizeLimit(limit))
	n.logger.Debug("Retrieved %d messages from %s", len(msgs), channel)
	return msgs, nil
}
