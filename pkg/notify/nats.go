package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/utils"
)

// DefaultSubjectPrefix is prepended to the channel token to form the subject.
const DefaultSubjectPrefix = "workflow.notify"

// Publisher is the subset of *nats.Conn the notifier uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes each message as JSON on "<prefix>.<channel-token>"
// and records it in a journal for History.
type NATSNotifier struct {
	pub     Publisher
	journal Journal
	logger  *logx.Logger
	now     func() time.Time
	prefix  string
}

// ConnectNATS dials the server at url.
func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url, nats.Name("workflow-agent"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}

// NewNATSNotifier creates a notifier. A nil journal keeps history in memory.
func NewNATSNotifier(pub Publisher, prefix string, journal Journal) *NATSNotifier {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if journal == nil {
		journal = NewMemoryNotifier()
	}
	return &NATSNotifier{
		pub:     pub,
		journal: journal,
		logger:  logx.NewLogger("notify").With("nats"),
		now:     time.Now,
		prefix:  prefix,
	}
}

// Subject returns the subject a channel publishes on.
func (n *NATSNotifier) Subject(channel string) string {
	return n.prefix + "." + utils.SanitizeToken(channel)
}

// Send publishes the message, then journals it.
func (n *NATSNotifier) Send(ctx context.Context, channel, text string) (*SendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors pass through
	}
	msg := newMessage(channel, text, n.now())
	data, err := json.Marshal(&msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	subject := n.Subject(msg.Channel)
	if err := n.pub.Publish(subject, data); err != nil {
		return nil, fmt.Errorf("publish to %s: %w", subject, err)
	}
	if err := n.journal.Record(ctx, msg); err != nil {
		n.logger.Warn("Published %s but failed to journal it: %v", msg.MessageID, err)
	}

	n.logger.Info("Message published to %s (%s)", subject, msg.MessageID)
	return msg.result(), nil
}

// History delegates to the journal.
func (n *NATSNotifier) History(ctx context.Context, channel string, limit int) ([]Message, error) {
	return n.journal.History(ctx, channel, limit) //nolint:wrapcheck // journal errors carry context
}
