package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
)

// DefaultWebhookTimeout bounds one webhook delivery.
const DefaultWebhookTimeout = 10 * time.Second

// webhookPayload matches the incoming-webhook shape chat services accept.
type webhookPayload struct {
	Channel   string `json:"channel"`
	Text      string `json:"text"`
	Username  string `json:"username"`
	MessageID string `json:"message_id"`
}

// WebhookNotifier posts each message to an incoming-webhook URL and records
// it in a journal for History.
type WebhookNotifier struct {
	httpClient *http.Client
	journal    Journal
	logger     *logx.Logger
	now        func() time.Time
	url        string
}

// NewWebhookNotifier creates a notifier. A nil journal keeps history in memory.
func NewWebhookNotifier(url string, timeout time.Duration, journal Journal) *WebhookNotifier {
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	if journal == nil {
		journal = NewMemoryNotifier()
	}
	return &WebhookNotifier{
		httpClient: &http.Client{Timeout: timeout},
		journal:    journal,
		logger:     logx.NewLogger("notify").With("webhook"),
		now:        time.Now,
		url:        url,
	}
}

// Send posts the message; any non-2xx status is a delivery failure.
func (n *WebhookNotifier) Send(ctx context.Context, channel, text string) (*SendResult, error) {
	if n.url == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	msg := newMessage(channel, text, n.now())

	body, err := json.Marshal(webhookPayload{
		Channel:   msg.Channel,
		Text:      msg.Text,
		Username:  msg.User,
		MessageID: msg.MessageID,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook payload serialization failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("webhook request creation failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "workflow-agent/1.0")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook request failed: channel=%s status_code=%d", msg.Channel, resp.StatusCode)
	}
	if err := n.journal.Record(ctx, msg); err != nil {
		n.logger.Warn("Delivered %s but failed to journal it: %v", msg.MessageID, err)
	}

	n.logger.Info("Webhook delivered to %s (%s)", msg.Channel, msg.MessageID)
	return msg.result(), nil
}

// History delegates to the journal.
func (n *WebhookNotifier) History(ctx context.Context, channel string, limit int) ([]Message, error) {
	return n.journal.History(ctx, channel, limit) //nolint:wrapcheck // journal errors carry context
}
