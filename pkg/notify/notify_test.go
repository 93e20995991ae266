package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/persistence"
)

func journals(t *testing.T) map[string]Notifier {
	t.Helper()
	db, err := persistence.Open(persistence.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Notifier{
		"memory": NewMemoryNotifier(),
		"sqlite": NewSQLiteNotifier(db),
	}
}

func TestSendAndHistory(t *testing.T) {
	for name, n := range journals(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 1; i <= 5; i++ {
				res, err := n.Send(ctx, "#support", fmt.Sprintf("msg %d", i))
				require.NoError(t, err)
				assert.True(t, res.Success)
				assert.Equal(t, "#support", res.Channel)
				assert.NotEmpty(t, res.MessageID)
			}
			_, err := n.Send(ctx, "#alerts", "urgent")
			require.NoError(t, err)

			history, err := n.History(ctx, "#support", 3)
			require.NoError(t, err)
			require.Len(t, history, 3)
			assert.Equal(t, "msg 3", history[0].Text)
			assert.Equal(t, "msg 5", history[2].Text)
			assert.Equal(t, Sender, history[0].User)

			alerts, err := n.History(ctx, "#alerts", 0)
			require.NoError(t, err)
			require.Len(t, alerts, 1)
			assert.Equal(t, "urgent", alerts[0].Text)

			empty, err := n.History(ctx, "#nobody", 10)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestSendDefaultsChannel(t *testing.T) {
	n := NewMemoryNotifier()
	res, err := n.Send(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, DefaultChannel, res.Channel)
}

type fakePublisher struct {
	err      error
	subjects []string
	payloads [][]byte
	mu       sync.Mutex
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestNATSNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNATSNotifier(pub, "", nil)

	res, err := n.Send(context.Background(), "#alerts", "🎫 New INCIDENT - P0")
	require.NoError(t, err)
	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "workflow.notify.alerts", pub.subjects[0])

	var msg Message
	require.NoError(t, json.Unmarshal(pub.payloads[0], &msg))
	assert.Equal(t, res.MessageID, msg.MessageID)
	assert.Equal(t, "#alerts", msg.Channel)

	history, err := n.History(context.Background(), "#alerts", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.MessageID, history[0].MessageID)
}

func TestNATSNotifierPublishFailure(t *testing.T) {
	n := NewNATSNotifier(&fakePublisher{err: errors.New("nats: connection closed")}, "ops", nil)
	_, err := n.Send(context.Background(), "#support", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ops.support")

	history, err := n.History(context.Background(), "#support", 10)
	require.NoError(t, err)
	assert.Empty(t, history, "failed deliveries are not journaled")
}

func TestWebhookNotifier(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, 0, nil)
	res, err := n.Send(context.Background(), "#support", "checkout broken")
	require.NoError(t, err)
	assert.Equal(t, "#support", received.Channel)
	assert.Equal(t, "checkout broken", received.Text)
	assert.Equal(t, Sender, received.Username)
	assert.Equal(t, res.MessageID, received.MessageID)

	history, err := n.History(context.Background(), "#support", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestWebhookNotifierRejectsNon2xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, 0, nil)
	_, err := n.Send(context.Background(), "#alerts", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status_code=503")
	assert.Equal(t, int32(1), calls.Load(), "no retries")

	_, err = NewWebhookNotifier("", 0, nil).Send(context.Background(), "#alerts", "x")
	assert.Error(t, err)
}

func TestRedactingNotifier(t *testing.T) {
	inner := NewMemoryNotifier()
	n := NewRedactingNotifier(inner, NewPatternScanner(0), 0)

	_, err := n.Send(context.Background(), "#support", "my key is sk-ant-REDACTED please rotate")
	require.NoError(t, err)

	history, err := n.History(context.Background(), "#support", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.NotContains(t, history[0].Text, "sk-ant-")
	assert.Contains(t, history[0].Text, "[redacted]")
	assert.True(t, strings.HasSuffix(history[0].Text, redactionNote))
}

func TestRedactingNotifierTruncates(t *testing.T) {
	inner := NewMemoryNotifier()
	n := NewRedactingNotifier(inner, nil, 30)

	_, err := n.Send(context.Background(), "#support", strings.Repeat("é", 100))
	require.NoError(t, err)
	history, _ := inner.History(context.Background(), "#support", 1)
	require.Len(t, history, 1)
	assert.Len(t, []rune(history[0].Text), 30)
	assert.True(t, strings.HasSuffix(history[0].Text, TruncationSuffix))
}

type failingScanner struct{}

func (failingScanner) Scan(context.Context, string) (string, bool, error) {
	return "", false, errors.New("scanner exploded")
}

func TestRedactingNotifierFailsOpen(t *testing.T) {
	inner := NewMemoryNotifier()
	n := NewRedactingNotifier(inner, failingScanner{}, 0)
	_, err := n.Send(context.Background(), "#support", "plain text")
	require.NoError(t, err)
	history, _ := inner.History(context.Background(), "#support", 1)
	require.Len(t, history, 1)
	assert.Equal(t, "plain text", history[0].Text)
}
