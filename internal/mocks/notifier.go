package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/notify"
)

// SendCall records the parameters of a Send call.
type SendCall struct {
	Channel string
	Text    string
}

// MockNotifier provides a mock implementation of the channel notifier.
// By default every Send succeeds with an incrementing message id.
type MockNotifier struct {
	// SendFunc is called when Send is invoked. Override to customize behavior.
	SendFunc func(ctx context.Context, channel, text string) (*notify.SendResult, error)

	// SendCalls tracks all calls to Send for verification.
	SendCalls []SendCall

	failing map[string]error
	nextID  int
	mu      sync.Mutex
}

// NewMockNotifier creates a mock notifier with default behavior.
func NewMockNotifier() *MockNotifier {
	m := &MockNotifier{failing: make(map[string]error)}
	m.SendFunc = func(_ context.Context, channel, _ string) (*notify.SendResult, error) {
		if err, ok := m.failing[channel]; ok {
			return nil, err
		}
		m.nextID++
		return &notify.SendResult{
			MessageID: fmt.Sprintf("msg-%d", m.nextID),
			Channel:   channel,
			Success:   true,
		}, nil
	}
	return m
}

// FailChannel makes Send to channel return err.
func (m *MockNotifier) FailChannel(channel string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[channel] = err
}

// Send implements the notifier interface.
func (m *MockNotifier) Send(ctx context.Context, channel, text string) (*notify.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendCalls = append(m.SendCalls, SendCall{Channel: channel, Text: text})
	return m.SendFunc(ctx, channel, text)
}

// Channels returns the channels Send was called with, in call order.
func (m *MockNotifier) Channels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.SendCalls))
	for i, c := range m.SendCalls {
		out[i] = c.Channel
	}
	return out
}
