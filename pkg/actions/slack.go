package actions

import (
	"context"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/notify"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/utils"
)

// SlackServerName is the routing name of the messaging server.
const SlackServerName = "slack"

// SlackServer exposes a notify.Notifier as send_message and get_messages.
type SlackServer struct {
	notifier notify.Notifier
	logger   *logx.Logger
}

// NewSlackServer wraps notifier.
func NewSlackServer(notifier notify.Notifier) *SlackServer {
	return &SlackServer{notifier: notifier, logger: logx.NewLogger("slack-mcp")}
}

// Name implements Server.
func (s *SlackServer) Name() string { return SlackServerName }

// Tools implements Server.
func (s *SlackServer) Tools() []ToolDescriptor {
	return []ToolDescriptor{
		{
			Name:        "send_message",
			Description: "Send a message to a Slack channel",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"channel": {Type: "string", Description: "Channel name (e.g., #bugs)"},
					"text":    {Type: "string", Description: "Message text"},
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        "get_messages",
			Description: "Get recent messages from a channel",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"channel": {Type: "string", Description: "Channel name"},
					"limit":   {Type: "integer", Description: "Number of messages (default: 10)"},
				},
			},
		},
	}
}

// Execute implements Server.
func (s *SlackServer) Execute(ctx context.Context, action string, params map[string]any) Result {
	s.logger.Debug("Executing: %s", action)

	switch action {
	case "send_message":
		channel := utils.GetMapFieldOr(params, "channel", notify.DefaultChannel)
		res, err := s.notifier.Send(ctx, channel, utils.GetMapFieldOr(params, "text", ""))
		if err != nil {
			return Fail("%v", err)
		}
		return Ok(map[string]any{"message_id": res.MessageID, "channel": res.Channel})
	case "get_messages":
		channel := utils.GetMapFieldOr(params, "channel", notify.DefaultChannel)
		msgs, err := s.notifier.History(ctx, channel, utils.GetIntOr(params, "limit", notify.DefaultHistoryLimit))
		if err != nil {
			return Fail("%v", err)
		}
		return Ok(map[string]any{"messages": msgs, "count": len(msgs)})
	default:
		return UnknownAction(action)
	}
}
