// Package keyword is a deterministic offline text generator. It answers
// triage prompts by scanning the embedded request for well-known phrases,
// so demos and tests run without network access or API keys.
package keyword

import (
	"context"
	"fmt"
	"strings"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm"
)

// ModelName is reported by GetModelName.
const ModelName = "keyword-offline"

const (
	requestMarker  = "User Request:"
	analysisMarker = "Provide your analysis"
)

type rule struct {
	category  string
	priority  string
	reasoning string
	phrases   []string
}

// Evaluated in order; the first rule with a matching phrase wins.
var rules = []rule{
	{
		category:  "incident",
		priority:  "P0",
		reasoning: "Active outage affecting users",
		phrases:   []string{"down", "outage", "500", "cannot access", "breach", "all pages"},
	},
	{
		category:  "bug",
		priority:  "P2",
		reasoning: "Something is broken for some users",
		phrases:   []string{"not working", "not responding", "broken", "error", "crash", "fails"},
	},
	{
		category:  "feature",
		priority:  "P3",
		reasoning: "Request for new functionality",
		phrases:   []string{"add ", "can we", "feature", "support for", "dark mode"},
	},
}

var widespread = []string{"many users", "all users", "everyone"}

// Client implements llm.LLMClient without a model.
type Client struct{}

// NewClient returns an offline client.
func NewClient() *Client {
	return &Client{}
}

// Complete implements llm.LLMClient.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return llm.CompletionResponse{}, err
	}

	var prompt strings.Builder
	for i := range in.Messages {
		if in.Messages[i].Role != llm.RoleSystem {
			prompt.WriteString(in.Messages[i].Content)
		}
	}
	category, priority, reasoning := Classify(extractRequest(prompt.String()))

	return llm.CompletionResponse{
		Content:    fmt.Sprintf("Category: %s\nPriority: %s\nReasoning: %s", category, priority, reasoning),
		StopReason: "end_turn",
	}, nil
}

// GetModelName returns ModelName.
func (c *Client) GetModelName() string {
	return ModelName
}

// extractRequest isolates the user text when the prompt is a triage template,
// so guideline words like "down" in the template never match.
func extractRequest(prompt string) string {
	start := strings.Index(prompt, requestMarker)
	if start < 0 {
		return prompt
	}
	rest := prompt[start+len(requestMarker):]
	if end := strings.Index(rest, analysisMarker); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// Classify returns the category, priority and reasoning for request text.
func Classify(text string) (category, priority, reasoning string) {
	lower := strings.ToLower(text)
	for i := range rules {
		r := &rules[i]
		if !containsAny(lower, r.phrases) {
			continue
		}
		if r.category == "bug" && containsAny(lower, widespread) {
			return r.category, "P1", "Major functionality broken for many users"
		}
		return r.category, r.priority, r.reasoning
	}
	return "question", "P3", "Asking for help or information"
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
