package triage

import (
	"context"
	"fmt"
	"strings"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/llmerrors"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/utils"
)

// MaxTokens is the output budget for one classification call.
const MaxTokens = 500

const promptTemplate = `Analyze this user request and classify it.

User Request: %s

Provide your analysis in this exact format:
Category: [bug/feature/question/incident]
Priority: [P0/P1/P2/P3]
Reasoning: [brief explanation]

Priority guidelines:
- P0: System down, revenue impacted, security breach
- P1: Major feature broken, affects many users
- P2: Minor bug, affects some users
- P3: Enhancement, cosmetic issue

Category guidelines:
- bug: Something is broken
- feature: Request for new functionality
- question: Asking for help or information
- incident: Active emergency or outage`

const guidelinesPreamble = "Apply these organization triage rules in addition to the standard guidelines:\n\n"

// BuildPrompt renders the classification prompt for text.
func BuildPrompt(text string) string {
	return fmt.Sprintf(promptTemplate, text)
}

// InferenceError reports that the text-generation call itself failed.
type InferenceError struct {
	Err   error
	Model string
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("classification inference failed (model %s): %v", e.Model, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Type returns the provider error category.
func (e *InferenceError) Type() llmerrors.ErrorType {
	return llmerrors.TypeOf(e.Err)
}

// Classifier turns request text into a Classification.
type Classifier struct {
	client      llm.LLMClient
	logger      *logx.Logger
	guidelines  string
	temperature float32
}

// NewClassifier creates a classifier backed by client.
func NewClassifier(client llm.LLMClient, logger *logx.Logger) *Classifier {
	if logger == nil {
		logger = logx.NewLogger("triage-agent")
	}
	return &Classifier{
		client:      client,
		logger:      logger,
		temperature: llm.TemperatureDefault,
	}
}

// WithTemperature overrides the sampling temperature.
func (c *Classifier) WithTemperature(t float32) *Classifier {
	c.temperature = t
	return c
}

// WithGuidelines sends organization-specific triage rules as a system message.
func (c *Classifier) WithGuidelines(text string) *Classifier {
	c.guidelines = strings.TrimSpace(text)
	return c
}

// Classify prompts the model and parses its reply. The only error returned is
// *InferenceError; malformed replies fall back to defaults.
func (c *Classifier) Classify(ctx context.Context, text string) (Classification, error) {
	c.logger.Info("Classifying request: %s...", utils.TruncateRunes(text, 50))

	messages := []llm.CompletionMessage{llm.NewUserMessage(BuildPrompt(text))}
	if c.guidelines != "" {
		messages = append([]llm.CompletionMessage{llm.NewSystemMessage(guidelinesPreamble + c.guidelines)}, messages...)
	}
	req := llm.CompletionRequest{
		Messages:    messages,
		MaxTokens:   MaxTokens,
		Temperature: c.temperature,
	}
	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		classified := llmerrors.Classify(err)
		c.logger.Error("❌ Classification call failed (%s): %v", classified.Type, err)
		return Classification{}, &InferenceError{Err: classified, Model: c.client.GetModelName()}
	}

	logx.Debug(ctx, "triage", "raw reply (%d chars): %q", len(resp.Content), utils.TruncateRunes(resp.Content, 200))
	result := Parse(resp.Content)
	if strings.TrimSpace(resp.Content) == "" {
		c.logger.Warn("Empty model reply, using default classification")
	}
	c.logger.Info("Classification: %s / %s", result.Category, result.Priority)
	return result, nil
}
