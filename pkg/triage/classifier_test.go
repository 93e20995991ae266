package triage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataNeuron/enterpirse-workflow-agent/internal/mocks"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/llmerrors"
)

func TestClassifierBuildsPrompt(t *testing.T) {
	client := mocks.NewMockLLMClient()
	client.RespondWith("Category: bug\nPriority: P2\nReasoning: button unresponsive")

	result, err := NewClassifier(client, nil).Classify(context.Background(), "The checkout button is not responding")
	require.NoError(t, err)
	assert.Equal(t, Classification{CategoryBug, PriorityP2, "button unresponsive"}, result)

	req, ok := client.LastRequest()
	require.True(t, ok)
	assert.Equal(t, MaxTokens, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	prompt := req.Messages[0].Content
	assert.Contains(t, prompt, "User Request: The checkout button is not responding")
	assert.Contains(t, prompt, "Category: [bug/feature/question/incident]")
	assert.Contains(t, prompt, "Priority: [P0/P1/P2/P3]")
	assert.Contains(t, prompt, "Reasoning: [brief explanation]")
	assert.Contains(t, prompt, "- P0: System down, revenue impacted, security breach")
}

func TestClassifierMalformedReplyIsNotAnError(t *testing.T) {
	client := mocks.NewMockLLMClient()
	client.RespondWith("¯\\_(ツ)_/¯")

	result, err := NewClassifier(client, nil).Classify(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, DefaultClassification(), result)
}

func TestClassifierTransportFailure(t *testing.T) {
	client := mocks.NewMockLLMClient()
	client.SetModelName("test-model")
	client.FailCompleteWith(errors.New("dial tcp 10.0.0.1:443: connection refused"))

	_, err := NewClassifier(client, nil).Classify(context.Background(), "Site is down")
	require.Error(t, err)

	var inferenceErr *InferenceError
	require.ErrorAs(t, err, &inferenceErr)
	assert.Equal(t, "test-model", inferenceErr.Model)
	assert.Equal(t, llmerrors.ErrorTypeTransient, inferenceErr.Type())
	assert.Contains(t, err.Error(), "connection refused")
}

func TestClassifierTemperature(t *testing.T) {
	client := mocks.NewMockLLMClient()
	client.RespondWith("Category: feature")

	_, err := NewClassifier(client, nil).WithTemperature(0.1).Classify(context.Background(), "add dark mode")
	require.NoError(t, err)
	req, _ := client.LastRequest()
	assert.InDelta(t, 0.1, req.Temperature, 1e-6)
}

func TestClassifierGuidelines(t *testing.T) {
	client := mocks.NewMockLLMClient()
	client.RespondWith("Category: bug\nPriority: P1\nReasoning: checkout rule")

	_, err := NewClassifier(client, nil).
		WithGuidelines("  Checkout problems are at least P1.\n").
		Classify(context.Background(), "Checkout is slow")
	require.NoError(t, err)

	req, _ := client.LastRequest()
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.True(t, strings.HasSuffix(req.Messages[0].Content, "Checkout problems are at least P1."))
	assert.Equal(t, llm.RoleUser, req.Messages[1].Role)
}
