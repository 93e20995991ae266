package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm"
)

func TestFlattenInput(t *testing.T) {
	got := flattenInput([]llm.CompletionMessage{
		llm.NewSystemMessage("be terse"),
		llm.NewUserMessage("classify this"),
	})
	assert.Equal(t, "System: be terse\n\nclassify this", got)
}

func TestDefaultModel(t *testing.T) {
	assert.Equal(t, DefaultModel, NewClient("key", "").GetModelName())
	assert.Equal(t, "gpt-4.1", NewClient("key", "gpt-4.1").GetModelName())
}
