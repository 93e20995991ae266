// Package provider builds text-generation clients from configuration and
// wraps them in the standard middleware chain.
package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/internal/llmimpl/anthropic"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/internal/llmimpl/google"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/internal/llmimpl/keyword"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/internal/llmimpl/ollama"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/internal/llmimpl/openai"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/middleware/metrics"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/middleware/timeout"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
)

// Provider names.
const (
	Anthropic = "anthropic"
	OpenAI    = "openai"
	Google    = "google"
	Ollama    = "ollama"
	Keyword   = "keyword"
)

// Pattern maps a model-name prefix to a provider.
type Pattern struct {
	Prefix   string
	Provider string
}

// Patterns infers providers for model names so new models work without code changes.
//
//nolint:gochecknoglobals // static inference rules
var Patterns = []Pattern{
	{"claude", Anthropic},
	{"gpt", OpenAI},
	{"o1", OpenAI},
	{"o3", OpenAI},
	{"o4", OpenAI},
	{"gemini", Google},
	{"phi", Ollama},
	{"llama", Ollama},
	{"qwen", Ollama},
	{"mistral", Ollama},
	{"deepseek", Ollama},
	{"ollama:", Ollama},
	{"keyword", Keyword},
}

// InferProvider returns the provider for a model name.
func InferProvider(modelName string) (string, error) {
	for i := range Patterns {
		if strings.HasPrefix(modelName, Patterns[i].Prefix) {
			return Patterns[i].Provider, nil
		}
	}
	return "", fmt.Errorf("unknown model '%s': no provider pattern matches", modelName)
}

// New creates the raw client for cfg. An empty Provider is inferred from the model name.
func New(cfg *llm.LLMConfig) (llm.LLMClient, error) {
	name := cfg.Provider
	if name == "" {
		inferred, err := InferProvider(cfg.ModelName)
		if err != nil {
			return nil, err
		}
		name = inferred
	}

	switch name {
	case Anthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("provider %s requires an API key", name)
		}
		return anthropic.NewClaudeClient(cfg.APIKey, cfg.ModelName), nil
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("provider %s requires an API key", name)
		}
		return openai.NewClient(cfg.APIKey, cfg.ModelName), nil
	case Google:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("provider %s requires an API key", name)
		}
		return google.NewGeminiClient(cfg.APIKey, cfg.ModelName), nil
	case Ollama:
		return ollama.NewClient(cfg.Host, strings.TrimPrefix(cfg.ModelName, "ollama:"), nil), nil
	case Keyword:
		return keyword.NewClient(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// Wrap applies the middleware chain: Metrics -> Timeout -> raw client.
// No retry layer is installed; a failed call surfaces to the caller immediately.
func Wrap(client llm.LLMClient, callTimeout time.Duration, recorder metrics.Recorder, logger *logx.Logger) llm.LLMClient {
	return llm.Chain(client,
		metrics.Middleware(recorder, "classify", nil, logger),
		timeout.Middleware(callTimeout),
	)
}
