package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/provider"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultModel, cfg.LLM.Model)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.Equal(t, "#bugs", cfg.Workflow.DefaultChannel)
	assert.Equal(t, "#alerts", cfg.Workflow.AlertChannel)
	assert.Equal(t, 100, cfg.Workflow.TitleMaxChars)
	assert.Equal(t, 200, cfg.Workflow.IssueMaxChars)
	assert.Equal(t, BackendMemory, cfg.Tickets.Backend)
	assert.Equal(t, BackendMemory, cfg.Notify.Backend)
	assert.Equal(t, BackendMemory, cfg.State.Backend)
	assert.False(t, cfg.UsesSQLite())

	name, err := cfg.ProviderName()
	require.NoError(t, err)
	assert.Equal(t, provider.Anthropic, name)
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("TEST_WEBHOOK", "https://hooks.example.com/T000")
	path := writeConfig(t, `
llm:
  model: gpt-4o-mini
  temperature: 0.2
  timeout: 15s
workflow:
  default_channel: "#support"
  checkpoints: true
tickets:
  backend: sqlite
notify:
  backend: webhook
  webhook_url: ${TEST_WEBHOOK}
state:
  backend: jsonl
  jsonl_dir: /tmp/snaps
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "#support", cfg.Workflow.DefaultChannel)
	assert.True(t, cfg.Workflow.Checkpoints)
	assert.Equal(t, "https://hooks.example.com/T000", cfg.Notify.WebhookURL)
	assert.Equal(t, "/tmp/snaps", cfg.State.JSONLDir)
	assert.True(t, cfg.UsesSQLite())

	name, err := cfg.ProviderName()
	require.NoError(t, err)
	assert.Equal(t, provider.OpenAI, name)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WORKFLOW_LLM_PROVIDER", "keyword")
	t.Setenv("WORKFLOW_LLM_MAX_TOKENS", "250")
	t.Setenv("WORKFLOW_LLM_TIMEOUT", "5s")
	t.Setenv("WORKFLOW_WORKFLOW_CHECKPOINTS", "true")
	t.Setenv("WORKFLOW_STATE_BACKEND", "postgres")
	t.Setenv("WORKFLOW_STATE_POSTGRES_DSN", "postgres://localhost/wf")
	t.Setenv("WORKFLOW_STATE_POSTGRES_MAX_CONNS", "8")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, provider.Keyword, cfg.LLM.Provider)
	assert.Equal(t, 250, cfg.LLM.MaxTokens)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.Workflow.Checkpoints)
	assert.Equal(t, BackendPostgres, cfg.State.Backend)
	assert.Equal(t, int32(8), cfg.State.PostgresMaxConns)
}

func TestEnvOverrideIgnoresBadValues(t *testing.T) {
	t.Setenv("WORKFLOW_LLM_MAX_TOKENS", "lots")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTokens, cfg.LLM.MaxTokens)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bedrock" }, "llm.provider"},
		{"unknown model", func(c *Config) { c.LLM.Model = "titan-express" }, "llm.model"},
		{"temperature", func(c *Config) { c.LLM.Temperature = 3 }, "temperature"},
		{"channel", func(c *Config) { c.Workflow.DefaultChannel = "bugs" }, "channels"},
		{"ticket backend", func(c *Config) { c.Tickets.Backend = "jira-cloud" }, "tickets.backend"},
		{"nats url", func(c *Config) { c.Notify.Backend = BackendNATS }, "nats_url"},
		{"webhook url", func(c *Config) { c.Notify.Backend = BackendWebhook }, "webhook_url"},
		{"postgres dsn", func(c *Config) { c.State.Backend = BackendPostgres }, "postgres_dsn"},
		{"state backend", func(c *Config) { c.State.Backend = "dynamodb" }, "state.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, "llm: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "state:\n  backend: dynamodb\n"))
	assert.ErrorContains(t, err, "config validation failed")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Notify.Backend = BackendNATS
	cfg.Notify.NATSURL = "nats://127.0.0.1:4222"
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLLMClientConfig(t *testing.T) {
	SetDecryptedSecrets(nil)
	t.Setenv(EnvAnthropicAPIKey, "")

	cfg := Default()
	_, err := cfg.LLMClientConfig()
	assert.ErrorContains(t, err, EnvAnthropicAPIKey)

	t.Setenv(EnvAnthropicAPIKey, "sk-test")
	out, err := cfg.LLMClientConfig()
	require.NoError(t, err)
	assert.Equal(t, provider.Anthropic, out.Provider)
	assert.Equal(t, "sk-test", out.APIKey)
	assert.InDelta(t, 0.7, out.Temperature, 1e-6)

	cfg.LLM.Provider = provider.Keyword
	out, err = cfg.LLMClientConfig()
	require.NoError(t, err)
	assert.Empty(t, out.APIKey)

	cfg.LLM.Provider = provider.Ollama
	cfg.LLM.OllamaHost = "http://gpu-box:11434"
	out, err = cfg.LLMClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", out.Host)
}
