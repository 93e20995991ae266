// Package config loads the workflow agent configuration from YAML, applies
// environment overrides and defaults, and validates the result.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/provider"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
)

// Backend names shared by the ticket, notify and state sections.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendNATS     = "nats"
	BackendWebhook  = "webhook"
	BackendJSONL    = "jsonl"
	BackendPostgres = "postgres"
)

// Defaults.
const (
	DefaultModel            = "claude-sonnet-4-5"
	DefaultMaxTokens        = 500
	DefaultTemperature      = 0.7
	DefaultLLMTimeout       = 60 * time.Second
	DefaultDefaultChannel   = "#bugs"
	DefaultAlertChannel     = "#alerts"
	DefaultAgentName        = "workflow-orchestrator"
	DefaultTitleMaxChars    = 100
	DefaultIssueMaxChars    = 200
	DefaultTicketBaseURL    = "https://jira.example.com/browse"
	DefaultSQLitePath       = ".workflow-agent/workflow.db"
	DefaultJSONLDir         = ".workflow-agent/snapshots"
	DefaultNATSSubject      = "workflow.notify"
	DefaultWebhookTimeout   = 10 * time.Second
	DefaultMaxMessageChars  = 4000
	DefaultPostgresMaxConns = 4
	DefaultListenAddr       = "127.0.0.1:8080"
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultCheckpointBuffer = 64

	// EnvPrefix prefixes every environment override, e.g. WORKFLOW_LLM_MODEL.
	EnvPrefix = "WORKFLOW_"
)

// Config is the full agent configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Tickets  TicketsConfig  `yaml:"tickets"`
	Notify   NotifyConfig   `yaml:"notify"`
	State    StateConfig    `yaml:"state"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
}

// LLMConfig selects and tunes the classification model.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	OllamaHost  string        `yaml:"ollama_host"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// WorkflowConfig tunes the orchestrator.
type WorkflowConfig struct {
	DefaultChannel   string `yaml:"default_channel"`
	AlertChannel     string `yaml:"alert_channel"`
	AgentName        string `yaml:"agent_name"`
	TitleMaxChars    int    `yaml:"title_max_chars"`
	IssueMaxChars    int    `yaml:"issue_max_chars"`
	CheckpointBuffer int    `yaml:"checkpoint_buffer"`
	Checkpoints      bool   `yaml:"checkpoints"`
}

// TicketsConfig selects the ticket registry backend.
type TicketsConfig struct {
	Backend string `yaml:"backend"`
	BaseURL string `yaml:"base_url"`
}

// NotifyConfig selects the notifier backend.
type NotifyConfig struct {
	Backend         string        `yaml:"backend"`
	NATSURL         string        `yaml:"nats_url"`
	SubjectPrefix   string        `yaml:"subject_prefix"`
	WebhookURL      string        `yaml:"webhook_url"`
	WebhookTimeout  time.Duration `yaml:"webhook_timeout"`
	MaxMessageChars int           `yaml:"max_message_chars"`
	Redact          bool          `yaml:"redact"`
}

// StateConfig selects the snapshot store backend.
type StateConfig struct {
	Backend          string `yaml:"backend"`
	JSONLDir         string `yaml:"jsonl_dir"`
	PostgresDSN      string `yaml:"postgres_dsn"`
	PostgresMaxConns int32  `yaml:"postgres_max_conns"`
}

// StorageConfig holds the sqlite database shared by sqlite backends.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// ServerConfig configures `serve`.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

//nolint:gochecknoglobals // shared package logger
var logger = logx.NewLogger("config")

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a YAML config file. ${VAR} placeholders are expanded from the
// environment, WORKFLOW_* overrides are applied, then defaults and validation.
// An empty path loads defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		expanded := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
			if value := os.Getenv(match[2 : len(match)-1]); value != "" {
				return value
			}
			return match
		})
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
		logger.Debug("Loaded config from %s", path)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = DefaultMaxTokens
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = DefaultTemperature
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = DefaultLLMTimeout
	}

	w := &cfg.Workflow
	if w.DefaultChannel == "" {
		w.DefaultChannel = DefaultDefaultChannel
	}
	if w.AlertChannel == "" {
		w.AlertChannel = DefaultAlertChannel
	}
	if w.AgentName == "" {
		w.AgentName = DefaultAgentName
	}
	if w.TitleMaxChars == 0 {
		w.TitleMaxChars = DefaultTitleMaxChars
	}
	if w.IssueMaxChars == 0 {
		w.IssueMaxChars = DefaultIssueMaxChars
	}
	if w.CheckpointBuffer == 0 {
		w.CheckpointBuffer = DefaultCheckpointBuffer
	}

	if cfg.Tickets.Backend == "" {
		cfg.Tickets.Backend = BackendMemory
	}
	if cfg.Tickets.BaseURL == "" {
		cfg.Tickets.BaseURL = DefaultTicketBaseURL
	}

	n := &cfg.Notify
	if n.Backend == "" {
		n.Backend = BackendMemory
	}
	if n.SubjectPrefix == "" {
		n.SubjectPrefix = DefaultNATSSubject
	}
	if n.WebhookTimeout == 0 {
		n.WebhookTimeout = DefaultWebhookTimeout
	}
	if n.MaxMessageChars == 0 {
		n.MaxMessageChars = DefaultMaxMessageChars
	}

	if cfg.State.Backend == "" {
		cfg.State.Backend = BackendMemory
	}
	if cfg.State.JSONLDir == "" {
		cfg.State.JSONLDir = DefaultJSONLDir
	}
	if cfg.State.PostgresMaxConns == 0 {
		cfg.State.PostgresMaxConns = DefaultPostgresMaxConns
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = DefaultSQLitePath
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListenAddr
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate performs structural checks. It does not require API keys; those
// are resolved when the client is built.
func (c *Config) Validate() error {
	var problems []string

	if c.LLM.Provider != "" && !oneOf(c.LLM.Provider, provider.Anthropic, provider.OpenAI, provider.Google, provider.Ollama, provider.Keyword) {
		problems = append(problems, fmt.Sprintf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if c.LLM.Provider == "" {
		if _, err := provider.InferProvider(c.LLM.Model); err != nil {
			problems = append(problems, fmt.Sprintf("llm.model: %v", err))
		}
	}
	if c.LLM.MaxTokens < 0 {
		problems = append(problems, "llm.max_tokens must not be negative")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, "llm.temperature must be between 0 and 2")
	}
	if c.Workflow.TitleMaxChars < 0 || c.Workflow.IssueMaxChars < 0 {
		problems = append(problems, "workflow limits must not be negative")
	}
	if !strings.HasPrefix(c.Workflow.DefaultChannel, "#") || !strings.HasPrefix(c.Workflow.AlertChannel, "#") {
		problems = append(problems, "workflow channels must start with '#'")
	}

	if !oneOf(c.Tickets.Backend, BackendMemory, BackendSQLite) {
		problems = append(problems, fmt.Sprintf("tickets.backend %q is not supported", c.Tickets.Backend))
	}

	switch c.Notify.Backend {
	case BackendMemory, BackendSQLite:
	case BackendNATS:
		if c.Notify.NATSURL == "" {
			problems = append(problems, "notify.nats_url is required for the nats backend")
		}
	case BackendWebhook:
		if c.Notify.WebhookURL == "" {
			problems = append(problems, "notify.webhook_url is required for the webhook backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("notify.backend %q is not supported", c.Notify.Backend))
	}

	switch c.State.Backend {
	case BackendMemory, BackendSQLite, BackendJSONL:
	case BackendPostgres:
		if c.State.PostgresDSN == "" {
			problems = append(problems, "state.postgres_dsn is required for the postgres backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("state.backend %q is not supported", c.State.Backend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// UsesSQLite reports whether any backend needs the shared sqlite database.
func (c *Config) UsesSQLite() bool {
	return c.Tickets.Backend == BackendSQLite || c.Notify.Backend == BackendSQLite || c.State.Backend == BackendSQLite
}

// ProviderName returns the configured provider, inferring it from the model when unset.
func (c *Config) ProviderName() (string, error) {
	if c.LLM.Provider != "" {
		return c.LLM.Provider, nil
	}
	name, err := provider.InferProvider(c.LLM.Model)
	if err != nil {
		return "", fmt.Errorf("cannot infer provider: %w", err)
	}
	return name, nil
}

// LLMClientConfig resolves the provider and its credentials into a client config.
func (c *Config) LLMClientConfig() (*llm.LLMConfig, error) {
	name, err := c.ProviderName()
	if err != nil {
		return nil, err
	}
	out := &llm.LLMConfig{
		Provider:    name,
		ModelName:   c.LLM.Model,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: float32(c.LLM.Temperature),
	}
	switch name {
	case provider.Ollama:
		out.Host = c.LLM.OllamaHost
		if out.Host == "" {
			out.Host, _ = GetAPIKey(provider.Ollama)
		}
	case provider.Keyword:
	default:
		key, err := GetAPIKey(name)
		if err != nil {
			return nil, err
		}
		out.APIKey = key
	}
	return out, nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
