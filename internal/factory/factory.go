// Package factory builds the workflow collaborators selected by configuration.
package factory

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/config"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm"
	llmmetrics "github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/middleware/metrics"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/provider"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/notify"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/statestore"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/ticket"
)

// redactionTimeout bounds the secret scan of one outgoing message.
const redactionTimeout = 2 * time.Second

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// NewTicketRegistry returns the configured registry. db is required for the sqlite backend.
func NewTicketRegistry(cfg *config.Config, db *sql.DB) (ticket.Registry, error) {
	switch cfg.Tickets.Backend {
	case config.BackendMemory:
		return ticket.NewMemoryRegistry(cfg.Tickets.BaseURL), nil
	case config.BackendSQLite:
		if db == nil {
			return nil, fmt.Errorf("tickets backend sqlite needs a database")
		}
		return ticket.NewSQLiteRegistry(db, cfg.Tickets.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported tickets backend: %s", cfg.Tickets.Backend)
	}
}

// NewNotifier returns the configured notifier and a closer for any connection it owns.
// The bus and webhook notifiers journal into sqlite when db is set, otherwise in memory.
func NewNotifier(cfg *config.Config, db *sql.DB) (notify.Notifier, io.Closer, error) {
	var journal notify.Journal = notify.NewMemoryNotifier()
	if db != nil {
		journal = notify.NewSQLiteNotifier(db)
	}

	var (
		n      notify.Notifier
		closer io.Closer = closerFunc(func() error { return nil })
	)
	switch cfg.Notify.Backend {
	case config.BackendMemory:
		n = notify.NewMemoryNotifier()
	case config.BackendSQLite:
		if db == nil {
			return nil, nil, fmt.Errorf("notify backend sqlite needs a database")
		}
		n = notify.NewSQLiteNotifier(db)
	case config.BackendNATS:
		conn, err := notify.ConnectNATS(cfg.Notify.NATSURL)
		if err != nil {
			return nil, nil, err
		}
		n = notify.NewNATSNotifier(conn, cfg.Notify.SubjectPrefix, journal)
		closer = closerFunc(func() error { return drain(conn) })
	case config.BackendWebhook:
		n = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookTimeout, journal)
	default:
		return nil, nil, fmt.Errorf("unsupported notify backend: %s", cfg.Notify.Backend)
	}

	if cfg.Notify.Redact {
		n = notify.NewRedactingNotifier(n, notify.NewPatternScanner(redactionTimeout), cfg.Notify.MaxMessageChars)
	}
	return n, closer, nil
}

func drain(conn *nats.Conn) error {
	if err := conn.Drain(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}

// NewStateStore returns the configured snapshot store.
func NewStateStore(ctx context.Context, cfg *config.Config, db *sql.DB) (statestore.Store, error) {
	switch cfg.State.Backend {
	case config.BackendMemory:
		return statestore.NewMemoryStore(), nil
	case config.BackendSQLite:
		if db == nil {
			return nil, fmt.Errorf("state backend sqlite needs a database")
		}
		return nonNil(statestore.NewSQLiteStore(ctx, db))
	case config.BackendJSONL:
		return nonNil(statestore.NewJSONLStore(cfg.State.JSONLDir))
	case config.BackendPostgres:
		return nonNil(statestore.NewPostgresStore(ctx, cfg.State.PostgresDSN, cfg.State.PostgresMaxConns))
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", cfg.State.Backend)
	}
}

// nonNil keeps a failed constructor from yielding a typed-nil Store.
func nonNil[S statestore.Store](store S, err error) (statestore.Store, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewLLMClient builds the classification client wrapped in the standard
// middleware chain. offline forces the keyword client.
func NewLLMClient(cfg *config.Config, recorder llmmetrics.Recorder, offline bool) (llm.LLMClient, error) {
	var clientCfg *llm.LLMConfig
	if offline {
		clientCfg = &llm.LLMConfig{Provider: provider.Keyword, ModelName: provider.Keyword}
	} else {
		resolved, err := cfg.LLMClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve model configuration: %w", err)
		}
		clientCfg = resolved
	}

	raw, err := provider.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", clientCfg.Provider, err)
	}
	logx.NewLogger("factory").Info("Using model %s (%s)", raw.GetModelName(), clientCfg.Provider)
	return provider.Wrap(raw, cfg.LLM.Timeout, recorder, logx.NewLogger("llm")), nil
}
