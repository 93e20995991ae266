// Package kernel owns the shared infrastructure of one workflow agent process:
// the database, the collaborators, the orchestrator and the metrics registry.
package kernel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/DataNeuron/enterpirse-workflow-agent/internal/factory"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/actions"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/config"
	llmmetrics "github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/middleware/metrics"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/metrics"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/notify"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/persistence"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/statestore"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/ticket"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/triage"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/workflow"
)

// Options adjust kernel construction.
type Options struct {
	// Offline replaces the configured model with the keyword classifier.
	Offline bool
	// Registry receives all metrics. A fresh registry is created when nil.
	Registry *prometheus.Registry
	// Guidelines are organization triage rules sent with every classification.
	Guidelines string
}

// Kernel holds the services shared by every command.
type Kernel struct {
	Config       *config.Config
	Logger       *logx.Logger
	Database     *sql.DB
	Tickets      ticket.Registry
	Notifier     notify.Notifier
	State        statestore.Store
	Checkpoints  *statestore.AsyncWriter
	Classifier   *triage.Classifier
	Orchestrator *workflow.Orchestrator
	Actions      *actions.Registry
	Metrics      *prometheus.Registry

	notifyCloser io.Closer
}

// New builds every service. On error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *Kernel, err error) {
	k := &Kernel{
		Config:  cfg,
		Logger:  logx.NewLogger("kernel"),
		Metrics: opts.Registry,
	}
	defer func() {
		if err != nil {
			_ = k.Close(context.Background())
		}
	}()

	if k.Metrics == nil {
		k.Metrics = prometheus.NewRegistry()
		k.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	recorder := metrics.NewPrometheusRecorder(k.Metrics)

	if cfg.UsesSQLite() {
		if err = k.initializeDatabase(); err != nil {
			return nil, err
		}
	}

	if k.Tickets, err = factory.NewTicketRegistry(cfg, k.Database); err != nil {
		return nil, fmt.Errorf("failed to create ticket registry: %w", err)
	}
	if k.Notifier, k.notifyCloser, err = factory.NewNotifier(cfg, k.Database); err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}
	if k.State, err = factory.NewStateStore(ctx, cfg, k.Database); err != nil {
		return nil, fmt.Errorf("failed to create state store: %w", err)
	}

	client, err := factory.NewLLMClient(cfg, llmmetrics.NewPrometheusRecorder(k.Metrics), opts.Offline)
	if err != nil {
		return nil, err
	}
	k.Classifier = triage.NewClassifier(client, nil).
		WithTemperature(float32(cfg.LLM.Temperature)).
		WithGuidelines(opts.Guidelines)

	orchOpts := []workflow.Option{
		workflow.WithRecorder(recorder),
		workflow.WithAgentName(cfg.Workflow.AgentName),
		workflow.WithAlertChannel(cfg.Workflow.AlertChannel),
		workflow.WithLimits(cfg.Workflow.TitleMaxChars, cfg.Workflow.IssueMaxChars),
	}
	if cfg.Workflow.Checkpoints {
		k.Checkpoints = statestore.NewAsyncWriter(k.State, cfg.Workflow.CheckpointBuffer, nil)
		orchOpts = append(orchOpts, workflow.WithCheckpoints(k.Checkpoints))
	}
	k.Orchestrator = workflow.New(k.Classifier, k.Tickets, k.Notifier, k.State, orchOpts...)

	k.Actions = actions.NewRegistry()
	if err = k.Actions.Register(actions.NewJiraServer(k.Tickets)); err != nil {
		return nil, err
	}
	if err = k.Actions.Register(actions.NewSlackServer(k.Notifier)); err != nil {
		return nil, err
	}

	k.Logger.Info("Kernel ready (tickets=%s notify=%s state=%s)", cfg.Tickets.Backend, cfg.Notify.Backend, cfg.State.Backend)
	return k, nil
}

func (k *Kernel) initializeDatabase() error {
	path := k.Config.Storage.SQLitePath
	if path != persistence.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		return logx.Wrap(err, "failed to initialize database")
	}
	k.Database = db
	return nil
}

// Close drains the checkpoint writer and releases every resource, in reverse
// order of creation. It is safe on a partially built kernel.
func (k *Kernel) Close(ctx context.Context) error {
	var errs []error
	if k.Checkpoints != nil {
		if err := k.Checkpoints.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		written, failed, dropped := k.Checkpoints.Stats()
		k.Logger.Debug("Checkpoints: %d written, %d failed, %d dropped", written, failed, dropped)
	}
	if k.State != nil {
		if err := k.State.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close state store: %w", err))
		}
	}
	if k.notifyCloser != nil {
		if err := k.notifyCloser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if k.Database != nil {
		if err := k.Database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
