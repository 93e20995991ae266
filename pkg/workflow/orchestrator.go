package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/metrics"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/notify"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/statestore"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/ticket"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/triage"
)

// DefaultAgentName is recorded on every snapshot the orchestrator writes.
const DefaultAgentName = "workflow-orchestrator"

// Stage names.
const (
	StageTriage       = "triage"
	StageCreateTicket = "create_ticket"
	StageNotify       = "notify"
	StageFinalize     = "finalize"
)

// Classifier turns request text into a classification. The only error it
// returns is a model or transport failure.
type Classifier interface {
	Classify(ctx context.Context, text string) (triage.Classification, error)
}

// TicketRegistry opens tickets.
type TicketRegistry interface {
	Create(ctx context.Context, req ticket.CreateRequest) (*ticket.CreateResult, error)
}

// Notifier delivers a message to one channel.
type Notifier interface {
	Send(ctx context.Context, channel, text string) (*notify.SendResult, error)
}

// StateStore appends workflow snapshots.
type StateStore interface {
	Append(ctx context.Context, snap statestore.Snapshot) error
}

// FinalState is the snapshot payload written by the finalize stage.
type FinalState struct {
	CompletedAt    time.Time             `json:"completed_at"`
	Classification triage.Classification `json:"classification"`
	UserInput      string                `json:"user_input"`
	TicketID       string                `json:"ticket_id"`
	Status         Status                `json:"status"`
	Notifications  []NotificationRecord  `json:"notifications"`
}

// Checkpoint is the snapshot payload written after each intermediate stage.
type Checkpoint struct {
	Classification *triage.Classification `json:"classification,omitempty"`
	Stage          string                 `json:"stage"`
	UserInput      string                 `json:"user_input"`
	TicketID       string                 `json:"ticket_id,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Status         Status                 `json:"status"`
	Notifications  []NotificationRecord   `json:"notifications"`
}

type stage struct {
	run  func(ctx context.Context, r *Run) error
	name string
}

// Orchestrator drives runs through triage, ticket creation, notification and finalization.
// It holds no per-run state and is safe for concurrent use when its collaborators are.
type Orchestrator struct {
	classifier   Classifier
	registry     TicketRegistry
	notifier     Notifier
	store        StateStore
	checkpoints  *statestore.AsyncWriter
	recorder     metrics.Recorder
	logger       *logx.Logger
	now          func() time.Time
	newID        func() string
	agentName    string
	alertChannel string
	titleMax     int
	issueMax     int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCheckpoints writes a snapshot after every intermediate stage through w.
// Checkpoint failures are logged by the writer and never affect the run.
func WithCheckpoints(w *statestore.AsyncWriter) Option {
	return func(o *Orchestrator) { o.checkpoints = w }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logx.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithAgentName sets the agent name recorded on snapshots.
func WithAgentName(name string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.agentName = name
		}
	}
}

// WithAlertChannel replaces the high-severity channel.
func WithAlertChannel(channel string) Option {
	return func(o *Orchestrator) {
		if channel != "" {
			o.alertChannel = channel
		}
	}
}

// WithLimits sets the title and notification excerpt lengths in runes.
// Non-positive values keep the defaults.
func WithLimits(titleMax, issueMax int) Option {
	return func(o *Orchestrator) {
		if titleMax > 0 {
			o.titleMax = titleMax
		}
		if issueMax > 0 {
			o.issueMax = issueMax
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator replaces the workflow id generator.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

// NewWorkflowID returns the first 8 characters of a random UUID.
func NewWorkflowID() string {
	return uuid.New().String()[:8]
}

// New creates an orchestrator over the four collaborators.
func New(classifier Classifier, registry TicketRegistry, notifier Notifier, store StateStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		classifier:   classifier,
		registry:     registry,
		notifier:     notifier,
		store:        store,
		recorder:     metrics.Nop(),
		logger:       logx.NewLogger("orchestrator"),
		now:          time.Now,
		newID:        NewWorkflowID,
		agentName:    DefaultAgentName,
		alertChannel: AlertChannel,
		titleMax:     DefaultTitleMaxRunes,
		issueMax:     DefaultIssueMaxRunes,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{name: StageTriage, run: o.triage},
		{name: StageCreateTicket, run: o.createTicket},
		{name: StageNotify, run: o.notify},
		{name: StageFinalize, run: o.finalize},
	}
}

// Run executes one workflow for userInput. An empty channel uses DefaultChannel.
// Failures are reported on the returned Run; Run never returns a nil Run.
func (o *Orchestrator) Run(ctx context.Context, userInput, channel string) *Run {
	if channel == "" {
		channel = DefaultChannel
	}
	start := o.now()
	r := newRun(o.newID(), userInput, channel, start.UTC())

	ctx = logx.WithComponent(ctx, o.logger.Component())
	o.recorder.RunStarted()
	o.logger.Info("🚀 Starting workflow: %s", r.ID)
	o.logger.Debug("Input: %.50s...", userInput)

	for i, st := range o.stages() {
		o.logger.Info("Step %d: %s", i+1, st.name)
		logx.DebugFlow(ctx, "workflow", st.name, "start", r.ID)
		stageStart := o.now()
		err := st.run(ctx, r)
		o.recorder.StageFinished(st.name, err == nil, o.now().Sub(stageStart))
		if err != nil {
			logx.DebugFlow(ctx, "workflow", st.name, "failed", err.Error())
			r.fail(st.name, err, o.now().UTC())
			o.logger.Error("❌ Workflow %s failed at %s: %v", r.ID, st.name, err)
			o.checkpoint(st.name, r)
			break
		}
		logx.DebugState(ctx, "workflow", "advanced", string(r.Status), r.ID)
		if st.name != StageFinalize {
			o.checkpoint(st.name, r)
		}
	}

	o.recorder.RunFinished(string(r.Status), o.now().Sub(start))
	if r.Succeeded() {
		o.logger.Info("✅ Workflow %s completed!", r.ID)
	}
	return r
}

func (o *Orchestrator) triage(ctx context.Context, r *Run) error {
	c, err := o.classifier.Classify(ctx, r.UserInput)
	if err != nil {
		return err //nolint:wrapcheck // InferenceError already names the model
	}
	r.Classification = &c
	o.recorder.Classified(string(c.Category), string(c.Priority))
	return r.advance(StatusTriaged, o.now().UTC())
}

func (o *Orchestrator) createTicket(ctx context.Context, r *Run) error {
	if r.Classification == nil {
		panic("workflow: create_ticket reached without a classification")
	}
	c := *r.Classification
	res, err := o.registry.Create(ctx, ticket.CreateRequest{
		Title:       TicketTitle(r.UserInput, o.titleMax),
		Description: TicketDescription(r.ID, r.UserInput, c),
		Priority:    c.Priority,
		Type:        TicketType(c.Category),
	})
	if err != nil {
		return fmt.Errorf("ticket creation failed: %w", err)
	}
	if res == nil || !res.Success || res.Ticket == nil {
		return errors.New("ticket creation failed: registry reported failure")
	}
	r.Ticket = res.Ticket
	r.TicketURL = res.TicketURL
	o.logger.Info("Ticket created: %s", res.TicketID)
	return r.advance(StatusTicketCreated, o.now().UTC())
}

func (o *Orchestrator) notify(ctx context.Context, r *Run) error {
	if r.Classification == nil || r.Ticket == nil {
		panic("workflow: notify reached without a classification and ticket")
	}
	text := NotificationText(r, o.issueMax)
	urgent := r.Classification.Priority.Urgent()
	for i, channel := range routeChannels(r.Classification.Priority, o.alertChannel, r.DefaultChannel) {
		rec := NotificationRecord{Channel: channel}
		res, err := o.notifier.Send(ctx, channel, text)
		switch {
		case err != nil:
			rec.Error = err.Error()
			o.logger.Warn("Notification to %s failed: %v", channel, err)
		case res == nil || !res.Success:
			rec.Error = "notifier reported failure"
			o.logger.Warn("Notification to %s was not accepted", channel)
		default:
			rec.Success = true
			rec.MessageID = res.MessageID
		}
		route := metrics.RouteDefault
		if urgent && i == 0 {
			route = metrics.RouteAlert
		}
		o.recorder.NotificationSent(route, rec.Success)
		r.Notifications = append(r.Notifications, rec)
	}
	return r.advance(StatusNotified, o.now().UTC())
}

func (o *Orchestrator) finalize(ctx context.Context, r *Run) error {
	if o.checkpoints != nil {
		if err := o.checkpoints.Flush(ctx); err != nil {
			o.logger.Warn("Checkpoints for %s not flushed: %v", r.ID, err)
		}
	}

	completedAt := o.now().UTC()
	state := FinalState{
		UserInput:      r.UserInput,
		Classification: *r.Classification,
		TicketID:       r.TicketID(),
		Notifications:  r.Notifications,
		Status:         StatusCompleted,
		CompletedAt:    completedAt,
	}
	snap, err := statestore.NewSnapshot(r.ID, o.agentName, string(StatusCompleted), state)
	if err != nil {
		return fmt.Errorf("state snapshot failed: %w", err)
	}
	if err := o.store.Append(ctx, snap); err != nil {
		return fmt.Errorf("state persistence failed: %w", err)
	}
	r.CompletedAt = completedAt
	return r.advance(StatusCompleted, completedAt)
}

func (o *Orchestrator) checkpoint(stageName string, r *Run) {
	if o.checkpoints == nil {
		return
	}
	records := make([]NotificationRecord, len(r.Notifications))
	copy(records, r.Notifications)
	state := Checkpoint{
		Stage:          stageName,
		Status:         r.Status,
		UserInput:      r.UserInput,
		Classification: r.Classification,
		TicketID:       r.TicketID(),
		Notifications:  records,
		Error:          r.Error,
	}
	snap, err := statestore.NewSnapshot(r.ID, o.agentName, string(r.Status), state)
	if err != nil {
		o.logger.Warn("Checkpoint for %s not built: %v", r.ID, err)
		return
	}
	o.checkpoints.Submit(snap)
}
