package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataNeuron/enterpirse-workflow-agent/internal/mocks"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/llm/llmerrors"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/metrics"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/statestore"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/ticket"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/triage"
)

var fixedTime = time.Date(2026, 1, 30, 12, 0, 0, 0, time.UTC)

// testRegistry wraps a memory registry and can be told to fail.
type testRegistry struct {
	inner *ticket.MemoryRegistry
	err   error
	calls []ticket.CreateRequest
	mu    sync.Mutex
}

func newTestRegistry() *testRegistry {
	return &testRegistry{inner: ticket.NewMemoryRegistry("")}
}

func (r *testRegistry) Create(ctx context.Context, req ticket.CreateRequest) (*ticket.CreateResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.inner.Create(ctx, req)
}

type fixture struct {
	llm      *mocks.MockLLMClient
	registry *testRegistry
	notifier *mocks.MockNotifier
	store    *statestore.MemoryStore
}

func newFixture(reply string) *fixture {
	llm := mocks.NewMockLLMClient()
	llm.RespondWith(reply)
	return &fixture{
		llm:      llm,
		registry: newTestRegistry(),
		notifier: mocks.NewMockNotifier(),
		store:    statestore.NewMemoryStore(),
	}
}

func (f *fixture) orchestrator(opts ...Option) *Orchestrator {
	base := []Option{
		WithIDGenerator(func() string { return "wf000001" }),
		WithClock(func() time.Time { return fixedTime }),
	}
	return New(triage.NewClassifier(f.llm, nil), f.registry, f.notifier, f.store, append(base, opts...)...)
}

const bugReply = "Category: bug\nPriority: P2\nReasoning: Checkout button unresponsive on mobile"

func TestRunCompletesLowPriority(t *testing.T) {
	f := newFixture(bugReply)
	input := "The checkout button is not responding when I click it on mobile."

	r := f.orchestrator().Run(context.Background(), input, "#bugs")

	require.True(t, r.Succeeded(), r.Error)
	assert.Equal(t, "wf000001", r.ID)
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Empty(t, r.Error)
	assert.Equal(t, triage.CategoryBug, r.Classification.Category)
	assert.Equal(t, "BUG-1", r.TicketID())
	assert.Equal(t, "https://jira.example.com/browse/BUG-1", r.TicketURL)
	assert.Equal(t, fixedTime, r.CompletedAt)

	require.Len(t, r.Notifications, 1)
	assert.Equal(t, NotificationRecord{Channel: "#bugs", MessageID: "msg-1", Success: true}, r.Notifications[0])

	var statuses []Status
	for _, tr := range r.Transitions {
		statuses = append(statuses, tr.To)
	}
	assert.Equal(t, []Status{StatusTriaged, StatusTicketCreated, StatusNotified, StatusCompleted}, statuses)

	require.Len(t, f.registry.calls, 1)
	req := f.registry.calls[0]
	assert.Equal(t, input, req.Title)
	assert.Equal(t, "Bug", req.Type)
	assert.Equal(t, triage.PriorityP2, req.Priority)
	assert.Contains(t, req.Description, "Workflow ID: wf000001")
}

func TestRunUrgentNotifiesAlertsThenDefault(t *testing.T) {
	f := newFixture("Category: incident\nPriority: P0\nReasoning: Full outage")

	r := f.orchestrator().Run(context.Background(), "Site is completely down!", "#ops")

	require.True(t, r.Succeeded())
	assert.Equal(t, []string{"#alerts", "#ops"}, f.notifier.Channels())
	require.Len(t, r.Notifications, 2)
	assert.Equal(t, "#alerts", r.Notifications[0].Channel)
	assert.Equal(t, "#ops", r.Notifications[1].Channel)
	assert.Equal(t, "INC-1", r.TicketID())
	assert.True(t, strings.HasPrefix(f.notifier.SendCalls[0].Text, "🎫 New INCIDENT - P0"))
}

func TestRunChannelFailureIsRecordedNotFatal(t *testing.T) {
	f := newFixture("Category: bug\nPriority: P1\nReasoning: many users")
	f.notifier.FailChannel("#alerts", errors.New("channel_not_found"))

	r := f.orchestrator().Run(context.Background(), "Login fails for all users", "#bugs")

	assert.Equal(t, StatusCompleted, r.Status)
	assert.Empty(t, r.Error)
	require.Len(t, r.Notifications, 2)
	assert.False(t, r.Notifications[0].Success)
	assert.Equal(t, "channel_not_found", r.Notifications[0].Error)
	assert.True(t, r.Notifications[1].Success, "a failing channel must not block the next one")
	assert.Equal(t, 1, r.NotificationsDelivered())
}

func TestRunClassifierFailureHalts(t *testing.T) {
	f := newFixture("")
	f.llm.FailCompleteWith(errors.New("dial tcp: connection refused"))

	r := f.orchestrator().Run(context.Background(), "anything", "#bugs")

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, StageTriage, r.FailedStage)
	assert.Equal(t, StatusStarted, r.LastStatus())
	assert.NotEmpty(t, r.Error)
	assert.Nil(t, r.Classification)
	assert.Nil(t, r.Ticket)
	assert.Empty(t, r.Notifications)
	assert.Empty(t, f.registry.calls, "no downstream stage may run")
	assert.Empty(t, f.notifier.SendCalls)

	snaps, err := f.store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestRunMalformedReplyUsesDefaults(t *testing.T) {
	f := newFixture("I think this is probably fine?")

	r := f.orchestrator().Run(context.Background(), "How do I reset my password?", "#bugs")

	require.True(t, r.Succeeded())
	assert.Equal(t, triage.DefaultClassification(), *r.Classification)
	assert.Equal(t, "QUE-1", r.TicketID())
}

func TestRunTicketFailureHalts(t *testing.T) {
	f := newFixture(bugReply)
	f.registry.err = errors.New("tracker unavailable")

	r := f.orchestrator().Run(context.Background(), "broken", "#bugs")

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, StageCreateTicket, r.FailedStage)
	assert.Equal(t, StatusTriaged, r.LastStatus())
	assert.Contains(t, r.Error, "tracker unavailable")
	assert.NotNil(t, r.Classification)
	assert.Empty(t, r.Notifications)
	assert.Empty(t, f.notifier.SendCalls)
}

func TestRunStoreFailureHalts(t *testing.T) {
	f := newFixture(bugReply)
	store := mocks.NewFailingStateStore()
	o := New(triage.NewClassifier(f.llm, nil), f.registry, f.notifier, store)

	r := o.Run(context.Background(), "broken", "#bugs")

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, StageFinalize, r.FailedStage)
	assert.Equal(t, StatusNotified, r.LastStatus())
	assert.Contains(t, r.Error, mocks.ErrStoreUnavailable.Error())
	assert.Len(t, r.Notifications, 1, "notifications already sent stay recorded")
	assert.True(t, r.CompletedAt.IsZero())
	assert.Equal(t, 1, store.Attempts())
}

func TestRunWritesFinalSnapshot(t *testing.T) {
	f := newFixture(bugReply)

	r := f.orchestrator(WithAgentName("triage-agent")).Run(context.Background(), "checkout broken", "#bugs")
	require.True(t, r.Succeeded())

	snaps, err := f.store.List(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "triage-agent", snaps[0].Agent)
	assert.Equal(t, string(StatusCompleted), snaps[0].Status)
	require.NoError(t, snaps[0].Verify())

	var state FinalState
	require.NoError(t, snaps[0].Decode(&state))
	assert.Equal(t, "checkout broken", state.UserInput)
	assert.Equal(t, "BUG-1", state.TicketID)
	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, fixedTime, state.CompletedAt)
	assert.Len(t, state.Notifications, 1)
}

func TestRunCheckpointsEveryStage(t *testing.T) {
	f := newFixture(bugReply)
	writer := statestore.NewAsyncWriter(f.store, 8, nil)
	defer func() { _ = writer.Close(context.Background()) }()

	r := f.orchestrator(WithCheckpoints(writer)).Run(context.Background(), "checkout broken", "#bugs")
	require.True(t, r.Succeeded())

	snaps, err := f.store.List(context.Background(), r.ID)
	require.NoError(t, err)
	var statuses []string
	for _, s := range snaps {
		statuses = append(statuses, s.Status)
	}
	assert.Equal(t, []string{"triaged", "ticket_created", "notified", "completed"}, statuses,
		"checkpoints are flushed before the final snapshot")

	for i := 1; i < len(snaps); i++ {
		assert.True(t, snaps[i].Timestamp.After(snaps[i-1].Timestamp))
	}
}

func TestRunCheckpointsRecordFailure(t *testing.T) {
	f := newFixture(bugReply)
	f.registry.err = errors.New("tracker unavailable")
	writer := statestore.NewAsyncWriter(f.store, 8, nil)

	r := f.orchestrator(WithCheckpoints(writer)).Run(context.Background(), "broken", "#bugs")
	require.NoError(t, writer.Close(context.Background()))

	snaps, err := f.store.List(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "failed", snaps[1].Status)

	var cp Checkpoint
	require.NoError(t, snaps[1].Decode(&cp))
	assert.Equal(t, StageCreateTicket, cp.Stage)
	assert.Contains(t, cp.Error, "tracker unavailable")
}

func TestRunRecordsMetrics(t *testing.T) {
	f := newFixture("Category: incident\nPriority: P0\nReasoning: outage")
	reg := prometheus.NewRegistry()

	o := f.orchestrator(WithRecorder(metrics.NewPrometheusRecorder(reg)))
	o.Run(context.Background(), "down", "#bugs")

	expected := `
# HELP workflow_runs_total Workflow runs by terminal status
# TYPE workflow_runs_total counter
workflow_runs_total{status="completed"} 1
# HELP workflow_classifications_total Classified requests by category and priority
# TYPE workflow_classifications_total counter
workflow_classifications_total{category="incident",priority="P0"} 1
# HELP workflow_notifications_total Notification attempts by route and result
# TYPE workflow_notifications_total counter
workflow_notifications_total{result="success",route="alert"} 1
workflow_notifications_total{result="success",route="default"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"workflow_runs_total", "workflow_classifications_total", "workflow_notifications_total"))
	count, err := testutil.GatherAndCount(reg, "workflow_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestRunAlertChannelAndLimits(t *testing.T) {
	f := newFixture("Category: bug\nPriority: P1\nReasoning: many users")

	r := f.orchestrator(WithAlertChannel("#sev1"), WithLimits(10, 5)).Run(context.Background(), "Payments failing for everyone", "#bugs")

	require.True(t, r.Succeeded())
	assert.Equal(t, []string{"#sev1", "#bugs"}, f.notifier.Channels())
	assert.Equal(t, "Payments f", f.registry.calls[0].Title)
	assert.Contains(t, f.notifier.SendCalls[0].Text, "Issue: Payme\n")
}

func TestRunDefaultsChannel(t *testing.T) {
	f := newFixture(bugReply)
	r := f.orchestrator().Run(context.Background(), "broken", "")
	assert.Equal(t, DefaultChannel, r.DefaultChannel)
	assert.Equal(t, []string{DefaultChannel}, f.notifier.Channels())
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	f := newFixture(bugReply)
	o := New(triage.NewClassifier(f.llm, nil), f.registry, f.notifier, f.store)

	const n = 20
	runs := make([]*Run, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runs[i] = o.Run(context.Background(), fmt.Sprintf("request %d", i), "#bugs")
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool)
	tickets := make(map[string]bool)
	for _, r := range runs {
		require.True(t, r.Succeeded())
		assert.Len(t, r.ID, 8)
		ids[r.ID] = true
		tickets[r.TicketID()] = true
	}
	assert.Len(t, ids, n)
	assert.Len(t, tickets, n, "ticket ids are unique across concurrent runs")
}

func TestInferenceErrorSurfacesType(t *testing.T) {
	f := newFixture("")
	f.llm.FailCompleteWith(llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeAuth, 401, "bad key"))

	r := f.orchestrator().Run(context.Background(), "x", "#bugs")
	assert.Equal(t, StatusFailed, r.Status)
	assert.Contains(t, r.Error, "bad key")
}

func TestCreateTicketWithoutClassificationPanics(t *testing.T) {
	f := newFixture(bugReply)
	o := f.orchestrator()
	r := newRun("wf", "x", "#bugs", fixedTime)
	assert.Panics(t, func() { _ = o.createTicket(context.Background(), r) })
}
