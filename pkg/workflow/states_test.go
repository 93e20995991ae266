package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHappyPathTransitions(t *testing.T) {
	path := []Status{StatusStarted, StatusTriaged, StatusTicketCreated, StatusNotified, StatusCompleted}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, IsValidTransition(path[i], path[i+1]), "%s → %s", path[i], path[i+1])
	}
}

func TestEveryNonTerminalStateCanFail(t *testing.T) {
	for _, s := range AllStatuses() {
		if IsTerminal(s) {
			assert.Empty(t, ValidNextStates(s), "terminal state %s must have no successors", s)
			continue
		}
		assert.True(t, IsValidTransition(s, StatusFailed), "%s must be able to fail", s)
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
	}{
		{StatusStarted, StatusTicketCreated},
		{StatusTriaged, StatusStarted},
		{StatusNotified, StatusTriaged},
		{StatusCompleted, StatusFailed},
		{StatusFailed, StatusStarted},
		{StatusStarted, StatusStarted},
		{Status("bogus"), StatusTriaged},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.False(t, IsValidTransition(tt.from, tt.to))
		})
	}
}

func TestTransitionTableCompleteness(t *testing.T) {
	for _, s := range AllStatuses() {
		_, ok := validTransitions[s]
		assert.True(t, ok, "state %s missing from transition table", s)
	}
	assert.Len(t, validTransitions, len(AllStatuses()))
}

func TestRunAdvanceRejectsSkips(t *testing.T) {
	r := newRun("abc", "input", "#bugs", time.Now())
	err := r.advance(StatusNotified, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, StatusStarted, r.Status)
	assert.Empty(t, r.Transitions)
}

func TestRunFailRecordsLastStatus(t *testing.T) {
	now := time.Now()
	r := newRun("abc", "input", "#bugs", now)
	require.NoError(t, r.advance(StatusTriaged, now))
	r.fail(StageCreateTicket, errors.New("registry down"), now)

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, StatusTriaged, r.LastStatus())
	assert.Equal(t, StageCreateTicket, r.FailedStage)
	assert.Equal(t, "registry down", r.Error)

	r.fail(StageNotify, errors.New("again"), now)
	assert.Equal(t, "registry down", r.Error, "failing a terminal run is a no-op")
	assert.Len(t, r.Transitions, 2)
}
