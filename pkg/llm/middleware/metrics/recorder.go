// Package metrics records per-request metrics for LLM clients.
package metrics

import (
	"time"
)

// Recorder receives one observation per completion request.
type Recorder interface {
	ObserveRequest(
		model, operation string,
		promptTokens, completionTokens int,
		success bool,
		errorType string,
		duration time.Duration,
	)
}

// NoopRecorder discards all observations.
type NoopRecorder struct{}

// Nop returns a recorder that does nothing.
func Nop() Recorder {
	return NoopRecorder{}
}

func (NoopRecorder) ObserveRequest(_, _ string, _, _ int, _ bool, _ string, _ time.Duration) {}
