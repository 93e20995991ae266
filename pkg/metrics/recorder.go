// Package metrics records workflow run metrics in Prometheus and reads
// aggregated run summaries back from a Prometheus server.
package metrics

import "time"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Notification route label values.
const (
	RouteAlert   = "alert"
	RouteDefault = "default"
)

// Recorder receives workflow observations. Implementations must be safe for concurrent use.
type Recorder interface {
	RunStarted()
	RunFinished(status string, duration time.Duration)
	Classified(category, priority string)
	StageFinished(stage string, success bool, duration time.Duration)
	NotificationSent(route string, success bool)
}

// NopRecorder discards everything.
type NopRecorder struct{}

// Nop returns a recorder that discards everything.
func Nop() Recorder { return NopRecorder{} }

func (NopRecorder) RunStarted()                               {}
func (NopRecorder) RunFinished(string, time.Duration)         {}
func (NopRecorder) Classified(string, string)                 {}
func (NopRecorder) StageFinished(string, bool, time.Duration) {}
func (NopRecorder) NotificationSent(string, bool)             {}

func result(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}
