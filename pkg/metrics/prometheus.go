package metrics

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	runs            *prometheus.CounterVec
	inFlight        prometheus.Gauge
	runDuration     *prometheus.HistogramVec
	classifications *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
}

// NewPrometheusRecorder registers the workflow collectors with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_runs_total",
				Help: "Workflow runs by terminal status",
			},
			[]string{"status"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "workflow_runs_in_flight",
				Help: "Workflow runs currently executing",
			},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workflow_run_duration_seconds",
				Help:    "End-to-end workflow run duration",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"status"},
		),
		classifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_classifications_total",
				Help: "Classified requests by category and priority",
			},
			[]string{"category", "priority"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workflow_stage_duration_seconds",
				Help:    "Duration of each workflow stage",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage", "result"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_notifications_total",
				Help: "Notification attempts by route and result",
			},
			[]string{"route", "result"},
		),
	}
}

// RunStarted implements Recorder.
func (p *PrometheusRecorder) RunStarted() {
	p.inFlight.Inc()
}

// RunFinished implements Recorder.
func (p *PrometheusRecorder) RunFinished(status string, duration time.Duration) {
	p.inFlight.Dec()
	p.runs.WithLabelValues(status).Inc()
	p.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Classified implements Recorder.
func (p *PrometheusRecorder) Classified(category, priority string) {
	p.classifications.WithLabelValues(category, priority).Inc()
}

// StageFinished implements Recorder.
func (p *PrometheusRecorder) StageFinished(stage string, success bool, duration time.Duration) {
	p.stageDuration.WithLabelValues(stage, result(success)).Observe(duration.Seconds())
}

// NotificationSent implements Recorder. route is RouteAlert or RouteDefault;
// channel names are not used as labels.
func (p *PrometheusRecorder) NotificationSent(route string, success bool) {
	if route != RouteAlert {
		route = RouteDefault
	}
	p.notifications.WithLabelValues(route, result(success)).Inc()
}

// Handler serves gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// WriteText dumps every metric family in gatherer as text.
func WriteText(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
