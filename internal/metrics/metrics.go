// Package metrics exposes Prometheus collectors for the hourswatch service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Render sources.
const (
	SourcePoller  = "poller"
	SourceCommand = "command"
)

var (
	pollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hourswatch_poll_cycles_total",
			Help: "Total number of poll cycles, labeled by result.",
		},
		[]string{"result"},
	)

	snapshotsAppendedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hourswatch_snapshots_appended_total",
			Help: "Total number of snapshots appended to the log.",
		},
	)

	lastSnapshotHours = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hourswatch_last_snapshot_hours",
			Help: "Most recently persisted metric values, labeled by metric.",
		},
		[]string{"metric"},
	)

	commandsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hourswatch_commands_total",
			Help: "Total number of on-demand hours commands accepted.",
		},
	)

	commandsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hourswatch_commands_in_flight",
			Help: "Number of on-demand commands currently rendering or notifying.",
		},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hourswatch_notifications_total",
			Help: "Total number of notifications attempted, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	renderDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hourswatch_render_duration_seconds",
			Help:    "Histogram of dashboard render latencies, labeled by source.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30},
		},
		[]string{"source"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hourswatch_errors_total",
			Help: "Total number of pipeline errors, labeled by source and class.",
		},
		[]string{"source", "class"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePollCycle records the outcome of one poll cycle.
func ObservePollCycle(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	pollCyclesTotal.WithLabelValues(result).Inc()
}

// ObserveSnapshotAppended records a persisted snapshot and its values.
func ObserveSnapshotAppended(pending, approved int) {
	snapshotsAppendedTotal.Inc()
	lastSnapshotHours.WithLabelValues("pending").Set(float64(pending))
	lastSnapshotHours.WithLabelValues("approved").Set(float64(approved))
}

// ObserveCommand increments the accepted command counter.
func ObserveCommand() {
	commandsTotal.Inc()
}

// IncCommandsInFlight increments the in-flight command gauge.
func IncCommandsInFlight() {
	commandsInFlight.Inc()
}

// DecCommandsInFlight decrements the in-flight command gauge.
func DecCommandsInFlight() {
	commandsInFlight.Dec()
}

// ObserveNotification records a notification attempt.
func ObserveNotification(sent bool) {
	outcome := "failed"
	if sent {
		outcome = "sent"
	}
	notificationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRender records the duration of a render.
func ObserveRender(source string, duration time.Duration) {
	renderDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveError increments the error counter for a source and error class.
func ObserveError(source, class string) {
	errorsTotal.WithLabelValues(source, class).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
