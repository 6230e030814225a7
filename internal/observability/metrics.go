package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	apiRequestsTotal    *prometheus.CounterVec
	apiLatencySeconds   *prometheus.HistogramVec
	apiErrorsTotal      *prometheus.CounterVec
	monitorTickSeconds  prometheus.Histogram
	monitorSkippedTicks prometheus.Counter
	violationsTotal     *prometheus.CounterVec
	reportFailuresTotal prometheus.Counter
	reportsDropped      prometheus.Counter
	activeSessions      prometheus.Gauge
	checkpointsTotal    *prometheus.CounterVec
	snapshotsTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the proctoring API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_requests_total",
			Help: "Total number of proctoring API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proctor_latency_seconds",
			Help:    "Latency distribution for proctoring API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_errors_total",
			Help: "Total number of error responses returned by proctoring endpoints.",
		}, []string{"method", "route", "status"})

		monitorTickSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "proctor_monitor_tick_seconds",
			Help:    "Time from tick start to applied frame metrics.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		})

		monitorSkippedTicks = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proctor_monitor_skipped_ticks_total",
			Help: "Ticks skipped because the previous analysis was still in flight.",
		})

		violationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_violations_total",
			Help: "Violations recorded across all sessions.",
		}, []string{"type", "severity"})

		reportFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proctor_report_failures_total",
			Help: "Violation reports the sink failed to deliver.",
		})

		reportsDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proctor_reports_dropped_total",
			Help: "Violation reports dropped because the sink backlog was full.",
		})

		activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proctor_active_sessions",
			Help: "Sessions with a running monitor.",
		})

		checkpointsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_checkpoints_total",
			Help: "Session checkpoints written, by outcome.",
		}, []string{"outcome"})

		snapshotsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_snapshots_total",
			Help: "Evidence snapshots received, by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			monitorTickSeconds, monitorSkippedTicks, violationsTotal,
			reportFailuresTotal, reportsDropped, activeSessions,
			checkpointsTotal, snapshotsTotal,
		)
	})
}

// APIRequests exposes the counter for proctoring requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for proctoring requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for proctoring error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// MonitorTickLatency exposes the tick latency histogram.
func MonitorTickLatency() prometheus.Histogram {
	RegisterMetrics()
	return monitorTickSeconds
}

// MonitorSkippedTicks exposes the skipped tick counter.
func MonitorSkippedTicks() prometheus.Counter {
	RegisterMetrics()
	return monitorSkippedTicks
}

// Violations exposes the violation counter.
func Violations() *prometheus.CounterVec {
	RegisterMetrics()
	return violationsTotal
}

// ReportFailures exposes the failed delivery counter.
func ReportFailures() prometheus.Counter {
	RegisterMetrics()
	return reportFailuresTotal
}

// ReportsDropped exposes the dropped report counter.
func ReportsDropped() prometheus.Counter {
	RegisterMetrics()
	return reportsDropped
}

// ActiveSessions exposes the running session gauge.
func ActiveSessions() prometheus.Gauge {
	RegisterMetrics()
	return activeSessions
}

// Checkpoints exposes the checkpoint outcome counter.
func Checkpoints() *prometheus.CounterVec {
	RegisterMetrics()
	return checkpointsTotal
}

// Snapshots exposes the snapshot outcome counter.
func Snapshots() *prometheus.CounterVec {
	RegisterMetrics()
	return snapshotsTotal
}
