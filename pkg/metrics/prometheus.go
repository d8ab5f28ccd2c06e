// Package metrics provides Prometheus metrics for a toolaudit run.
//
// The audit is a batch job: its registry is written once at the end of the
// run in the node-exporter textfile format. The results API serves the same
// registry for scraping.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all toolaudit metrics on one registry.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer
	gatherer         prometheus.Gatherer

	// Feed ingestion
	feedRecords *prometheus.CounterVec
	teams       prometheus.Gauge
	submissions prometheus.Gauge
	accepted    prometheus.Gauge

	// Snapshot ingestion
	snapshotRows  *prometheus.CounterVec
	snapshotUnits prometheus.Gauge
	unidentified  prometheus.Gauge

	// Aggregation and cross-referencing
	buckets              prometheus.Gauge
	mismatches           *prometheus.CounterVec
	excludedSubmissions  prometheus.Counter
	attributedSubmission prometheus.Counter

	// Job queue and workers
	queueSize     prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueRejected prometheus.Counter
	workerCount   prometheus.Gauge
	workerErrors  prometheus.Counter

	errorsByComponent *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec

	// Results API
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

var globalManager = NewManager(WithPrometheusRegistry(customRegistry)) //nolint:gochecknoglobals // singleton used by package-level helpers

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "toolaudit",
		subsystem:        "",
		histogramBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		reg := prometheus.NewRegistry()
		m.registry, m.gatherer = reg, reg
	}
	if m.gatherer == nil {
		if g, ok := m.registry.(prometheus.Gatherer); ok {
			m.gatherer = g
		}
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	auto := promauto.With(m.registry)

	m.feedRecords = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feed_records_total",
		Help:      "Event feed records by type and outcome",
	}, []string{"type", "outcome"})

	m.teams = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "teams",
		Help:      "Teams registered in the event feed",
	})

	m.submissions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submissions",
		Help:      "Submissions with a recognized language",
	})

	m.accepted = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "accepted_submissions",
		Help:      "Submissions counted as first accepted solve of their problem",
	})

	m.snapshotRows = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_rows_total",
		Help:      "Process snapshot rows by outcome",
	}, []string{"outcome"})

	m.snapshotUnits = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_units",
		Help:      "Team or team-workstation snapshot units parsed",
	})

	m.unidentified = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "unidentified_commands",
		Help:      "Distinct team command lines that matched no known tool",
	})

	m.buckets = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buckets",
		Help:      "Observed time buckets",
	})

	m.mismatches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "mismatches_total",
		Help:      "Submissions whose language is not expected from the attributed tool",
	}, []string{"language", "tool"})

	m.excludedSubmissions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "excluded_submissions_total",
		Help:      "Submissions outside the observed snapshot range",
	})

	m.attributedSubmission = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "attributed_submissions_total",
		Help:      "Submissions attributed to a tool",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Snapshot units waiting to be parsed",
	})

	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueued_total",
		Help:      "Snapshot units enqueued",
	})

	m.queueRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_rejected_total",
		Help:      "Snapshot units rejected by a closed or cancelled queue",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Snapshot parsing workers",
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Snapshot units that failed to parse",
	})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Errors by component and type",
	}, []string{"component", "type"})

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_duration_seconds",
		Help:      "Wall time of each pipeline stage",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Results API requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "Results API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordFeedRecord counts one feed record of recordType with the given outcome.
func (m *Manager) RecordFeedRecord(recordType, outcome string) {
	m.feedRecords.WithLabelValues(recordType, outcome).Inc()
}

// UpdateFeedTotals sets the feed level gauges.
func (m *Manager) UpdateFeedTotals(teams, submissions, accepted int) {
	m.teams.Set(float64(teams))
	m.submissions.Set(float64(submissions))
	m.accepted.Set(float64(accepted))
}

// RecordSnapshotRows adds n rows with outcome.
func (m *Manager) RecordSnapshotRows(outcome string, n int) {
	if n <= 0 {
		return
	}
	m.snapshotRows.WithLabelValues(outcome).Add(float64(n))
}

// UpdateSnapshotTotals sets the snapshot level gauges.
func (m *Manager) UpdateSnapshotTotals(units, unidentified int) {
	m.snapshotUnits.Set(float64(units))
	m.unidentified.Set(float64(unidentified))
}

// UpdateBuckets sets the number of observed buckets.
func (m *Manager) UpdateBuckets(n int) { m.buckets.Set(float64(n)) }

// RecordMismatch counts one language/tool mismatch.
func (m *Manager) RecordMismatch(language, tool string) {
	m.mismatches.WithLabelValues(language, tool).Inc()
}

// RecordExcludedSubmission counts a submission outside the snapshot range.
func (m *Manager) RecordExcludedSubmission() { m.excludedSubmissions.Inc() }

// RecordAttributedSubmission counts a submission attributed to a tool.
func (m *Manager) RecordAttributedSubmission() { m.attributedSubmission.Inc() }

// UpdateQueueSize sets the current queue length.
func (m *Manager) UpdateQueueSize(n int) { m.queueSize.Set(float64(n)) }

// RecordQueueEnqueue counts an accepted job.
func (m *Manager) RecordQueueEnqueue() { m.queueEnqueued.Inc() }

// RecordQueueRejected counts a rejected job.
func (m *Manager) RecordQueueRejected() { m.queueRejected.Inc() }

// UpdateWorkerCount sets the number of workers.
func (m *Manager) UpdateWorkerCount(n int) { m.workerCount.Set(float64(n)) }

// RecordWorkerError counts a failed job.
func (m *Manager) RecordWorkerError() { m.workerErrors.Inc() }

// RecordErrorByComponent counts an error with component and type labels.
func (m *Manager) RecordErrorByComponent(component, errorType string) {
	m.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordStageDuration observes the wall time of a pipeline stage.
func (m *Manager) RecordStageDuration(stage string, seconds float64) {
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordHTTPRequest counts one results API request.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes the latency of one results API request.
func (m *Manager) RecordHTTPRequestDuration(endpoint, method, statusCode string, seconds float64) {
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// WriteTextfile writes every metric of m to path, atomically.
func (m *Manager) WriteTextfile(path string) error {
	if m.gatherer == nil {
		return fmt.Errorf("%w: registry cannot be gathered", ErrWriteFailed)
	}
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Package-level helpers operating on the global manager.

func RecordFeedRecord(recordType, outcome string)       { globalManager.RecordFeedRecord(recordType, outcome) }
func UpdateFeedTotals(teams, submissions, accepted int) { globalManager.UpdateFeedTotals(teams, submissions, accepted) }
func RecordSnapshotRows(outcome string, n int)          { globalManager.RecordSnapshotRows(outcome, n) }
func UpdateSnapshotTotals(units, unidentified int)      { globalManager.UpdateSnapshotTotals(units, unidentified) }
func UpdateBuckets(n int)                               { globalManager.UpdateBuckets(n) }
func RecordMismatch(language, tool string)              { globalManager.RecordMismatch(language, tool) }
func RecordExcludedSubmission()                         { globalManager.RecordExcludedSubmission() }
func RecordAttributedSubmission()                       { globalManager.RecordAttributedSubmission() }
func UpdateQueueSize(n int)                             { globalManager.UpdateQueueSize(n) }
func RecordQueueEnqueue()                               { globalManager.RecordQueueEnqueue() }
func RecordQueueRejected()                              { globalManager.RecordQueueRejected() }
func UpdateWorkerCount(n int)                           { globalManager.UpdateWorkerCount(n) }
func RecordWorkerError()                                { globalManager.RecordWorkerError() }
func RecordErrorByComponent(component, errType string)  { globalManager.RecordErrorByComponent(component, errType) }
func RecordStageDuration(stage string, seconds float64) { globalManager.RecordStageDuration(stage, seconds) }
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode)
}
func RecordHTTPRequestDuration(endpoint, method, statusCode string, seconds float64) {
	globalManager.RecordHTTPRequestDuration(endpoint, method, statusCode, seconds)
}

// WriteTextfile writes the global registry to path.
func WriteTextfile(path string) error { return globalManager.WriteTextfile(path) }

// GetRegistry returns the registry backing the package-level helpers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
