// Package metrics provides Prometheus metrics for the paceline scoring
// engine. A package-level manager on a dedicated registry keeps the
// call sites free of plumbing; components record through the exported
// helpers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metric configuration.
const (
	defaultNamespace = "paceline"
)

var defaultDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Manager owns every metric of the service.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	// Ingestion pipeline
	recordsFetched   prometheus.Counter
	recordsRejected  *prometheus.CounterVec
	recordsAccepted  prometheus.Counter
	recordsDuplicate prometheus.Counter
	receiptsFetched  prometheus.Counter
	sourceErrors     prometheus.Counter

	// Refresh orchestration
	refreshes        *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	snapshotAge      *prometheus.GaugeVec
	snapshotVersions prometheus.Counter

	// Refresh queue and workers
	queueDepth    prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueDropped  prometheus.Counter
	workerCount   prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Process health
	goroutines  prometheus.Gauge
	memoryBytes prometheus.Gauge
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithDurationBuckets overrides the refresh/HTTP duration buckets.
func WithDurationBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// NewManager creates a manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: defaultNamespace,
		buckets:   defaultDurationBuckets,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initialize()
	return m
}

func (m *Manager) initialize() {
	factory := promauto.With(m.registry)

	m.recordsFetched = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "records_fetched_total",
		Help: "Raw records returned by the record source.",
	})
	m.recordsRejected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "records_rejected_total",
		Help: "Records rejected by the eligibility filter, by reason.",
	}, []string{"reason"})
	m.recordsAccepted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "records_accepted_total",
		Help: "Activities folded into aggregation state.",
	})
	m.recordsDuplicate = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "records_duplicate_total",
		Help: "Replayed record ids ignored by the idempotent fold.",
	})
	m.receiptsFetched = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "receipts_fetched_total",
		Help: "Subscription receipts fetched from the record source.",
	})
	m.sourceErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "source_errors_total",
		Help: "Failed fetches against individual record sources.",
	})

	m.refreshes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "refreshes_total",
		Help: "Refresh attempts by outcome (fresh, cached, stale, throttled).",
	}, []string{"outcome"})
	m.refreshDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Name: "refresh_duration_seconds",
		Help:    "Wall time of full refresh cycles.",
		Buckets: m.buckets,
	})
	m.snapshotAge = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "snapshot_age_seconds",
		Help: "Age of the current snapshot per competition.",
	}, []string{"competition"})
	m.snapshotVersions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "snapshots_published_total",
		Help: "Immutable snapshots swapped in by refresh cycles.",
	})

	m.queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "refresh_queue_depth",
		Help: "Refresh requests waiting in the queue.",
	})
	m.queueEnqueued = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "refresh_queue_enqueued_total",
		Help: "Refresh requests accepted into the queue.",
	})
	m.queueDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "refresh_queue_dropped_total",
		Help: "Refresh requests dropped because the queue was full.",
	})
	m.workerCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "refresh_workers",
		Help: "Running refresh workers.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Name: "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: m.buckets,
	}, []string{"endpoint", "method"})

	m.goroutines = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "goroutines",
		Help: "Current goroutine count.",
	})
	m.memoryBytes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "memory_alloc_bytes",
		Help: "Heap bytes currently allocated.",
	})
}

// Registry returns the manager's Prometheus registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

var defaultManager = NewManager()

// GetRegistry returns the registry backing the package-level helpers.
func GetRegistry() *prometheus.Registry {
	return defaultManager.Registry()
}

// Package-level recording helpers.

func RecordRecordsFetched(n int)   { defaultManager.recordsFetched.Add(float64(n)) }
func RecordRecordAccepted()        { defaultManager.recordsAccepted.Inc() }
func RecordRecordDuplicate()       { defaultManager.recordsDuplicate.Inc() }
func RecordReceiptsFetched(n int)  { defaultManager.receiptsFetched.Add(float64(n)) }
func RecordSourceError()           { defaultManager.sourceErrors.Inc() }

// RecordRecordRejected counts a filter rejection under its reason label.
func RecordRecordRejected(reason string) {
	defaultManager.recordsRejected.WithLabelValues(reason).Inc()
}

// RecordRefresh counts a refresh attempt by outcome.
func RecordRefresh(outcome string) {
	defaultManager.refreshes.WithLabelValues(outcome).Inc()
}

func RecordRefreshDuration(seconds float64) { defaultManager.refreshDuration.Observe(seconds) }
func RecordSnapshotPublished()              { defaultManager.snapshotVersions.Inc() }

// UpdateSnapshotAge publishes the age of a competition's snapshot.
func UpdateSnapshotAge(competition string, seconds float64) {
	defaultManager.snapshotAge.WithLabelValues(competition).Set(seconds)
}

func UpdateQueueDepth(depth int) { defaultManager.queueDepth.Set(float64(depth)) }
func RecordQueueEnqueued()       { defaultManager.queueEnqueued.Inc() }
func RecordQueueDropped()        { defaultManager.queueDropped.Inc() }
func UpdateWorkerCount(n int)    { defaultManager.workerCount.Set(float64(n)) }

// RecordHTTPRequest counts one request and its latency.
func RecordHTTPRequest(endpoint, method, status string, seconds float64) {
	defaultManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	defaultManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(seconds)
}

func UpdateGoroutines(n int)          { defaultManager.goroutines.Set(float64(n)) }
func UpdateMemoryAlloc(bytes uint64)  { defaultManager.memoryBytes.Set(float64(bytes)) }
