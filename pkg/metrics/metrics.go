package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Document/replica metrics
	ReplicasActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notesync_replicas_active",
			Help: "Number of CRDT replicas currently loaded in memory",
		},
	)

	ReplicaOpsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notesync_replica_ops_total",
			Help: "Total number of ops held by a replica, by note",
		},
		[]string{"note_id"},
	)

	// Sync cycle metrics
	SyncCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notesync_sync_cycles_total",
			Help: "Total number of sync cycles by kind and outcome",
		},
		[]string{"kind", "status"}, // kind: full|incremental; status: ok|error
	)

	SyncCycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notesync_sync_cycle_duration_seconds",
			Help:    "Time taken for a sync cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	SyncDebounceResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notesync_sync_debounce_resets_total",
			Help: "Total number of times the sync debounce timer was reset before firing",
		},
	)

	// Push/pull metrics
	UpdatesPushedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notesync_updates_pushed_total",
			Help: "Total number of CRDT updates pushed to the server",
		},
	)

	UpdatesPulledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notesync_updates_pulled_total",
			Help: "Total number of CRDT updates pulled from the server",
		},
	)

	MetadataPushedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notesync_metadata_pushed_total",
			Help: "Total number of note metadata changes pushed to the server",
		},
	)

	MetadataPulledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notesync_metadata_pulled_total",
			Help: "Total number of note metadata changes pulled from the server",
		},
	)

	PendingQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notesync_pending_queue_depth",
			Help: "Total number of pending updates awaiting push across all notes",
		},
	)

	// Transport metrics
	TransportState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notesync_transport_state",
			Help: "Current transport state (0=disconnected, 1=connecting, 2=connected, 3=syncing)",
		},
	)

	TransportReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notesync_transport_reconnects_total",
			Help: "Total number of reconnect attempts made by the transport",
		},
	)

	TransportFramesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notesync_transport_frames_dropped_total",
			Help: "Total number of inbound frames dropped, by reason",
		},
		[]string{"reason"}, // malformed|unrecognized|backpressure
	)

	// Storage metrics
	StorageOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notesync_storage_op_duration_seconds",
			Help:    "Time taken for a local persistence operation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	StorageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notesync_storage_errors_total",
			Help: "Total number of local persistence errors by operation",
		},
		[]string{"op"},
	)

	// HTTP full-sync request metrics
	HTTPSyncRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notesync_http_sync_requests_total",
			Help: "Total number of POST /api/sync/crdt requests by status",
		},
		[]string{"status"}, // ok|auth_error|network_error|decode_error|encode_error
	)

	HTTPSyncRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notesync_http_sync_request_duration_seconds",
			Help:    "Duration of POST /api/sync/crdt requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ReplicasActive)
	prometheus.MustRegister(ReplicaOpsTotal)
	prometheus.MustRegister(SyncCyclesTotal)
	prometheus.MustRegister(SyncCycleDuration)
	prometheus.MustRegister(SyncDebounceResets)
	prometheus.MustRegister(UpdatesPushedTotal)
	prometheus.MustRegister(UpdatesPulledTotal)
	prometheus.MustRegister(MetadataPushedTotal)
	prometheus.MustRegister(MetadataPulledTotal)
	prometheus.MustRegister(PendingQueueDepth)
	prometheus.MustRegister(TransportState)
	prometheus.MustRegister(TransportReconnectsTotal)
	prometheus.MustRegister(TransportFramesDroppedTotal)
	prometheus.MustRegister(StorageOpDuration)
	prometheus.MustRegister(StorageErrorsTotal)
	prometheus.MustRegister(HTTPSyncRequestsTotal)
	prometheus.MustRegister(HTTPSyncRequestDuration)
}

// Handler returns the Prometheus HTTP handler, served by notesyncd for local
// inspection (there is no cluster of peers scraping each other here, just a
// single process exposing its own state).
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
