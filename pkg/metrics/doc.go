/*
Package metrics provides Prometheus metrics collection and exposition for
the sync core.

The metrics package defines and registers all sync-core metrics using the
Prometheus client library, providing observability into replica activity,
sync cycle outcomes, transport connection health, and storage latency.
Metrics are exposed via an HTTP endpoint for scraping by Prometheus
servers.

# Architecture

The metrics system follows Prometheus best practices with instrumentation
across every layer of the sync core:

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (pending queue depth)│          │
	│  │  Counter: Monotonic increases (sync cycles) │          │
	│  │  Histogram: Distributions (sync latency)    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Replica: active replicas, per-note op count│          │
	│  │  Sync: cycle count, duration, debounce      │          │
	│  │  Transport: connection state, reconnects    │          │
	│  │  Storage: op duration, errors               │          │
	│  │  HTTP: full-sync request count, duration    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint               │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Thread-safe for concurrent updates

Gauge Metrics:
  - Instant value that can go up or down
  - Examples: pending queue depth, transport connection state
  - Operations: Set, Inc, Dec, Add, Sub

Counter Metrics:
  - Monotonically increasing value
  - Examples: sync cycles total, updates pushed total
  - Operations: Inc, Add (cannot decrease)

Histogram Metrics:
  - Distribution of observed values
  - Examples: sync cycle duration, storage op duration
  - Includes: sum, count, buckets

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

# Metrics Catalog

Replica Metrics:

notesync_replicas_active:
  - Type: Gauge
  - Description: Number of CRDT replicas currently held in memory
  - Example: notesync_replicas_active 12

notesync_replica_ops_total{note_id}:
  - Type: Gauge
  - Description: Operation count in a replica's log, by note
  - Labels: note_id
  - Example: notesync_replica_ops_total{note_id="note-abc"} 340

Sync Metrics:

notesync_sync_cycles_total{kind, status}:
  - Type: Counter
  - Description: Full/incremental sync cycles by outcome
  - Labels: kind (full/incremental), status (ok/error)
  - Example: notesync_sync_cycles_total{kind="full",status="ok"} 58

notesync_sync_cycle_duration_seconds{kind}:
  - Type: Histogram
  - Description: Sync cycle duration in seconds
  - Labels: kind

notesync_sync_debounce_resets_total:
  - Type: Counter
  - Description: Times a new edit re-armed the debounce timer before it fired

notesync_updates_pushed_total / notesync_updates_pulled_total:
  - Type: Counter
  - Description: CRDT updates sent to / received from the sync server

notesync_metadata_pushed_total / notesync_metadata_pulled_total:
  - Type: Counter
  - Description: Metadata-only changes sent to / received from the server

notesync_pending_queue_depth:
  - Type: Gauge
  - Description: Updates currently queued awaiting the next sync cycle

Transport Metrics:

notesync_transport_state:
  - Type: Gauge
  - Description: Current connection state (0=disconnected, 1=connecting,
    2=connected, 3=syncing)
  - Example: notesync_transport_state 2

notesync_transport_reconnects_total:
  - Type: Counter
  - Description: Reconnect attempts made by the backoff loop

notesync_transport_frames_dropped_total{reason}:
  - Type: Counter
  - Description: Frames dropped without being applied
  - Labels: reason (malformed/unrecognized/backpressure)

Storage Metrics:

notesync_storage_op_duration_seconds{op}:
  - Type: Histogram
  - Description: BoltDB operation duration by operation name

notesync_storage_errors_total{op}:
  - Type: Counter
  - Description: Storage operation failures by operation name

HTTP Sync Metrics:

notesync_http_sync_requests_total{status}:
  - Type: Counter
  - Description: Full-sync HTTP calls by outcome
  - Labels: status (ok/auth_error/network_error/decode_error/encode_error)

notesync_http_sync_request_duration_seconds:
  - Type: Histogram
  - Description: Full-sync HTTP request duration in seconds

# Usage

Updating Gauge Metrics:

	import "github.com/inkwell-labs/notesync/pkg/metrics"

	metrics.PendingQueueDepth.Inc()
	metrics.PendingQueueDepth.Dec()

Updating Counter Metrics:

	metrics.UpdatesPushedTotal.Add(float64(len(updates)))
	metrics.SyncCyclesTotal.WithLabelValues("full", "ok").Inc()

Recording Histogram Observations:

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.SyncCycleDuration, "full")

Complete Example:

	package main

	import (
		"net/http"
		"github.com/inkwell-labs/notesync/pkg/metrics"
	)

	func main() {
		metrics.ReplicasActive.Set(3)

		timer := metrics.NewTimer()
		runFullSync()
		timer.ObserveDurationVec(metrics.SyncCycleDuration, "full")

		http.Handle("/metrics", metrics.Handler())
		http.ListenAndServe(":9090", nil)
	}

	func runFullSync() {}

# Integration Points

This package integrates with:

  - pkg/sync: records cycle outcomes, debounce resets, push/pull counts
  - pkg/transport: records connection state and dropped frames
  - pkg/storage: records op duration and errors for SaveNote, GetNote,
    ApplyPulledNotes, SaveCrdt, and ApplyCrdtUpdate
  - cmd/notesyncd: serves /metrics alongside the running daemon

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration

Label Discipline:
  - note_id appears only on ReplicaOpsTotal, a bounded-cardinality gauge
    scoped to locally open notes, not an unbounded event counter
  - Avoid high-cardinality labels elsewhere (no per-request IDs)

Timer Pattern:
  - Create timer at operation start
  - Defer or explicitly call ObserveDuration/ObserveDurationVec

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
