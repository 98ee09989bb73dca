package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlanSyncs counts plan sync operations by kind (product, solution).
	PlanSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adoptd_plan_syncs_total",
		Help: "Number of adoption plan sync operations.",
	}, []string{"kind"})

	// SyncDuration observes how long a sync takes end to end.
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "adoptd_plan_sync_duration_seconds",
		Help:    "Duration of adoption plan sync operations.",
		Buckets: prometheus.DefBuckets,
	})

	// StatusUpdates counts task status changes by update source.
	StatusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adoptd_task_status_updates_total",
		Help: "Number of task status updates.",
	}, []string{"source"})

	// TelemetryRows counts imported telemetry value rows.
	TelemetryRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adoptd_telemetry_rows_total",
		Help: "Number of telemetry value rows imported.",
	})

	// ImportWarnings counts non-fatal row errors accumulated during imports.
	ImportWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adoptd_import_warnings_total",
		Help: "Number of non-fatal warnings recorded during imports.",
	})
)
