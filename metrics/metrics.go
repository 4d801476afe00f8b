package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store metrics
	RowsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_rows_upserted_total",
			Help: "Total number of rows written by committed upsert batches",
		},
		[]string{"table"},
	)

	BatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_batch_failures_total",
			Help: "Total number of upsert batches rolled back",
		},
		[]string{"table"},
	)

	// Archive run metrics
	BulkRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_bulk_runs_total",
			Help: "Total number of bulk guild archive runs",
		},
		[]string{"status"},
	)

	BulkRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archiver_bulk_run_duration_seconds",
			Help:    "Duration of bulk guild archive runs in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	MessagesArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_incremental_messages_total",
			Help: "Total number of messages handled by live create and edit events",
		},
		[]string{"event", "status"},
	)

	// Attachment metrics
	AttachmentDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_attachment_downloads_total",
			Help: "Total number of attachment download attempts",
		},
		[]string{"status"},
	)

	AttachmentBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archiver_attachment_bytes_total",
			Help: "Total number of attachment bytes downloaded",
		},
	)

	MirrorUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archiver_mirror_uploads_total",
			Help: "Total number of attachment uploads to the object storage mirror",
		},
		[]string{"status"},
	)
)
