package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsEnqueued tracks accepted import jobs
	JobsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulk_import_jobs_enqueued_total",
			Help: "Total number of import jobs enqueued",
		},
	)

	// JobsFinished tracks job outcomes, including requeues
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_import_jobs_finished_total",
			Help: "Total number of import job runs by resulting status",
		},
		[]string{"status"},
	)

	// QueueJobs mirrors the last observed queue stats
	QueueJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulk_import_queue_jobs",
			Help: "Number of import jobs per status",
		},
		[]string{"status"},
	)

	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_import_batches_total",
			Help: "Total number of batches processed by outcome",
		},
		[]string{"outcome"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bulk_import_batch_duration_seconds",
			Help:    "Batch processing time in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_import_records_total",
			Help: "Total number of records by result",
		},
		[]string{"result"},
	)

	// ErrorsClassified counts every failure passed through the error handler
	ErrorsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_import_errors_total",
			Help: "Total number of classified import errors",
		},
		[]string{"type", "severity"},
	)

	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_import_retries_total",
			Help: "Total number of retries scheduled by error type",
		},
		[]string{"type"},
	)
)
