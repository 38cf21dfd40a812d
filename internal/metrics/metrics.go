package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hls_downloader_jobs_enqueued_total",
		Help: "Total number of jobs accepted into the queue",
	})

	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hls_downloader_jobs_completed_total",
		Help: "Total number of jobs that produced an output file",
	})

	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hls_downloader_jobs_failed_total",
		Help: "Total number of failed jobs by the state they failed in",
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hls_downloader_queue_depth",
		Help: "Number of jobs waiting in the queue",
	})

	FetchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hls_downloader_fetch_attempts_total",
		Help: "Total number of HTTP fetch attempts for manifests and segments",
	})

	FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hls_downloader_fetch_failures_total",
		Help: "Total number of failed HTTP fetch attempts",
	})

	FetchBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hls_downloader_fetch_bytes_total",
		Help: "Total bytes fetched",
	})

	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hls_downloader_job_duration_seconds",
		Help:    "Time from dequeue to completion of a job",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hls_downloader_notifications_dropped_total",
		Help: "Status events dropped because the notifier lagged",
	})

	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hls_downloader_notifications_failed_total",
		Help: "Status events a sink failed to deliver",
	})
)
