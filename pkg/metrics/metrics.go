package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopadmin_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// CacheLookups counts cache reads by key family and outcome (hit|miss|error).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopadmin_cache_lookups_total",
			Help: "Total number of cache lookups",
		},
		[]string{"family", "result"},
	)

	// CacheOperationFailures counts swallowed cache failures by operation.
	CacheOperationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopadmin_cache_operation_failures_total",
			Help: "Cache operations that failed and were ignored",
		},
		[]string{"operation"},
	)

	// BlobDeletions counts best-effort blob deletions (deleted|missing|error).
	BlobDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopadmin_blob_deletions_total",
			Help: "Total number of blob deletions",
		},
		[]string{"result"},
	)

	// Uploads counts multipart files handled by the upload middleware (accepted|rejected).
	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopadmin_uploads_total",
			Help: "Total number of uploaded files",
		},
		[]string{"result"},
	)

	// OrphanUploadsRemoved counts files removed by the maintenance sweep.
	OrphanUploadsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shopadmin_orphan_uploads_removed_total",
			Help: "Uploaded files removed because no record referenced them",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopadmin_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
