package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basalytics_events_ingested_total",
			Help: "Total number of events written, by event name",
		},
		[]string{"event"},
	)

	IngestErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "basalytics_ingest_errors_total",
			Help: "Total number of failed ingestion transactions",
		},
	)

	// Query metrics
	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "basalytics_query_duration_seconds",
			Help:    "Duration of counting queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueryErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "basalytics_query_errors_total",
			Help: "Total number of failed queries",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "basalytics_rate_limit_hits_total",
			Help: "Total number of requests refused by the rate limiter",
		},
	)
)
