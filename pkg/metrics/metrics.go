package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdb_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatdb_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatdb_users_registered_total",
			Help: "Total users registered",
		},
	)

	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatdb_conversations_created_total",
			Help: "Total conversations created",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatdb_messages_sent_total",
			Help: "Total messages appended to threads",
		},
	)

	ConversationsLeft = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatdb_conversations_left_total",
			Help: "Total conversation index entries removed",
		},
	)

	PartialFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdb_partial_failures_total",
			Help: "Saga failures that left earlier steps committed",
		},
		[]string{"op", "step"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatdb_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	OrphanedThreads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatdb_orphaned_threads",
			Help: "Threads referenced by no conversation index at last janitor scan",
		},
	)
)
