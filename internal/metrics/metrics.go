package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "casino_relay"

// Upstream feed
var (
	UpstreamConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "upstream_connected",
		Help:      "1 while the upstream WebSocket is open.",
	})
	UpstreamReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_reconnect_attempts_total",
		Help:      "Upstream connection attempts that followed a failure.",
	})
	UpstreamFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_frames_total",
		Help:      "Inbound upstream frames by type.",
	}, []string{"type"})
	UpstreamParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_parse_errors_total",
		Help:      "Malformed upstream frames dropped.",
	})
	UpstreamTablesSubscribed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "upstream_tables_subscribed",
		Help:      "Tables with a positive reference count.",
	})
	SinkFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_failures_total",
		Help:      "Sink deliveries that returned an error or panicked.",
	})
)

// Ingest and retention
var (
	ResultsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "results_ingested_total",
		Help:      "Results built from upstream updates, by priority.",
	}, []string{"priority"})
	ResultsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "results_dropped_total",
		Help:      "Updates or results dropped before persistence, by reason.",
	}, []string{"reason"})
	PersistErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_errors_total",
		Help:      "Result inserts that failed.",
	})
	PersistQueueLen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "persist_queue_len",
		Help:      "Results waiting for a persist worker.",
	})
	ExpiredDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expired_results_deleted_total",
		Help:      "Rows removed by the retention sweep.",
	})
)

// Downstream SSE
var (
	SSEConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sse_connections_total",
		Help:      "SSE connections accepted.",
	})
	SSEConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sse_connections_active",
		Help:      "SSE connections currently registered.",
	})
	SSEFramesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sse_frames_dropped_total",
		Help:      "Frames not delivered to a client, by reason.",
	}, []string{"reason"})
)

// Webhook alerts
var (
	NotifyJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notify_jobs_total",
		Help:      "Webhook alert jobs by platform and outcome.",
	}, []string{"platform", "outcome"})
	NotifyQueueLen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notify_queue_len",
		Help:      "Alert jobs waiting for a worker.",
	})
	NotifyConfigReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notify_config_reloads_total",
		Help:      "Target file reloads by result.",
	}, []string{"result"})
)
