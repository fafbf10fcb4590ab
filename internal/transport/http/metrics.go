package httptransport

import "expvar"

var (
	metricSSEStreamsTotal  = expvar.NewInt("sse_streams_total")
	metricSSEStreamsActive = expvar.NewInt("sse_streams_active")
	metricSSEStreamErrors  = expvar.NewInt("sse_stream_errors_total")

	metricResultsQueryTotal  = expvar.NewInt("results_query_total")
	metricResultsQueryErrors = expvar.NewInt("results_query_errors_total")

	metricAdminCleanupTotal   = expvar.NewInt("admin_cleanup_total")
	metricAdminCleanupDeleted = expvar.NewInt("admin_cleanup_deleted_total")
)
