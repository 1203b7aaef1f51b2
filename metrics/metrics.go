package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PostOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_post_operations_total",
			Help: "Total number of post mutations by operation and outcome",
		},
		[]string{"operation", "success"},
	)

	AttachmentsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_attachments_stored_total",
			Help: "Total number of attachments written to the attachment store",
		},
		[]string{"file_type"},
	)

	AttachmentBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "community_attachment_bytes_total",
			Help: "Total bytes written to the attachment store",
		},
	)

	AttachmentDeleteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "community_attachment_delete_failures_total",
			Help: "Stored objects that could not be removed after their rows were deleted",
		},
	)
)

// ObservePostOperation counts a create, update or delete outcome.
func ObservePostOperation(operation string, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	PostOperationsTotal.WithLabelValues(operation, success).Inc()
}
