package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	httpRequestsTotal         *prometheus.CounterVec
	httpLatencySeconds        *prometheus.HistogramVec
	httpErrorsTotal           *prometheus.CounterVec
	notificationsPublished    *prometheus.CounterVec
	notificationsDropped      *prometheus.CounterVec
	notificationStreamClients *prometheus.GaugeVec
	submissionEventsTotal     *prometheus.CounterVec
	commentEventsTotal        *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the classroom API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_http_requests_total",
			Help: "Total number of classroom API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classroom_http_latency_seconds",
			Help:    "Latency distribution for classroom API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_http_errors_total",
			Help: "Total number of error responses returned by classroom endpoints.",
		}, []string{"method", "route", "status"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_notifications_published_total",
			Help: "Notifications persisted or relayed, by type.",
		}, []string{"type"})

		notificationsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_notifications_dropped_total",
			Help: "Lifecycle events whose fan-out was dropped, by reason.",
		}, []string{"reason"})

		notificationStreamClients = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "classroom_notification_stream_clients",
			Help: "Connected notification stream clients, by transport.",
		}, []string{"transport"})

		submissionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_submission_events_total",
			Help: "Submission lifecycle events, by event.",
		}, []string{"event"})

		commentEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classroom_comment_events_total",
			Help: "Comment thread events, by event.",
		}, []string{"event"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			notificationsPublished,
			notificationsDropped,
			notificationStreamClients,
			submissionEventsTotal,
			commentEventsTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// NotificationsPublishedTotal counts notifications by type.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// NotificationsDroppedTotal counts fan-out events that never reached the store.
func NotificationsDroppedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsDropped
}

// NotificationStreamClients tracks live SSE and websocket subscribers.
func NotificationStreamClients() *prometheus.GaugeVec {
	RegisterMetrics()
	return notificationStreamClients
}

// SubmissionEvents counts submission create, grade and delete events.
func SubmissionEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionEventsTotal
}

// CommentEvents counts comment create, edit and delete events.
func CommentEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return commentEventsTotal
}
