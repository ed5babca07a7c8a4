package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Push outcomes.
const (
	OutcomeSent        = "sent"
	OutcomeFailed      = "failed"
	OutcomeUnreachable = "unreachable"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of open websocket connections, bound or not.",
		},
	)
	wsSessionsRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_sessions_registered",
			Help: "Number of users with a live session in the presence registry.",
		},
	)
	wsSessionsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_sessions_evicted_total",
			Help: "Sessions closed because the same user connected from another client instance.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	wsFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_inbound_frames_total",
			Help: "Inbound frames by type and processing result.",
		},
		[]string{"type", "result"},
	)
	pushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_pushes_total",
			Help: "Outbound pushes by frame type and outcome.",
		},
		[]string{"type", "outcome"},
	)
	dedupHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_dedup_hits_total",
			Help: "Submissions answered with an already persisted message.",
		},
		[]string{"path", "reason"},
	)
	statusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_message_status_transitions_total",
			Help: "Applied message status transitions by target status.",
		},
		[]string{"status"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsSessionsRegistered,
		wsSessionsEvictedTotal,
		wsEventsTotal,
		wsFramesTotal,
		pushesTotal,
		dedupHitsTotal,
		statusTransitionsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func SetSessionsRegistered(n int) {
	wsSessionsRegistered.Set(float64(n))
}

func IncSessionEvicted() {
	wsSessionsEvictedTotal.Inc()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncInboundFrame(frameType, result string) {
	wsFramesTotal.WithLabelValues(frameType, result).Inc()
}

func IncPush(frameType, outcome string) {
	pushesTotal.WithLabelValues(frameType, outcome).Inc()
}

func IncDedupHit(path, reason string) {
	dedupHitsTotal.WithLabelValues(path, reason).Inc()
}

func IncStatusTransition(status string) {
	statusTransitionsTotal.WithLabelValues(status).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
