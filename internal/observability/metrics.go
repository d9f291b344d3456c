package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Inbound drop reasons.
const (
	DropOriginMismatch = "origin_mismatch"
	DropMalformed      = "malformed"
	DropUnknownType    = "unknown_type"
	DropDestroyed      = "destroyed"
	DropUnmatched      = "unmatched_response"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "glic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	requestsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glic",
			Subsystem: "transport",
			Name:      "requests_sent_total",
			Help:      "Requests posted by a sender.",
		},
		[]string{"endpoint", "type", "expects_response"},
	)
	responsesMatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glic",
			Subsystem: "transport",
			Name:      "responses_matched_total",
			Help:      "Responses matched to a pending request.",
		},
		[]string{"endpoint", "type"},
	)
	responseLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "glic",
			Subsystem: "transport",
			Name:      "response_latency_seconds",
			Help:      "Time from request post to matching response.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "type"},
	)
	pendingRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "glic",
			Subsystem: "transport",
			Name:      "pending_requests",
			Help:      "Requests awaiting a response.",
		},
		[]string{"endpoint"},
	)
	inboundDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glic",
			Subsystem: "transport",
			Name:      "inbound_dropped_total",
			Help:      "Inbound messages discarded without dispatch.",
		},
		[]string{"endpoint", "reason"},
	)
	handlerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glic",
			Subsystem: "transport",
			Name:      "handler_calls_total",
			Help:      "Handler invocations by outcome.",
		},
		[]string{"endpoint", "type", "success"},
	)
	connections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "glic",
			Subsystem: "wsbridge",
			Name:      "connections",
			Help:      "Open WebSocket window connections.",
		},
		[]string{"side"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			requestsSent,
			responsesMatched,
			responseLatency,
			pendingRequests,
			inboundDropped,
			handlerCalls,
			connections,
		)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordRequestSent(endpoint, msgType string, expectsResponse bool) {
	RegisterMetrics()
	requestsSent.WithLabelValues(endpoint, msgType, strconv.FormatBool(expectsResponse)).Inc()
}

func RecordResponseMatched(endpoint, msgType string, latency time.Duration) {
	RegisterMetrics()
	responsesMatched.WithLabelValues(endpoint, msgType).Inc()
	responseLatency.WithLabelValues(endpoint, msgType).Observe(latency.Seconds())
}

func SetPendingRequests(endpoint string, n int) {
	RegisterMetrics()
	pendingRequests.WithLabelValues(endpoint).Set(float64(n))
}

func RecordInboundDropped(endpoint, reason string) {
	RegisterMetrics()
	inboundDropped.WithLabelValues(endpoint, reason).Inc()
}

func RecordHandlerCall(endpoint, msgType string, success bool) {
	RegisterMetrics()
	handlerCalls.WithLabelValues(endpoint, msgType, strconv.FormatBool(success)).Inc()
}

func AddConnections(side string, delta int) {
	RegisterMetrics()
	connections.WithLabelValues(side).Add(float64(delta))
}
