// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cod"

var (
	callsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_initiated_total",
			Help:      "Call initiation attempts by result.",
		},
		[]string{"result"}, // placed, order_not_found, order_too_old, invalid_number, provider_error, conflict
	)

	dtmfOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dtmf_outcomes_total",
			Help:      "Keypad responses by outcome.",
		},
		[]string{"outcome"},
	)

	callEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Provider call-status events received.",
		},
		[]string{"status", "mapped"},
	)

	retryCandidates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retry_candidates",
			Help:      "Orders surfaced by the last retry sweep query.",
		},
	)

	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of HTTP requests to the voice and commerce providers.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "op"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func CallInitiated(result string) { callsInitiated.WithLabelValues(result).Inc() }

func DTMFOutcome(outcome string) { dtmfOutcomes.WithLabelValues(outcome).Inc() }

func CallEvent(status string, mapped bool) {
	callEvents.WithLabelValues(status, strconv.FormatBool(mapped)).Inc()
}

func RetryCandidates(n int) { retryCandidates.Set(float64(n)) }

// ObserveProvider records an outbound provider request started at start.
func ObserveProvider(provider, op string, start time.Time) {
	providerRequestDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}

// Middleware records request counts and latency by route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
