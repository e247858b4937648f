// Package metrics collects Prometheus telemetry for tool dispatch and the
// upstream billing API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests and multiple servers in one
// process never collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	injections     *prometheus.CounterVec
	truncations    *prometheus.CounterVec
	apiRequests    *prometheus.CounterVec
	jobRuns        *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// NewCollector creates a collector. An empty namespace defaults to "billtool".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "billtool"
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Tool calls by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)
	c.toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "call_duration_seconds",
			Help:      "Tool call latency including the upstream request",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"tool", "outcome"},
	)
	c.injections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "injection_warnings_total",
			Help:      "Responses containing prompt-injection phrases",
		},
		[]string{"tool"},
	)
	c.truncations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "truncated_responses_total",
			Help:      "Responses cut to the token budget",
		},
		[]string{"tool"},
	)
	c.apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "requests_total",
			Help:      "Upstream billing API requests by method and status (0 = transport error)",
		},
		[]string{"method", "status"},
	)
	c.jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scheduled job runs by job and result",
		},
		[]string{"job", "result"},
	)
	c.activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "websocket_sessions",
			Help:      "Open WebSocket sessions",
		},
	)

	c.registry.MustRegister(
		c.toolCalls,
		c.toolDuration,
		c.injections,
		c.truncations,
		c.apiRequests,
		c.jobRuns,
		c.activeSessions,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordToolCall counts one dispatched call.
func (c *Collector) RecordToolCall(tool, outcome string, d time.Duration) {
	c.toolCalls.WithLabelValues(tool, outcome).Inc()
	c.toolDuration.WithLabelValues(tool, outcome).Observe(d.Seconds())
}

func (c *Collector) RecordInjectionWarning(tool string) {
	c.injections.WithLabelValues(tool).Inc()
}

func (c *Collector) RecordTruncation(tool string) {
	c.truncations.WithLabelValues(tool).Inc()
}

// ObserveRequest satisfies billing.RequestObserver.
func (c *Collector) ObserveRequest(method string, status int) {
	c.apiRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// RecordJobRun counts a scheduler run; err == nil is "success".
func (c *Collector) RecordJobRun(job string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.jobRuns.WithLabelValues(job, result).Inc()
}

// SessionOpened and SessionClosed track WebSocket sessions.
func (c *Collector) SessionOpened() { c.activeSessions.Inc() }
func (c *Collector) SessionClosed() { c.activeSessions.Dec() }
