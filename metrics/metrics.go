package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tesouraria",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tesouraria",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tesouraria",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	summariesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tesouraria",
			Subsystem: "summaries",
			Name:      "created_total",
			Help:      "Total number of congregation summaries created.",
		},
		[]string{"summary_type"},
	)

	summaryLaunchesLinked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tesouraria",
			Subsystem: "summaries",
			Name:      "launches_linked_total",
			Help:      "Total number of launches linked to a summary.",
		},
	)

	summaryApprovals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tesouraria",
			Subsystem: "summaries",
			Name:      "approval_transitions_total",
			Help:      "Approval tier transitions applied to summaries.",
		},
		[]string{"tier", "direction"},
	)

	summariesDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tesouraria",
			Subsystem: "summaries",
			Name:      "deleted_total",
			Help:      "Total number of congregation summaries deleted.",
		},
	)

	summaryRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tesouraria",
			Subsystem: "summaries",
			Name:      "rejections_total",
			Help:      "Summary operations rejected, by operation and HTTP status.",
		},
		[]string{"operation", "status"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		summariesCreated,
		summaryLaunchesLinked,
		summaryApprovals,
		summariesDeleted,
		summaryRejections,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware collects request metrics labelled by the matched route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := strings.ToUpper(c.Request.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func RecordSummaryCreated(summaryType string, launches int) {
	if summaryType == "" {
		summaryType = "unknown"
	}
	summariesCreated.WithLabelValues(summaryType).Inc()
	summaryLaunchesLinked.Add(float64(launches))
}

func RecordApprovalTransition(tier string, forward bool) {
	direction := "reverse"
	if forward {
		direction = "forward"
	}
	summaryApprovals.WithLabelValues(tier, direction).Inc()
}

func RecordSummaryDeleted() {
	summariesDeleted.Inc()
}

func RecordSummaryRejected(operation string, status int) {
	summaryRejections.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}
