package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request counter
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chart_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTP request duration histogram
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chart_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Committed chart mutations, one per contribution
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chart_mutations_total",
			Help: "Committed odontogram mutations by contribution action type",
		},
		[]string{"action"},
	)

	// Rejected chart mutations
	MutationsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chart_mutations_rejected_total",
			Help: "Rejected odontogram mutations by action type and error kind",
		},
		[]string{"action", "kind"}, // kind: "validation", "conflict", "not_found", "internal"
	)

	// Writes refused because the caller held a stale version
	VersionConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chart_version_conflicts_total",
			Help: "Writes rejected by the optimistic concurrency check",
		},
		[]string{"entity"}, // "odontogram", "tooth", "surface", "treatment"
	)

	// Change feed publish failures
	EventPublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chart_event_publish_failures_total",
			Help: "Contribution events that could not be published",
		},
		[]string{"backend"},
	)

	// Patient profile writes
	ProfileWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chart_patient_profile_writes_total",
			Help: "Patient profile create/update attempts by result",
		},
		[]string{"op", "result"},
	)
)

// Middleware records request count and latency per route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
