package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paysim_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paysim_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paysim_operations_total",
		Help: "Payment operations by outcome (success, replay, failure kind)",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paysim_operation_duration_seconds",
		Help:    "Latency of payment operations inside the engine",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"operation"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paysim_notifications_total",
		Help: "Notification publish attempts by event type and outcome",
	}, []string{"event_type", "outcome"})
)

// Prometheus records to the process-wide Prometheus registry.
type Prometheus struct{}

func (Prometheus) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	operationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (Prometheus) ObserveNotification(eventType, outcome string) {
	notificationsTotal.WithLabelValues(eventType, outcome).Inc()
}

// GinMiddleware counts requests and observes latency per route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(c.Request.Method, endpoint))
		c.Next()
		timer.ObserveDuration()
		httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler exposes the registry for scraping.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
