package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ordersCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_completed_total",
			Help: "Total number of orders completed via pickup verification",
		},
	)

	couponsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupons_applied_total",
			Help: "Total number of coupon applications",
		},
		[]string{"result"},
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of payment webhook events",
		},
		[]string{"type", "result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(ordersCompletedTotal)
	prometheus.MustRegister(couponsAppliedTotal)
	prometheus.MustRegister(webhookEventsTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordOrderCompleted() {
	ordersCompletedTotal.Inc()
}

func RecordCouponApplied(result string) {
	couponsAppliedTotal.WithLabelValues(result).Inc()
}

func RecordWebhookEvent(eventType, result string) {
	webhookEventsTotal.WithLabelValues(eventType, result).Inc()
}
