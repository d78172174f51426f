package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute подставляется вместо пути для запросов без маршрута,
// чтобы произвольные URL не раздували число серий.
const unmatchedRoute = "<unmatched>"

// HTTPMetrics собирает метрики REST-запросов по шаблону маршрута.
//
//	<ns>_http_request_duration_seconds{method,route,status}
//	<ns>_http_response_size_bytes{route}
//	<ns>_http_requests_inflight
//	<ns>_http_request_errors_total{method,route,status}
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
	size     *prometheus.HistogramVec
	inflight prometheus.Gauge
	errors   *prometheus.CounterVec
}

// NewHTTPMetrics регистрирует метрики в reg под пространством имён ns.
func NewHTTPMetrics(ns string, reg prometheus.Registerer) *HTTPMetrics {
	labels := []string{"method", "route", "status"}
	m := &HTTPMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "Время обработки запроса.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, labels),
		// Экспорт буферов может занимать мегабайты.
		size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_response_size_bytes",
			Help:      "Размер тела ответа.",
			Buckets:   prometheus.ExponentialBuckets(64, 8, 8),
		}, []string{"route"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "http_requests_inflight",
			Help:      "Запросы в обработке.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_request_errors_total",
			Help:      "Ответы со статусом 4xx и 5xx.",
		}, labels),
	}
	reg.MustRegister(m.duration, m.size, m.inflight, m.errors)
	return m
}

func routeOf(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return unmatchedRoute
}

// Handler возвращает middleware для router.Use().
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.inflight.Inc()
		defer m.inflight.Dec()

		began := time.Now()
		c.Next()

		route := routeOf(c)
		code := c.Writer.Status()
		status := strconv.Itoa(code)

		m.duration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(began).Seconds())
		if n := c.Writer.Size(); n > 0 {
			m.size.WithLabelValues(route).Observe(float64(n))
		}
		if code >= 400 {
			m.errors.WithLabelValues(c.Request.Method, route, status).Inc()
		}
	}
}

// Mount вешает GET /metrics с выдачей из g.
func (m *HTTPMetrics) Mount(r gin.IRoutes, g prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}
