// Prometheus 指标导出
package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有 API Server 指标
//
// 指标挂在每实例的 Registry 上而不是全局默认 Registry，
// 测试里可以反复构建 Handler 而不触发重复注册 panic。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// 业务指标
	UploadsTotal   *prometheus.CounterVec
	DownloadsTotal *prometheus.CounterVec
	LoginsTotal    *prometheus.CounterVec
}

// NewMetrics 创建指标实例
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Total file uploads by category",
			},
			[]string{"category"},
		),
		DownloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downloads_total",
				Help:      "Total file downloads by category",
			},
			[]string{"category"},
		),
		LoginsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Total login attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// MetricsMiddleware 创建 HTTP 指标中间件
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// 包装 ResponseWriter 以捕获状态码
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)

		m.recordBusiness(r.Method, path, wrapped.statusCode)
	})
}

// recordBusiness 从已规范化的路径推导业务指标
func (m *Metrics) recordBusiness(method, path string, status int) {
	if status >= 400 && path != "/auth/login" {
		return
	}
	switch {
	case method == http.MethodPost && path == "/auth/login":
		outcome := "success"
		if status >= 400 {
			outcome = "failure"
		}
		m.LoginsTotal.WithLabelValues(outcome).Inc()
	case method == http.MethodPost && path == "/assignments/upload":
		m.UploadsTotal.WithLabelValues("assignments").Inc()
	case method == http.MethodPost && path == "/assignments/{id}/feedback":
		m.UploadsTotal.WithLabelValues("feedback").Inc()
	case method == http.MethodPost && path == "/resources/upload":
		m.UploadsTotal.WithLabelValues("resources").Inc()
	case method == http.MethodGet && path == "/assignments/{id}/download":
		m.DownloadsTotal.WithLabelValues("assignments").Inc()
	case method == http.MethodGet && path == "/feedback/{id}/download":
		m.DownloadsTotal.WithLabelValues("feedback").Inc()
	case method == http.MethodGet && path == "/resources/{id}/download":
		m.DownloadsTotal.WithLabelValues("resources").Inc()
	}
}

// responseWriter 包装 http.ResponseWriter 以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath 规范化路径，将 ID 替换为占位符，避免高基数标签
func normalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "assignments" && parts[2] == "download":
		return "/assignments/{id}/download"
	case len(parts) == 3 && parts[0] == "assignments" && parts[2] == "feedback":
		return "/assignments/{id}/feedback"
	case len(parts) == 2 && parts[0] == "assignments" && parts[1] != "upload" && parts[1] != "my":
		return "/assignments/{id}"
	case len(parts) == 3 && parts[0] == "feedback" && parts[2] == "download":
		return "/feedback/{id}/download"
	case len(parts) == 3 && parts[0] == "resources" && parts[2] == "download":
		return "/resources/{id}/download"
	case len(parts) == 3 && parts[0] == "users" && parts[2] == "assignments":
		return "/users/{id}/assignments"
	case len(parts) == 3 && parts[0] == "users":
		return "/users/{id}/" + parts[2]
	default:
		return path
	}
}

// Handler 返回该实例 Registry 的 Prometheus HTTP Handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
