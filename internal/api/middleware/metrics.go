// metrics.go — Prometheus метрики каталога моделей.
// HTTP метрики: mc_http_requests_total, mc_http_request_duration_seconds.
// Бизнес-метрики (mc_models_operations_total и др.) экспортируются
// для обновления из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mc_http_requests_total",
			Help: "Общее количество HTTP-запросов к каталогу моделей",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mc_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к каталогу моделей в секундах",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// OperationsTotal — количество операций каталога по результату.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mc_models_operations_total",
			Help: "Общее количество операций каталога моделей",
		},
		[]string{"operation", "result"},
	)

	// CorruptMetadataTotal — количество пропущенных повреждённых файлов метаданных.
	CorruptMetadataTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mc_corrupt_metadata_total",
			Help: "Количество повреждённых файлов метаданных, пропущенных при чтении",
		},
	)

	// OrphansFilteredTotal — количество записей, скрытых из-за отсутствия бинарного файла.
	OrphansFilteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mc_orphan_records_filtered_total",
			Help: "Количество записей метаданных без бинарного файла, скрытых при перечислении",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Путь в лейблах — шаблон маршрута chi ({id}, {filename}), чтобы
// не допустить роста кардинальности.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			path := routePattern(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

// routePattern возвращает шаблон маршрута chi или "unmatched"
// для запросов, не попавших ни в один маршрут.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return "unmatched"
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
