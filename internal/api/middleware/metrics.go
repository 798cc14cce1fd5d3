// metrics.go — Prometheus HTTP метрики.
// Регистрирует метрики: sv_http_requests_total, sv_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sv_http_requests_total",
			Help: "Общее количество HTTP-запросов к SecureVault",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sv_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к SecureVault в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем UUID на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
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

// normalizePath заменяет UUID-сегменты пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/files/a1b2c3d4-.../download → /api/v1/files/{id}/download
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/auth/register",
		"/api/v1/auth/login",
		"/api/v1/auth/logout",
		"/api/v1/auth/me",
		"/api/v1/auth/mfa/setup",
		"/api/v1/auth/mfa/verify",
		"/api/v1/auth/mfa/disable",
		"/api/v1/files/list",
		"/api/v1/files/upload",
		"/api/v1/files/shares/me",
		"/api/v1/files/links/verify",
		"/api/v1/kms/key",
		"/api/v1/kms/decrypt",
		"/api/v1/kms/access/grant",
		"/api/v1/kms/access/revoke",
		"/api/v1/kms/access/list":
		return path
	}

	const adminUsersPrefix = "/api/v1/admin/users/"
	if strings.HasPrefix(path, adminUsersPrefix) && strings.HasSuffix(path, "/role") {
		return adminUsersPrefix + "{username}/role"
	}

	const filesPrefix = "/api/v1/files/"
	if strings.HasPrefix(path, filesPrefix) && len(path) >= len(filesPrefix)+36 {
		suffix := path[len(filesPrefix)+36:]
		switch {
		case suffix == "":
			return filesPrefix + "{id}"
		case suffix == "/download":
			return filesPrefix + "{id}/download"
		case suffix == "/permission":
			return filesPrefix + "{id}/permission"
		case suffix == "/shares/list":
			return filesPrefix + "{id}/shares/list"
		case suffix == "/shares/add":
			return filesPrefix + "{id}/shares/add"
		case suffix == "/links/generate":
			return filesPrefix + "{id}/links/generate"
		case suffix == "/links/list":
			return filesPrefix + "{id}/links/list"
		case strings.HasPrefix(suffix, "/shares/"):
			return filesPrefix + "{id}/shares/{share_id}"
		case strings.HasPrefix(suffix, "/links/"):
			return filesPrefix + "{id}/links/{link_id}"
		}
	}

	return path
}
