package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreschagin/dlp-kpi-monitor/internal/interfaces/http/handler"
	"github.com/dreschagin/dlp-kpi-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/dlp-kpi-monitor/internal/metrics"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/config"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

// Handlers обработчики маршрутов; Reports и WebSocket могут быть nil
type Handlers struct {
	Dashboard *handler.DashboardHandler
	Health    *handler.HealthHandler
	Runs      *handler.RunsAPIHandler
	Checks    *handler.ChecksAPIHandler
	Reports   *handler.ReportsAPIHandler
	WebSocket *handler.WebSocketHandler
}

// Router настраивает маршруты приложения
type Router struct {
	mux      *http.ServeMux
	handlers Handlers
	security config.SecurityConfig
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	limiter  *middleware.IPRateLimiter
	logger   *logger.Logger
}

// NewRouter создает новый router
func NewRouter(
	handlers Handlers,
	security config.SecurityConfig,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger *logger.Logger,
) *Router {
	limiter := middleware.NewIPRateLimiter(security.RateLimitPerMinute)
	if m != nil {
		limiter.OnDrop(m.RateLimitDropped.Inc)
	}

	return &Router{
		mux:      http.NewServeMux(),
		handlers: handlers,
		security: security,
		metrics:  m,
		gatherer: gatherer,
		limiter:  limiter,
		logger:   logger,
	}
}

// Limiter возвращает rate limiter для фоновой очистки
func (rt *Router) Limiter() *middleware.IPRateLimiter {
	return rt.limiter
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Пробы без авторизации
	rt.mux.HandleFunc("/healthz", rt.handlers.Health.Healthz)
	rt.mux.HandleFunc("/readyz", rt.handlers.Health.Readyz)

	authConfig := middleware.AuthConfig{
		Enabled:     rt.security.AuthEnabled,
		BearerToken: rt.security.AuthToken,
	}
	if rt.metrics != nil {
		authConfig.OnReject = rt.metrics.AuthFailures.Inc
	}
	auth := middleware.Auth(authConfig, rt.logger)
	limited := middleware.RateLimit(rt.limiter)

	protect := func(h http.HandlerFunc) http.Handler {
		return auth(limited(h))
	}

	if rt.gatherer != nil {
		rt.mux.Handle("/metrics", auth(promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{})))
	}

	// Dashboard
	rt.mux.Handle("/", auth(http.HandlerFunc(rt.handlers.Dashboard.ShowDashboard)))

	// WebSocket проверяет токен сам: браузер передает его в query
	if rt.handlers.WebSocket != nil {
		rt.mux.HandleFunc("/ws", rt.handlers.WebSocket.HandleConnection)
	}

	// API endpoints
	rt.mux.Handle("/api/v1/checks", protect(rt.handlers.Checks.List))
	rt.mux.Handle("/api/v1/runs/latest", protect(rt.handlers.Runs.GetLatest))
	rt.mux.Handle("/api/v1/runs/history", protect(rt.handlers.Runs.GetHistory))
	rt.mux.Handle("/api/v1/runs/run", protect(rt.handlers.Runs.RunNow))
	if rt.handlers.Reports != nil {
		rt.mux.Handle("/api/v1/reports", protect(rt.handlers.Reports.List))
	}

	var h http.Handler = rt.mux
	h = middleware.Compression(h)
	if rt.metrics != nil {
		h = rt.metrics.Middleware(h)
	}
	h = middleware.Logger(rt.logger)(h)
	h = middleware.Recovery(rt.logger)(h)

	return h
}
