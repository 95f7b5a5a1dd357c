package metrics

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

const namespace = "kpimon"

// Metrics bundles prometheus collectors for the HTTP API and the KPI results.
// It also implements port.KPIPublisher so the latest results are scraped from /metrics.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	RateLimitDropped   prometheus.Counter
	AuthFailures       prometheus.Counter

	CheckObserved    *prometheus.GaugeVec
	CheckStatus      *prometheus.GaugeVec
	CheckDurationSec *prometheus.HistogramVec
	ProbeFailures    *prometheus.CounterVec
	SuiteMetPercent  *prometheus.GaugeVec
	SuiteRuns        *prometheus.CounterVec
	SuiteLastRun     prometheus.Gauge
}

var allStatuses = []valueobject.Status{
	valueobject.StatusMet,
	valueobject.StatusWarning,
	valueobject.StatusCritical,
	valueobject.StatusNoData,
	valueobject.StatusErrored,
}

func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_ratelimit_dropped_total",
			Help:      "Total number of requests dropped by rate limiter.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_auth_failures_total",
			Help:      "Total number of rejected API tokens.",
		}),
		CheckObserved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "check_observed_value",
			Help:      "Last observed value of a check in its threshold unit.",
		}, []string{"check", "threshold", "unit"}),
		CheckStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "check_status",
			Help:      "1 for the current status of a check, 0 for the others.",
		}, []string{"check", "status"}),
		CheckDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Wall time of a check including all sampling ticks.",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120},
		}, []string{"check"}),
		ProbeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_failures_total",
			Help:      "Failed probe invocations recorded as failure observations.",
		}, []string{"check"}),
		SuiteMetPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "suite_met_percent",
			Help:      "Share of checks that met their threshold in the last run.",
		}, []string{"mode"}),
		SuiteRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suite_runs_total",
			Help:      "Completed suite runs by overall status.",
		}, []string{"mode", "overall"}),
		SuiteLastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "suite_last_run_timestamp_seconds",
			Help:      "Unix time the last suite run finished.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.RateLimitDropped,
		m.AuthFailures,
		m.CheckObserved,
		m.CheckStatus,
		m.CheckDurationSec,
		m.ProbeFailures,
		m.SuiteMetPercent,
		m.SuiteRuns,
		m.SuiteLastRun,
	)

	return m
}

// PublishResult updates per-check gauges.
func (m *Metrics) PublishResult(_ context.Context, r *entity.CheckResult) error {
	name := r.CheckName()

	if v, ok := r.Observed(); ok {
		m.CheckObserved.WithLabelValues(name, r.ThresholdName(), string(r.Unit())).Set(v)
	} else {
		m.CheckObserved.DeletePartialMatch(prometheus.Labels{"check": name})
	}

	for _, st := range allStatuses {
		v := 0.0
		if st == r.Status() {
			v = 1
		}
		m.CheckStatus.WithLabelValues(name, st.String()).Set(v)
	}

	m.CheckDurationSec.WithLabelValues(name).Observe(r.Duration().Seconds())
	if n := r.Summary().FailureCount(); n > 0 {
		m.ProbeFailures.WithLabelValues(name).Add(float64(n))
	}
	return nil
}

// PublishRun updates suite-level gauges.
func (m *Metrics) PublishRun(_ context.Context, run *entity.SuiteRun) error {
	mode := run.Mode().String()
	m.SuiteMetPercent.WithLabelValues(mode).Set(run.MetPercent())
	m.SuiteRuns.WithLabelValues(mode, run.OverallStatus().String()).Inc()
	m.SuiteLastRun.Set(float64(run.FinishedAt().Unix()))
	return nil
}

func (m *Metrics) Flush(context.Context) error {
	return nil
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

func normalizeRoute(path string) string {
	switch {
	case path == "/", path == "/ws", path == "/metrics", path == "/healthz", path == "/readyz":
		return path
	case strings.HasPrefix(path, "/api/v1/runs/"):
		return path
	case path == "/api/v1/reports" || strings.HasPrefix(path, "/api/v1/reports/"):
		return "/api/v1/reports"
	case strings.HasPrefix(path, "/api/"):
		return "/api/*"
	case strings.HasPrefix(path, "/static/"):
		return "/static/*"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// Flush keeps streaming behavior for handlers that require it.
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Push proxies HTTP/2 server push when available.
func (rw *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := rw.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
