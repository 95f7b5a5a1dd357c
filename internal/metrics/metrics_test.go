package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

func TestPublishResultAndRun(t *testing.T) {
	m := New(prometheus.NewRegistry())
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	observed := 3.5
	result := entity.NewCheckResult(entity.CheckResultParams{
		CheckName:  "agent-cpu",
		Threshold:  valueobject.MustThreshold("AgentCPU", 5, valueobject.LessThanIsGood, valueobject.Percent),
		Dimension:  valueobject.CPU,
		Summary:    entity.NewSummary(8, 2, &entity.Stats{Mean: 3.5, Min: 1, Max: 6, P95: 5.8}),
		Observed:   &observed,
		Status:     valueobject.StatusMet,
		StartedAt:  start,
		FinishedAt: start.Add(20 * time.Second),
	})
	require.NoError(t, m.PublishResult(context.Background(), result))

	assert.Equal(t, 3.5, testutil.ToFloat64(m.CheckObserved.WithLabelValues("agent-cpu", "AgentCPU", "%")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckStatus.WithLabelValues("agent-cpu", "met")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CheckStatus.WithLabelValues("agent-cpu", "critical")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProbeFailures.WithLabelValues("agent-cpu")))

	run := entity.StartSuiteRun(valueobject.ModeQuick, start)
	require.NoError(t, run.Append(result))
	run.Finalize(start.Add(21 * time.Second))
	require.NoError(t, m.PublishRun(context.Background(), run))

	assert.Equal(t, 100.0, testutil.ToFloat64(m.SuiteMetPercent.WithLabelValues("quick")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SuiteRuns.WithLabelValues("quick", "healthy")))
	assert.Equal(t, float64(start.Add(21*time.Second).Unix()), testutil.ToFloat64(m.SuiteLastRun))
}

func TestPublishResultDropsStaleObservation(t *testing.T) {
	m := New(prometheus.NewRegistry())
	now := time.Now()

	v := 10.0
	_ = m.PublishResult(context.Background(), entity.NewCheckResult(entity.CheckResultParams{
		CheckName: "system-cpu",
		Threshold: valueobject.MustThreshold("SystemCPU", 75, valueobject.LessThanIsGood, valueobject.Percent),
		Observed:  &v,
		Status:    valueobject.StatusMet,
	}))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CheckObserved))

	_ = m.PublishResult(context.Background(), entity.NewErroredCheckResult("system-cpu", "SystemCPU", nil, now, now))
	assert.Equal(t, 0, testutil.CollectAndCount(m.CheckObserved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckStatus.WithLabelValues("system-cpu", "errored")))
}

func TestMiddlewareRecordsRoute(t *testing.T) {
	m := New(prometheus.NewRegistry())
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/v1/runs/latest", "GET", "418")))
}

func TestNormalizeRoute(t *testing.T) {
	cases := map[string]string{
		"/":                    "/",
		"/ws":                  "/ws",
		"/api/v1/reports":      "/api/v1/reports",
		"/api/v1/reports/abc":  "/api/v1/reports",
		"/api/v2/unknown":      "/api/*",
		"/static/app.js":       "/static/*",
		"/wp-admin/setup.php":  "other",
		"/api/v1/runs/history": "/api/v1/runs/history",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeRoute(in), in)
	}
}
