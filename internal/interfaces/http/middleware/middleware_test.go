package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = io.WriteString(w, "ok")
})

func TestAuthRejectsMissingToken(t *testing.T) {
	rejected := 0
	h := Auth(AuthConfig{Enabled: true, BearerToken: "secret", OnReject: func() { rejected++ }}, logger.NewNop())(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
	assert.Equal(t, 1, rejected)
}

func TestAuthAcceptsHeaderCookieAndQuery(t *testing.T) {
	cfg := AuthConfig{Enabled: true, BearerToken: "secret"}
	h := Auth(cfg, logger.NewNop())(okHandler)

	byHeader := httptest.NewRequest(http.MethodGet, "/", nil)
	byHeader.Header.Set("Authorization", "Bearer secret")

	byCookie := httptest.NewRequest(http.MethodGet, "/", nil)
	byCookie.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "secret"})

	byQuery := httptest.NewRequest(http.MethodGet, "/ws?token=secret", nil)

	for _, req := range []*http.Request{byHeader, byCookie, byQuery} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, req.URL.String())
	}
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	assert.NoError(t, ValidateRequestAuth(httptest.NewRequest(http.MethodGet, "/", nil), AuthConfig{}))
}

func TestRateLimitDropsOverBudget(t *testing.T) {
	dropped := 0
	limiter := NewIPRateLimiter(2).OnDrop(func() { dropped++ })
	h := RateLimit(limiter)(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, 1, dropped)

	other := httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterCleanupEvictsIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(10)
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	now = now.Add(time.Hour)
	limiter.Allow("b")

	assert.Equal(t, 1, limiter.Cleanup())
	assert.Len(t, limiter.visitors, 1)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}

func TestRecoveryReturns500(t *testing.T) {
	h := Recovery(logger.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCompressionGzipsAndSkipsWebSocket(t *testing.T) {
	h := Compression(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checks", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))

	ws := httptest.NewRequest(http.MethodGet, "/ws", nil)
	ws.Header.Set("Accept-Encoding", "gzip")
	ws.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, ws)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
}
