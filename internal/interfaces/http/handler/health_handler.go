package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/dlp-kpi-monitor/internal/scheduler"
)

// SnapshotProvider состояние планировщика
type SnapshotProvider interface {
	Snapshot() scheduler.Snapshot
}

// ReadinessCheck проверка зависимости (БД, кеш) для /readyz
type ReadinessCheck func(ctx context.Context) error

// HealthHandler отвечает на пробы liveness и readiness без авторизации
type HealthHandler struct {
	scheduler SnapshotProvider
	checks    map[string]ReadinessCheck
	startedAt time.Time
	now       func() time.Time
}

// NewHealthHandler создает handler; scheduler может быть nil
func NewHealthHandler(scheduler SnapshotProvider, checks map[string]ReadinessCheck) *HealthHandler {
	return &HealthHandler{
		scheduler: scheduler,
		checks:    checks,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": h.now().Sub(h.startedAt).Round(time.Second).String(),
	}
	if h.scheduler != nil {
		response["scheduler"] = h.scheduler.Snapshot()
	}

	middleware.WriteJSON(w, http.StatusOK, response)
}

// Readyz готов, если зависимости доступны и последний плановый прогон успешен и свеж
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failures := make(map[string]string)

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if h.scheduler != nil {
		if err := h.scheduler.Snapshot().Ready(h.now()); err != nil {
			failures["scheduler"] = err.Error()
		}
	}

	if len(failures) > 0 {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "not_ready",
			"failures": failures,
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
