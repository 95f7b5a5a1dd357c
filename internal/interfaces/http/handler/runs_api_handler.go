package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/repository"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
	"github.com/dreschagin/dlp-kpi-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

const (
	defaultHistoryWindow = 24 * time.Hour
	defaultHistoryLimit  = 50
	maxHistoryLimit      = 500
)

// RunHistoryReader источник сохраненных прогонов
type RunHistoryReader interface {
	Latest(ctx context.Context) (*dto.SuiteRunDTO, error)
	History(ctx context.Context, window time.Duration, limit int) (*dto.SuiteHistoryDTO, error)
}

// SuiteTrigger запускает прогон вне расписания
type SuiteTrigger interface {
	RunOnce(ctx context.Context) (*entity.SuiteRun, error)
}

// RunsAPIHandler обрабатывает API запросы прогонов
type RunsAPIHandler struct {
	history   RunHistoryReader
	trigger   SuiteTrigger
	host      string
	maxWindow time.Duration
	logger    *logger.Logger
}

// NewRunsAPIHandler создает новый handler; history и trigger могут быть nil
func NewRunsAPIHandler(
	history RunHistoryReader,
	trigger SuiteTrigger,
	host string,
	maxWindow time.Duration,
	logger *logger.Logger,
) *RunsAPIHandler {
	if maxWindow <= 0 {
		maxWindow = 30 * 24 * time.Hour
	}
	return &RunsAPIHandler{
		history:   history,
		trigger:   trigger,
		host:      host,
		maxWindow: maxWindow,
		logger:    logger,
	}
}

// GetLatest возвращает последний сохраненный прогон
func (h *RunsAPIHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.history == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}

	run, err := h.history.Latest(r.Context())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "no runs recorded")
			return
		}
		h.logger.Error("Failed to get latest run", err)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to fetch latest run")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, run)
}

// GetHistory возвращает прогоны за окно ?window=24h (не более ?limit=N)
func (h *RunsAPIHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.history == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}

	window := defaultHistoryWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid window format")
			return
		}
		window = parsed
	}
	if window <= 0 || window > h.maxWindow {
		middleware.WriteError(w, http.StatusBadRequest, "window out of allowed range")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	history, err := h.history.History(r.Context(), window, limit)
	if err != nil {
		h.logger.Error("Failed to get run history", err)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to fetch run history")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, history)
}

// RunNow выполняет прогон немедленно и возвращает его результат
func (h *RunsAPIHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.trigger == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "scheduler is not running")
		return
	}

	run, err := h.trigger.RunOnce(r.Context())
	if err != nil {
		if service.IsOrchestrationFailure(err) {
			middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error("Manual suite run failed", err)
		middleware.WriteError(w, http.StatusInternalServerError, "suite run failed")
		return
	}

	out := dto.FromSuiteRun(run)
	out.Host = h.host
	middleware.WriteJSON(w, http.StatusOK, out)
}
