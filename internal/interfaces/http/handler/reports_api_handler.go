package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/usecase"
	"github.com/dreschagin/dlp-kpi-monitor/internal/interfaces/http/middleware"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

// ReportLister список архивных отчетов
type ReportLister interface {
	Execute(ctx context.Context, cmd usecase.ListReportsCommand) (*usecase.ListReportsResult, error)
}

type ReportsAPIHandler struct {
	lister      ReportLister
	defaultHost string
	logger      *logger.Logger
}

func NewReportsAPIHandler(lister ReportLister, defaultHost string, log *logger.Logger) *ReportsAPIHandler {
	return &ReportsAPIHandler{
		lister:      lister,
		defaultHost: defaultHost,
		logger:      log,
	}
}

// List обрабатывает GET /api/v1/reports?host=&type=&run_id=&status=&limit=&cursor=&from=&to=
func (h *ReportsAPIHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.lister == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "report archive is not configured")
		return
	}

	q := r.URL.Query()

	host := strings.TrimSpace(q.Get("host"))
	if host == "" {
		host = h.defaultHost
	}

	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid from, expected RFC3339")
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid to, expected RFC3339")
		return
	}

	result, err := h.lister.Execute(r.Context(), usecase.ListReportsCommand{
		Host:         host,
		Limit:        limit,
		Cursor:       q.Get("cursor"),
		ArtifactType: q.Get("type"),
		RunID:        q.Get("run_id"),
		Status:       q.Get("status"),
		From:         from,
		To:           to,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidReportQuery) {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to list reports", err, "host", host)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
