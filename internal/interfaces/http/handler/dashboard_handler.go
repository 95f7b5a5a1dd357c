package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/repository"
	"github.com/dreschagin/dlp-kpi-monitor/internal/interfaces/http/view"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

// DashboardHandler обрабатывает запросы к dashboard
type DashboardHandler struct {
	history   RunHistoryReader
	catalog   CheckDescriber
	scheduler SnapshotProvider
	host      string
	logger    *logger.Logger
}

// NewDashboardHandler создает новый handler; history и scheduler могут быть nil
func NewDashboardHandler(
	history RunHistoryReader,
	catalog CheckDescriber,
	scheduler SnapshotProvider,
	host string,
	logger *logger.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		history:   history,
		catalog:   catalog,
		scheduler: scheduler,
		host:      host,
		logger:    logger,
	}
}

// ShowDashboard отображает главную страницу
func (h *DashboardHandler) ShowDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := view.DashboardData{Host: h.host}

	if h.catalog != nil {
		data.Checks = h.catalog.Describe()
	}

	if h.history != nil {
		latest, err := h.history.Latest(r.Context())
		switch {
		case err == nil:
			data.Latest = latest
		case errors.Is(err, repository.ErrNotFound):
		default:
			// Страница отображается и без истории
			h.logger.Warn("Dashboard without latest run", "error", err.Error())
		}
	}

	if h.scheduler != nil {
		snap := h.scheduler.Snapshot()
		data.Scheduler = fmt.Sprintf("%s every %s", snap.Mode, snap.Interval)
		if snap.LastError != "" {
			data.Scheduler += ", last cycle failed"
		}
		if data.Latest == nil && snap.LastRunID != "" {
			data.Latest = &dto.SuiteRunDTO{
				ID:            snap.LastRunID,
				Mode:          snap.Mode,
				Host:          h.host,
				FinishedAt:    snap.LastRunAt,
				OverallStatus: snap.LastOverall,
				MetPercent:    snap.LastMetPercent,
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := view.Dashboard(data).Render(r.Context(), w); err != nil {
		h.logger.Error("Failed to render dashboard", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
