package handler

import (
	"net/http"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/interfaces/http/middleware"
)

// CheckDescriber каталог проверок
type CheckDescriber interface {
	Describe() []*dto.CheckInfoDTO
}

type ChecksAPIHandler struct {
	catalog CheckDescriber
}

func NewChecksAPIHandler(catalog CheckDescriber) *ChecksAPIHandler {
	return &ChecksAPIHandler{catalog: catalog}
}

// List возвращает зарегистрированные проверки с порогами и режимами
func (h *ChecksAPIHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"checks": h.catalog.Describe(),
	})
}
