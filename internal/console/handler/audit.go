package handler

import (
	"net/http"
	"strconv"

	"github.com/xela07ax/prabandh-gateway/internal/console/service"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(s *service.AuditService) *AuditHandler {
	return &AuditHandler{service: s}
}

// GetDecisions возвращает последние записи журнала решений
// GET /v1/audit?limit=...
func (h *AuditHandler) GetDecisions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	decisions, err := h.service.FetchDecisions(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to fetch decision log", http.StatusInternalServerError)
		return
	}
	writeJSON(w, decisions)
}
