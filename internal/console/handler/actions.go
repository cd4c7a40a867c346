package handler

import (
	"net/http"

	"github.com/xela07ax/prabandh-gateway/internal/console/service"
	"github.com/xela07ax/prabandh-gateway/internal/domain"
	"github.com/xela07ax/prabandh-gateway/internal/workflow"
)

// ActionsHandler отдает дашборду список легальных действий — чистую
// проекцию таблицы переходов. Дашборд рисует ровно эти кнопки и ничего
// не решает сам.
type ActionsHandler struct {
	roles service.RoleSource
}

func NewActionsHandler(roles service.RoleSource) *ActionsHandler {
	return &ActionsHandler{roles: roles}
}

type actionsResponse struct {
	Status  domain.Status   `json:"status"`
	Role    domain.Role     `json:"role"`
	Actions []domain.Action `json:"actions"`
}

// List: GET /v1/actions?status=...
func (h *ActionsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := domain.Status(r.URL.Query().Get("status"))
	if status == "" {
		http.Error(w, "status query parameter is required", http.StatusBadRequest)
		return
	}

	role := h.roles.Role()
	actions := workflow.AllowedActions(status, role)
	if actions == nil {
		// Пустой список, а не null: клиенту так проще
		actions = []domain.Action{}
	}
	writeJSON(w, actionsResponse{Status: status, Role: role, Actions: actions})
}
