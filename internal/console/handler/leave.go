package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/prabandh-gateway/internal/console/service"
	"github.com/xela07ax/prabandh-gateway/internal/domain"
)

// LeaveDispatcher — то, что нужно хендлеру от диспетчера действий.
type LeaveDispatcher interface {
	ApplyLeaveAction(ctx context.Context, app domain.LeaveApplication, action domain.Action, remarks string) error
}

type LeaveHandler struct {
	views      *service.Views
	dispatcher LeaveDispatcher
}

func NewLeaveHandler(views *service.Views, dispatcher LeaveDispatcher) *LeaveHandler {
	return &LeaveHandler{views: views, dispatcher: dispatcher}
}

// List отдает текущий снимок витрины заявок. Сетевого похода здесь
// нет: снимок обновляет поллер, ручное обновление — через /v1/poll/refresh.
func (h *LeaveHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.views.Leave())
}

type actRequest struct {
	Remarks string `json:"remarks"`
}

// Act применяет действие к заявке: POST /v1/leave/applications/{id}/{action}
func (h *LeaveHandler) Act(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid application id", http.StatusBadRequest)
		return
	}
	action := domain.Action(chi.URLParam(r, "action"))

	var req actRequest
	if r.Body != nil {
		// Пустое тело допустимо: remarks опциональны
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	app, ok := h.views.FindApplication(id)
	if !ok {
		http.Error(w, "application is not in the current view", http.StatusNotFound)
		return
	}

	if err := h.dispatcher.ApplyLeaveAction(r.Context(), app, action, req.Remarks); err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
