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

// EventDispatcher — то, что нужно хендлеру мероприятий от диспетчера.
type EventDispatcher interface {
	ApplyEventDecision(ctx context.Context, ev domain.Event, decision domain.EventStatus) error
}

type EventHandler struct {
	views      *service.Views
	dispatcher EventDispatcher
}

func NewEventHandler(views *service.Views, dispatcher EventDispatcher) *EventHandler {
	return &EventHandler{views: views, dispatcher: dispatcher}
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.views.Events())
}

type decideEventRequest struct {
	ApprovalStatus domain.EventStatus `json:"vcapproval_status"`
}

// Decide решает судьбу мероприятия: PATCH /v1/events/{id}/approve
func (h *EventHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	var req decideEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ev, ok := h.views.FindEvent(id)
	if !ok {
		http.Error(w, "event is not in the current view", http.StatusNotFound)
		return
	}

	if err := h.dispatcher.ApplyEventDecision(r.Context(), ev, req.ApprovalStatus); err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
