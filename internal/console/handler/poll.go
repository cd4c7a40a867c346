package handler

import (
	"encoding/json"
	"net/http"

	syncer "github.com/xela07ax/prabandh-gateway/internal/sync"
)

// PollHandler — ручное управление опросом: кнопка «обновить» и
// выключатель фонового поллинга.
type PollHandler struct {
	pollers *syncer.Registry
}

func NewPollHandler(pollers *syncer.Registry) *PollHandler {
	return &PollHandler{pollers: pollers}
}

type refreshRequest struct {
	View string `json:"view"`
}

// Refresh: POST /v1/poll/refresh — громкий внеплановый fetch витрины.
// Фаза фонового таймера при этом не сбрасывается.
func (h *PollHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, ok := h.pollers.Get(req.View)
	if !ok {
		http.Error(w, "unknown view", http.StatusNotFound)
		return
	}

	if err := p.ManualRefresh(); err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type enabledRequest struct {
	View    string `json:"view,omitempty"` // пусто = все витрины
	Enabled bool   `json:"enabled"`
}

// SetEnabled: POST /v1/poll/enabled — включить или выключить фоновый опрос.
func (h *PollHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.View == "" {
		if req.Enabled {
			h.pollers.EnableAll()
		} else {
			h.pollers.DisableAll()
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	p, ok := h.pollers.Get(req.View)
	if !ok {
		http.Error(w, "unknown view", http.StatusNotFound)
		return
	}
	p.SetEnabled(req.Enabled)
	w.WriteHeader(http.StatusNoContent)
}
