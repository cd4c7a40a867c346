package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/prabandh-gateway/internal/console/service"
	"github.com/xela07ax/prabandh-gateway/internal/domain"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(s *service.AuthService) *AuthHandler {
	return &AuthHandler{service: s}
}

type loginResponse struct {
	Role domain.Role `json:"role"`
	Name string      `json:"name"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	role, err := h.service.Login(r.Context(), creds)
	if err != nil {
		// не уточняем, что именно неверно (логин или пароль)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ident, _ := h.service.Session()
	writeJSON(w, loginResponse{Role: role, Name: ident.Name})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Session возвращает личность текущей сессии — дашборд спрашивает ее
// на старте, чтобы выбрать нужную витрину.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.service.Session()
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, ident)
}
