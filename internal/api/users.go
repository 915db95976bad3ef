package api

import (
	"log/slog"
	"net/http"

	"popcorn/internal/domain"

	"github.com/gorilla/mux"
)

func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "HTTP RegisterUser request received", slog.String("path", r.URL.Path))

	var req domain.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.accounts.Register(ctx, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, user)
}

func (h *Handler) LoginUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "HTTP LoginUser request received", slog.String("path", r.URL.Path))

	var req domain.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.accounts.Login(ctx, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	user, err := h.accounts.GetUser(r.Context(), who.UserID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, user)
}

// GrantPermissions replaces the moderation permissions of the user in the path.
func (h *Handler) GrantPermissions(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req domain.GrantPermissionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.accounts.GrantPermissions(r.Context(), who, mux.Vars(r)["userId"], req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, user)
}
