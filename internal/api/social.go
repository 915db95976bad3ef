package api

import (
	"context"
	"log/slog"
	"net/http"

	"popcorn/internal/domain"

	"github.com/gorilla/mux"
)

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req domain.SendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	msg, err := h.social.SendMessage(r.Context(), who, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, msg)
}

// ListMessages serves /api/messages/{sent|received}; ?content= filters on subject or text.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	content := r.URL.Query().Get("content")
	list := h.social.ReceivedMessages
	if mux.Vars(r)["mailbox"] == "sent" {
		list = h.social.SentMessages
	}
	msgs, err := list(r.Context(), who, content)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, msgs)
}

func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	get := h.social.ReceivedMessage
	if vars["mailbox"] == "sent" {
		get = h.social.SentMessage
	}
	msg, err := get(r.Context(), who, vars["messageId"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, msg)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	h.logger.InfoContext(r.Context(), "DeleteMessage endpoint hit", slog.String("messageID", vars["messageId"]), slog.String("mailbox", vars["mailbox"]))
	del := h.social.DeleteReceivedMessage
	if vars["mailbox"] == "sent" {
		del = h.social.DeleteSentMessage
	}
	if err := del(r.Context(), who, vars["messageId"]); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) InviteUser(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	inv, err := h.social.Invite(r.Context(), who, mux.Vars(r)["userId"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, inv)
}

func (h *Handler) CancelInvitation(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.social.CancelInvitation)
}

func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.social.AcceptInvitation)
}

func (h *Handler) RejectInvitation(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.social.RejectInvitation)
}

func (h *Handler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.social.RemoveFriend)
}

// noContent runs a social action against the {userId} or {movieId} path variable and answers 204.
func (h *Handler) noContent(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, who domain.Principal, id string) error) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	id := vars["userId"]
	if id == "" {
		id = vars["movieId"]
	}
	if err := action(r.Context(), who, id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetInvitations(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	invs, err := h.social.Invitations(r.Context(), who)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, invs)
}

func (h *Handler) GetFriends(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	friends, err := h.social.Friends(r.Context(), who)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, friends)
}

func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	fav, err := h.social.AddFavorite(r.Context(), who, mux.Vars(r)["movieId"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, fav)
}

func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	h.noContent(w, r, h.social.RemoveFavorite)
}

func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	favs, err := h.social.Favorites(r.Context(), who)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, favs)
}
