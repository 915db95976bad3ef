package api

import (
	"log/slog"
	"net/http"

	"popcorn/internal/domain"
	"popcorn/internal/store"

	"github.com/gorilla/mux"
)

// SubmitContribution proposes changes to one field of a movie. The field may be written as
// BOX_OFFICE or box-office.
func (h *Handler) SubmitContribution(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	field, err := domain.ParseMovieField(vars["field"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "HTTP SubmitContribution request received",
		slog.String("movieID", vars["movieId"]), slog.String("field", string(field)), slog.String("userID", who.UserID))

	var req domain.ContributionRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.moderation.SubmitContribution(r.Context(), who, vars["movieId"], field, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, c)
}

func (h *Handler) EditContribution(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req domain.ContributionRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.moderation.EditContribution(r.Context(), who, mux.Vars(r)["contributionId"], req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, c)
}

func (h *Handler) VerifyContribution(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	contributionID := mux.Vars(r)["contributionId"]
	h.logger.InfoContext(r.Context(), "VerifyContribution endpoint hit",
		slog.String("contributionID", contributionID), slog.String("userID", who.UserID))

	var req domain.VerifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.moderation.VerifyContribution(r.Context(), who, contributionID, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, c)
}

func (h *Handler) GetContribution(w http.ResponseWriter, r *http.Request) {
	c, err := h.moderation.GetContribution(r.Context(), mux.Vars(r)["contributionId"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, c)
}

// SearchContributions filters by movie_id, field, status and an inclusive from/to creation range.
func (h *Handler) SearchContributions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := store.ContributionListParams{MovieID: q.Get("movie_id")}
	params.Page, params.PageSize = pagination(r)

	var err error
	if raw := q.Get("field"); raw != "" {
		if params.Field, err = domain.ParseMovieField(raw); err != nil {
			h.respondServiceError(w, r, err)
			return
		}
	}
	if raw := q.Get("status"); raw != "" {
		if params.Status, err = domain.ParseDataStatus(raw); err != nil {
			h.respondServiceError(w, r, err)
			return
		}
	}
	if params.From, err = parseTimeBound(q.Get("from"), false); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if params.To, err = parseTimeBound(q.Get("to"), true); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	items, total, err := h.moderation.SearchContributions(r.Context(), params)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, pageResponse[domain.ContributionSummary]{
		Items:      items,
		TotalCount: total,
		Page:       params.Page,
		PageSize:   params.PageSize,
	})
}
