package api

import (
	"log/slog"
	"net/http"

	"popcorn/internal/domain"
	"popcorn/internal/store"

	"github.com/gorilla/mux"
)

func (h *Handler) CreateMovie(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	h.logger.InfoContext(ctx, "HTTP CreateMovie request received", slog.String("userID", who.UserID))

	var req domain.CreateMovieRequest
	if !h.decode(w, r, &req) {
		return
	}
	movie, err := h.moderation.CreateMovie(ctx, who, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, movie)
}

// GetMovies lists accepted movies with the filters of the query string.
func (h *Handler) GetMovies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	h.logger.InfoContext(ctx, "GetMovies endpoint hit", slog.String("query", q.Encode()))

	params, err := movieListParams(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	params.Status = domain.StatusAccepted
	h.listMovies(w, r, params)
}

// GetPendingMovies lists WAITING movies for moderators holding NEW_MOVIE or ALL.
func (h *Handler) GetPendingMovies(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	params, err := movieListParams(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	movies, total, err := h.moderation.PendingMovies(r.Context(), who, params)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondMovies(w, r, params, movies, total)
}

func (h *Handler) listMovies(w http.ResponseWriter, r *http.Request, params store.MovieListParams) {
	movies, total, err := h.moderation.SearchMovies(r.Context(), params)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondMovies(w, r, params, movies, total)
}

func (h *Handler) respondMovies(w http.ResponseWriter, r *http.Request, params store.MovieListParams, movies []*domain.Movie, total int) {
	h.respondJSON(w, r, http.StatusOK, pageResponse[*domain.Movie]{
		Items:      movies,
		TotalCount: total,
		Page:       params.Page,
		PageSize:   params.PageSize,
	})
}

func movieListParams(r *http.Request) (store.MovieListParams, error) {
	q := r.URL.Query()
	params := store.MovieListParams{
		Title:    q.Get("title"),
		Type:     domain.MovieType(q.Get("type")),
		Genre:    q.Get("genre"),
		Country:  q.Get("country"),
		Language: q.Get("language"),
		SortBy:   q.Get("sort_by"),
	}
	params.Page, params.PageSize = pagination(r)

	var err error
	if params.FromDate, err = parseTimeBound(q.Get("from_date"), false); err != nil {
		return params, err
	}
	if params.ToDate, err = parseTimeBound(q.Get("to_date"), true); err != nil {
		return params, err
	}
	if params.MinRating, err = parseFloat(q.Get("min_rating")); err != nil {
		return params, err
	}
	if params.MaxRating, err = parseFloat(q.Get("max_rating")); err != nil {
		return params, err
	}
	return params, nil
}

func (h *Handler) GetMovieByID(w http.ResponseWriter, r *http.Request) {
	movieID := mux.Vars(r)["movieId"]
	movie, err := h.moderation.GetMovie(r.Context(), movieID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, movie)
}

// GetFieldHistory returns every record of one field, including superseded ones.
func (h *Handler) GetFieldHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	field, err := domain.ParseMovieField(vars["field"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	infos, err := h.moderation.FieldHistory(r.Context(), vars["movieId"], field)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if infos == nil {
		infos = []*domain.MovieInfo{}
	}
	h.respondJSON(w, r, http.StatusOK, infos)
}

func (h *Handler) VerifyMovie(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	movieID := mux.Vars(r)["movieId"]
	h.logger.InfoContext(r.Context(), "VerifyMovie endpoint hit", slog.String("movieID", movieID), slog.String("userID", who.UserID))

	var req domain.VerifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	movie, err := h.moderation.VerifyMovie(r.Context(), who, movieID, req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, movie)
}

func (h *Handler) RateMovie(w http.ResponseWriter, r *http.Request) {
	who, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req domain.RateMovieRequest
	if !h.decode(w, r, &req) {
		return
	}
	rating, err := h.ratings.RateMovie(r.Context(), who, mux.Vars(r)["movieId"], req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, rating)
}

func (h *Handler) GetMovieRating(w http.ResponseWriter, r *http.Request) {
	agg, err := h.ratings.MovieRating(r.Context(), mux.Vars(r)["movieId"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, agg)
}
