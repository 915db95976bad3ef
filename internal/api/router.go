package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

var timeNow = time.Now

// NewRouter builds the REST routes. Catalogue reads are public; writes and everything under
// /api/messages and /api/users/me need a bearer token.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(h.requestLogger)
	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api").Subrouter()

	users := apiRouter.PathPrefix("/users").Subrouter()
	users.HandleFunc("/register", h.RegisterUser).Methods(http.MethodPost)
	users.HandleFunc("/login", h.LoginUser).Methods(http.MethodPost)
	usersAuth := users.NewRoute().Subrouter()
	usersAuth.Use(h.AuthMiddleware)
	usersAuth.HandleFunc("/me", h.GetUserProfile).Methods(http.MethodGet)
	usersAuth.HandleFunc("/me/friends", h.GetFriends).Methods(http.MethodGet)
	usersAuth.HandleFunc("/me/friends/{userId}", h.RemoveFriend).Methods(http.MethodDelete)
	usersAuth.HandleFunc("/me/invitations", h.GetInvitations).Methods(http.MethodGet)
	usersAuth.HandleFunc("/me/invitations/{userId}/accept", h.AcceptInvitation).Methods(http.MethodPost)
	usersAuth.HandleFunc("/me/invitations/{userId}/reject", h.RejectInvitation).Methods(http.MethodPost)
	usersAuth.HandleFunc("/me/favorites", h.GetFavorites).Methods(http.MethodGet)
	usersAuth.HandleFunc("/{userId}/permissions", h.GrantPermissions).Methods(http.MethodPut)
	usersAuth.HandleFunc("/{userId}/invitations", h.InviteUser).Methods(http.MethodPost)
	usersAuth.HandleFunc("/{userId}/invitations", h.CancelInvitation).Methods(http.MethodDelete)

	movies := apiRouter.PathPrefix("/movies").Subrouter()
	movies.HandleFunc("", h.GetMovies).Methods(http.MethodGet)
	movies.HandleFunc("/{movieId}", h.GetMovieByID).Methods(http.MethodGet)
	movies.HandleFunc("/{movieId}/fields/{field}", h.GetFieldHistory).Methods(http.MethodGet)
	movies.HandleFunc("/{movieId}/rating", h.GetMovieRating).Methods(http.MethodGet)

	moviesAuth := movies.NewRoute().Subrouter()
	moviesAuth.Use(h.AuthMiddleware)
	moviesAuth.HandleFunc("", h.CreateMovie).Methods(http.MethodPost)
	moviesAuth.HandleFunc("/admin/pending", h.GetPendingMovies).Methods(http.MethodGet)
	moviesAuth.HandleFunc("/admin/{movieId}/verify", h.VerifyMovie).Methods(http.MethodPost)
	moviesAuth.HandleFunc("/{movieId}/ratings", h.RateMovie).Methods(http.MethodPost)
	moviesAuth.HandleFunc("/{movieId}/contributions/{field}", h.SubmitContribution).Methods(http.MethodPost)
	moviesAuth.HandleFunc("/{movieId}/favorite", h.AddFavorite).Methods(http.MethodPut)
	moviesAuth.HandleFunc("/{movieId}/favorite", h.RemoveFavorite).Methods(http.MethodDelete)

	contributions := apiRouter.PathPrefix("/contributions").Subrouter()
	contributions.HandleFunc("", h.SearchContributions).Methods(http.MethodGet)
	contributions.HandleFunc("/{contributionId}", h.GetContribution).Methods(http.MethodGet)

	contributionsAuth := contributions.NewRoute().Subrouter()
	contributionsAuth.Use(h.AuthMiddleware)
	contributionsAuth.HandleFunc("/{contributionId}", h.EditContribution).Methods(http.MethodPut)
	contributionsAuth.HandleFunc("/{contributionId}/verify", h.VerifyContribution).Methods(http.MethodPost)

	messages := apiRouter.PathPrefix("/messages").Subrouter()
	messages.Use(h.AuthMiddleware)
	messages.HandleFunc("", h.SendMessage).Methods(http.MethodPost)
	messages.HandleFunc("/{mailbox:sent|received}", h.ListMessages).Methods(http.MethodGet)
	messages.HandleFunc("/{mailbox:sent|received}/{messageId}", h.GetMessage).Methods(http.MethodGet)
	messages.HandleFunc("/{mailbox:sent|received}/{messageId}", h.DeleteMessage).Methods(http.MethodDelete)

	return router
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
