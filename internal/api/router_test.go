package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"popcorn/internal/accounts"
	"popcorn/internal/domain"
	"popcorn/internal/moderation"
	"popcorn/internal/ratings"
	"popcorn/internal/social"
	"popcorn/internal/store"
	"popcorn/pkg/auth"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	t       *testing.T
	router  http.Handler
	tokens  auth.TokenManager
	admin   string
	adminID string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	st := store.NewMemoryStore(logger)
	v := validator.New()
	tm, err := auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	acc := accounts.NewService(st, logger, v, tm, hasher)
	adminUser, err := acc.EnsureAdmin(context.Background(), domain.RegisterRequest{
		Username: "admin", Email: "admin@popcorn.dev", Password: "supersecret",
	})
	require.NoError(t, err)

	h := NewHandler(moderation.NewService(st, logger, v), acc, ratings.NewService(st, logger, v), social.NewService(st, logger, v), tm, logger)
	ts := &testServer{t: t, router: NewRouter(h), tokens: tm, adminID: adminUser.ID}
	ts.admin = ts.login("admin@popcorn.dev", "supersecret")
	return ts
}

func (ts *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(email, password string) string {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/users/login", "", domain.LoginRequest{Email: email, Password: password})
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp domain.LoginResponse
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func (ts *testServer) register(username string) (id, token string) {
	ts.t.Helper()
	email := username + "@popcorn.dev"
	rec := ts.do(http.MethodPost, "/api/users/register", "", domain.RegisterRequest{
		Username: username, Email: email, Password: "password1",
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	var user domain.User
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &user))
	return user.ID, ts.login(email, "password1")
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", domain.ErrValidation), http.StatusBadRequest},
		{accounts.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{store.ErrMovieNotFound, http.StatusNotFound},
		{store.ErrUserAlreadyExists, http.StatusConflict},
		{domain.ErrState, http.StatusConflict},
		{store.ErrStaleVersion, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestParseTimeBound(t *testing.T) {
	lower, err := parseTimeBound("2024-03-01", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *lower)

	upper, err := parseTimeBound("2024-03-01", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 23, 59, 59, 999999999, time.UTC), *upper)

	exact, err := parseTimeBound("2024-03-01T10:00:00Z", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), *exact)

	none, err := parseTimeBound("  ", true)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = parseTimeBound("yesterday", false)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/movies", "", domain.CreateMovieRequest{Title: "Alien", Type: domain.MovieTypeMovie})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/api/users/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Token "+ts.admin)
	res := httptest.NewRecorder()
	ts.router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	rec = ts.do(http.MethodGet, "/api/users/me", ts.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ts.adminID, decodeBody(t, rec)["id"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestContributionFlow(t *testing.T) {
	ts := newTestServer(t)
	_, author := ts.register("kane")

	rec := ts.do(http.MethodPost, "/api/movies", author, domain.CreateMovieRequest{Title: "Alien", Type: domain.MovieTypeMovie})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	movieID := decodeBody(t, rec)["id"].(string)

	// Waiting movies are hidden from the public listing.
	rec = ts.do(http.MethodGet, "/api/movies", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeBody(t, rec)["total_count"])

	rec = ts.do(http.MethodGet, "/api/movies/admin/pending", author, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(http.MethodGet, "/api/movies/admin/pending", ts.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["total_count"])

	rec = ts.do(http.MethodPost, "/api/movies/admin/"+movieID+"/verify", ts.admin, domain.VerifyRequest{Decision: domain.DecisionAccept})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ACCEPTED", decodeBody(t, rec)["status"])

	body := map[string]interface{}{
		"elements_to_add": []interface{}{map[string]interface{}{"amount": 104931801, "country": "US"}},
		"sources":         []string{"https://www.boxofficemojo.com/title/tt0078748/"},
	}
	rec = ts.do(http.MethodPost, "/api/movies/"+movieID+"/contributions/box-office", author, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	contribution := decodeBody(t, rec)
	assert.Equal(t, "WAITING", contribution["status"])
	assert.Equal(t, "BOX_OFFICE", contribution["field"])
	contributionID := contribution["id"].(string)

	rec = ts.do(http.MethodPost, "/api/contributions/"+contributionID+"/verify", author, domain.VerifyRequest{Decision: domain.DecisionAccept})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/api/contributions/"+contributionID+"/verify", ts.admin, domain.VerifyRequest{Decision: domain.DecisionAccept})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	accepted := decodeBody(t, rec)
	assert.Equal(t, "ACCEPTED", accepted["status"])
	assert.Len(t, accepted["added_ids"], 1)

	rec = ts.do(http.MethodPost, "/api/contributions/"+contributionID+"/verify", ts.admin, domain.VerifyRequest{Decision: domain.DecisionReject})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodGet, "/api/movies/"+movieID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fields := decodeBody(t, rec)["fields"].(map[string]interface{})
	assert.Len(t, fields["BOX_OFFICE"], 1)

	rec = ts.do(http.MethodGet, "/api/movies/"+movieID+"/fields/BOX_OFFICE", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "US", history[0]["value"].(map[string]interface{})["country"])

	rec = ts.do(http.MethodGet, "/api/contributions?movie_id="+movieID+"&status=ACCEPTED&field=box_office", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["total_count"])

	rec = ts.do(http.MethodGet, "/api/contributions?status=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitContributionErrors(t *testing.T) {
	ts := newTestServer(t)
	_, author := ts.register("lambert")

	rec := ts.do(http.MethodPost, "/api/movies/missing/contributions/GENRE", author, map[string]interface{}{
		"elements_to_add": []interface{}{map[string]string{"genre": "HORROR"}},
		"sources":         []string{"https://example.com"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/api/movies/missing/contributions/NOT_A_FIELD", author, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/movies/missing/contributions/GENRE", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+author)
	res := httptest.NewRecorder()
	ts.router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestGrantPermissionsAndRating(t *testing.T) {
	ts := newTestServer(t)
	userID, token := ts.register("parker")

	rec := ts.do(http.MethodPut, "/api/users/"+userID+"/permissions", token, domain.GrantPermissionsRequest{Permissions: []string{"ALL"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPut, "/api/users/"+userID+"/permissions", ts.admin, domain.GrantPermissionsRequest{Permissions: []string{"NEW_MOVIE"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []interface{}{"NEW_MOVIE"}, decodeBody(t, rec)["permissions"])

	// permissions are read from the account, so the token issued before the grant already works
	rec = ts.do(http.MethodGet, "/api/movies/admin/pending", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/api/movies", token, domain.CreateMovieRequest{Title: "Aliens", Type: domain.MovieTypeMovie})
	require.Equal(t, http.StatusCreated, rec.Code)
	movieID := decodeBody(t, rec)["id"].(string)

	rec = ts.do(http.MethodPost, "/api/movies/"+movieID+"/ratings", token, domain.RateMovieRequest{Rating: 9})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/api/movies/admin/"+movieID+"/verify", token, domain.VerifyRequest{Decision: domain.DecisionAccept})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/api/movies/"+movieID+"/ratings", token, domain.RateMovieRequest{Rating: 9})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPost, "/api/movies/"+movieID+"/ratings", ts.admin, domain.RateMovieRequest{Rating: 7})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/movies/"+movieID+"/rating", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	agg := decodeBody(t, rec)
	assert.EqualValues(t, 2, agg["rating_count"])
	assert.InDelta(t, 8.0, agg["average_rating"], 0.001)
}

func TestRevokedPermissionsApplyToIssuedTokens(t *testing.T) {
	ts := newTestServer(t)
	userID, token := ts.register("brett")

	rec := ts.do(http.MethodPut, "/api/users/"+userID+"/permissions", ts.admin, domain.GrantPermissionsRequest{Permissions: []string{"ALL"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token = ts.login("brett@popcorn.dev", "password1")

	rec = ts.do(http.MethodPost, "/api/movies", token, domain.CreateMovieRequest{Title: "Alien 3", Type: domain.MovieTypeMovie})
	require.Equal(t, http.StatusCreated, rec.Code)
	movieID := decodeBody(t, rec)["id"].(string)

	rec = ts.do(http.MethodPut, "/api/users/"+userID+"/permissions", ts.admin, domain.GrantPermissionsRequest{Permissions: []string{}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the token still claims ALL
	claims, err := ts.tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, []string{"ALL"}, claims.Permissions)

	rec = ts.do(http.MethodGet, "/api/movies/admin/pending", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(http.MethodPost, "/api/movies/admin/"+movieID+"/verify", token, domain.VerifyRequest{Decision: domain.DecisionAccept})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(http.MethodPut, "/api/users/"+ts.adminID+"/permissions", token, domain.GrantPermissionsRequest{Permissions: []string{}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMessageRoutes(t *testing.T) {
	ts := newTestServer(t)
	_, kane := ts.register("kane")
	_, ripley := ts.register("ripley")

	rec := ts.do(http.MethodPost, "/api/messages", "", domain.SendMessageRequest{To: "ripley", Subject: "s", Text: "t"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/messages", kane, domain.SendMessageRequest{To: "ripley", Subject: "Nostromo", Text: "wake up"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	messageID := decodeBody(t, rec)["id"].(string)

	rec = ts.do(http.MethodGet, "/api/messages/received/"+messageID, kane, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/messages/received/"+messageID, ripley, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeBody(t, rec)["read_at"])

	rec = ts.do(http.MethodGet, "/api/messages/sent?content=nostromo", kane, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sent []domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	require.Len(t, sent, 1)

	rec = ts.do(http.MethodDelete, "/api/messages/sent/"+messageID, kane, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodGet, "/api/messages/sent/"+messageID, kane, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(http.MethodGet, "/api/messages/received", ripley, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var received []domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &received))
	assert.Len(t, received, 1)

	rec = ts.do(http.MethodGet, "/api/messages/drafts", kane, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFriendRoutes(t *testing.T) {
	ts := newTestServer(t)
	kaneID, kane := ts.register("kane")
	ripleyID, ripley := ts.register("ripley")

	rec := ts.do(http.MethodPost, "/api/users/"+ripleyID+"/invitations", kane, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPost, "/api/users/"+kaneID+"/invitations", ripley, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodGet, "/api/users/me/invitations", ripley, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var invs domain.Invitations
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &invs))
	require.Len(t, invs.Received, 1)

	rec = ts.do(http.MethodPost, "/api/users/me/invitations/"+kaneID+"/accept", ripley, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/users/me/friends", kane, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var friends []domain.Friendship
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &friends))
	require.Len(t, friends, 1)
	assert.Equal(t, ripleyID, friends[0].FriendID)

	rec = ts.do(http.MethodDelete, "/api/users/me/friends/"+ripleyID, kane, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodDelete, "/api/users/me/friends/"+ripleyID, kane, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/api/users/"+ripleyID+"/invitations", kane, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(http.MethodDelete, "/api/users/"+ripleyID+"/invitations", kane, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodPost, "/api/users/me/invitations/"+kaneID+"/reject", ripley, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFavoriteRoutes(t *testing.T) {
	ts := newTestServer(t)
	_, kane := ts.register("kane")

	rec := ts.do(http.MethodPost, "/api/movies", kane, domain.CreateMovieRequest{Title: "Alien", Type: domain.MovieTypeMovie})
	require.Equal(t, http.StatusCreated, rec.Code)
	movieID := decodeBody(t, rec)["id"].(string)

	rec = ts.do(http.MethodPut, "/api/movies/"+movieID+"/favorite", kane, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "waiting movies cannot be favorites")

	rec = ts.do(http.MethodPost, "/api/movies/admin/"+movieID+"/verify", ts.admin, domain.VerifyRequest{Decision: domain.DecisionAccept})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPut, "/api/movies/"+movieID+"/favorite", kane, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.do(http.MethodPut, "/api/movies/"+movieID+"/favorite", kane, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodGet, "/api/movies/"+movieID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["favorite_count"])

	rec = ts.do(http.MethodGet, "/api/users/me/favorites", kane, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var favs []domain.Favorite
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &favs))
	require.Len(t, favs, 1)

	rec = ts.do(http.MethodDelete, "/api/movies/"+movieID+"/favorite", kane, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(http.MethodDelete, "/api/movies/"+movieID+"/favorite", kane, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
