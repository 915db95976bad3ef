package moderation

import (
	"encoding/json"
	"testing"

	"popcorn/internal/domain"
	"popcorn/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMovie(t *testing.T) {
	f := newFixture(t)

	m, err := f.svc.CreateMovie(f.ctx, author, domain.CreateMovieRequest{Title: "Alien", Type: domain.MovieTypeMovie})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, m.Status)
	assert.Equal(t, "author", m.SubmittedByUserID)

	movie, err := f.svc.GetMovie(f.ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, movie.Fields[domain.FieldTitle], 1)
	require.Len(t, movie.Fields[domain.FieldType], 1)
	assert.Equal(t, &domain.Title{Title: "Alien"}, movie.Fields[domain.FieldTitle][0].Payload)
	assert.Equal(t, domain.StatusAccepted, movie.Fields[domain.FieldType][0].Status)
	assert.Empty(t, movie.Fields[domain.FieldBudget])
}

func TestCreateMovie_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateMovie(f.ctx, author, domain.CreateMovieRequest{Title: "", Type: domain.MovieTypeMovie})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreateMovie(f.ctx, author, domain.CreateMovieRequest{Title: "Alien", Type: "OPERA"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreateMovie(f.ctx, author, domain.CreateMovieRequest{
		Title: "Alien", Type: domain.MovieTypeMovie, Budget: &domain.Budget{Amount: 1, Currency: "DOLLARS"},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreateMovie(f.ctx, domain.Principal{UserID: "ghost"}, domain.CreateMovieRequest{Title: "Alien", Type: domain.MovieTypeMovie})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.CreateMovie(f.ctx, domain.Principal{}, domain.CreateMovieRequest{Title: "Alien", Type: domain.MovieTypeMovie})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerifyMovie(t *testing.T) {
	f := newFixture(t)
	m, err := f.svc.CreateMovie(f.ctx, author, domain.CreateMovieRequest{Title: "Alien", Type: domain.MovieTypeMovie})
	require.NoError(t, err)

	// field moderators cannot approve movies
	_, err = f.svc.VerifyMovie(f.ctx, boxMod, m.ID, domain.VerifyRequest{Decision: domain.DecisionAccept})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	verified, err := f.svc.VerifyMovie(f.ctx, newMovies, m.ID, domain.VerifyRequest{Decision: domain.DecisionAccept})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, verified.Status)
	assert.Equal(t, "new-mod", verified.VerifiedByUserID)

	_, err = f.svc.VerifyMovie(f.ctx, admin, m.ID, domain.VerifyRequest{Decision: domain.DecisionReject})
	assert.ErrorIs(t, err, domain.ErrState)

	_, err = f.svc.VerifyMovie(f.ctx, admin, "missing", domain.VerifyRequest{Decision: domain.DecisionReject})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMovieAndFieldStatusesAreIndependent(t *testing.T) {
	f := newFixture(t)
	m, err := f.svc.CreateMovie(f.ctx, author, domain.CreateMovieRequest{Title: "Alien", Type: domain.MovieTypeMovie})
	require.NoError(t, err)

	c, err := f.svc.SubmitContribution(f.ctx, author, m.ID, domain.FieldGenre, domain.ContributionRequest{
		ElementsToAdd: []json.RawMessage{raw(t, map[string]string{"genre": "HORROR"})},
		Sources:       []string{"imdb.com"},
	})
	require.NoError(t, err)
	_, err = f.svc.VerifyContribution(f.ctx, admin, c.ID, domain.VerifyRequest{Decision: domain.DecisionAccept})
	require.NoError(t, err)

	movie, err := f.svc.GetMovie(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, movie.Status)
	require.Len(t, movie.Fields[domain.FieldGenre], 1)
	assert.Equal(t, domain.StatusAccepted, movie.Fields[domain.FieldGenre][0].Status)
}

func TestSearchMovies(t *testing.T) {
	f := newFixture(t)
	alien := f.acceptedMovie(t, "Alien")
	f.acceptedMovie(t, "Heat")
	_, err := f.svc.CreateMovie(f.ctx, author, domain.CreateMovieRequest{Title: "Alien Pending", Type: domain.MovieTypeMovie})
	require.NoError(t, err)
	f.liveRecord(t, alien.ID, "g1", &domain.Genre{Genre: "HORROR"})

	got, total, err := f.svc.SearchMovies(f.ctx, store.MovieListParams{Title: "alien"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, alien.ID, got[0].ID)

	got, _, err = f.svc.SearchMovies(f.ctx, store.MovieListParams{Title: "alien", Status: domain.StatusWaiting})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alien Pending", got[0].Title)

	got, _, err = f.svc.SearchMovies(f.ctx, store.MovieListParams{Genre: "HORROR"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, _, err = f.svc.SearchMovies(f.ctx, store.MovieListParams{SortBy: "title_asc"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alien", got[0].Title)
	assert.Equal(t, "Heat", got[1].Title)

	lo, hi := 8.0, 2.0
	_, _, err = f.svc.SearchMovies(f.ctx, store.MovieListParams{MinRating: &lo, MaxRating: &hi})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFieldHistory(t *testing.T) {
	f := newFixture(t)
	m := f.acceptedMovie(t, "Alien")

	_, err := f.svc.FieldHistory(f.ctx, m.ID, "NOPE")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.FieldHistory(f.ctx, "missing", domain.FieldTitle)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	titles, err := f.svc.FieldHistory(f.ctx, m.ID, domain.FieldTitle)
	require.NoError(t, err)
	assert.Len(t, titles, 1)
}

func TestVerifyMovie_RejectClosesPendingContributions(t *testing.T) {
	f := newFixture(t)
	m, err := f.svc.CreateMovie(f.ctx, author, domain.CreateMovieRequest{Title: "Alien", Type: domain.MovieTypeMovie})
	require.NoError(t, err)
	f.liveRecord(t, m.ID, "g1", &domain.Genre{Genre: "HORROR"})

	added, err := f.svc.SubmitContribution(f.ctx, author, m.ID, domain.FieldGenre, domain.ContributionRequest{
		ElementsToAdd: []json.RawMessage{json.RawMessage(`{"genre":"SCI_FI"}`)},
		Sources:       []string{"imdb.com"},
	})
	require.NoError(t, err)
	removed, err := f.svc.SubmitContribution(f.ctx, rival, m.ID, domain.FieldGenre, domain.ContributionRequest{
		IDsToDelete: []string{"g1"},
		Sources:     []string{"imdb.com"},
	})
	require.NoError(t, err)
	require.True(t, f.record(t, "g1").ReportedForDelete)

	_, err = f.svc.VerifyMovie(f.ctx, newMovies, m.ID, domain.VerifyRequest{Decision: domain.DecisionReject})
	require.NoError(t, err)

	for _, id := range []string{added.ID, removed.ID} {
		c, err := f.svc.GetContribution(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRejected, c.Status)
		assert.Equal(t, "new-mod", c.VerifierID)
		require.NotNil(t, c.VerifiedAt)
	}
	assert.False(t, f.record(t, "g1").Reported())

	_, err = f.svc.VerifyContribution(f.ctx, admin, added.ID, domain.VerifyRequest{Decision: domain.DecisionAccept})
	assert.ErrorIs(t, err, domain.ErrState)
	genres := f.records(t, m.ID, domain.FieldGenre)
	require.Len(t, genres, 1)
	assert.Equal(t, "g1", genres[0].ID)
}

func TestVerifyMovie_UsesStoredPermissions(t *testing.T) {
	f := newFixture(t)
	m, err := f.svc.CreateMovie(f.ctx, author, domain.CreateMovieRequest{Title: "Alien", Type: domain.MovieTypeMovie})
	require.NoError(t, err)

	forged := domain.Principal{UserID: author.UserID, Permissions: domain.Permissions{domain.PermissionAll}}
	_, err = f.svc.VerifyMovie(f.ctx, forged, m.ID, domain.VerifyRequest{Decision: domain.DecisionAccept})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	movie, err := f.svc.GetMovie(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, movie.Status)
}

func TestGetMovie_CountsFavorites(t *testing.T) {
	f := newFixture(t)
	m := f.acceptedMovie(t, "Alien")

	require.NoError(t, f.store.Update(f.ctx, func(tx store.Tx) error {
		for _, p := range []domain.Principal{author, rival} {
			if err := tx.AddFavorite(f.ctx, &domain.Favorite{UserID: p.UserID, MovieID: m.ID}); err != nil {
				return err
			}
		}
		return nil
	}))

	got, err := f.svc.GetMovie(f.ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.FavoriteCount)
}
