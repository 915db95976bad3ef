package ratings

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"popcorn/internal/domain"
	"popcorn/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Update(ctx, func(tx store.Tx) error {
		for _, id := range []string{"u1", "u2"} {
			if err := tx.CreateUser(ctx, &domain.User{ID: id, Username: id, Email: id + "@example.com"}); err != nil {
				return err
			}
		}
		if err := tx.CreateMovie(ctx, &domain.Movie{ID: "live", Title: "Alien", Type: domain.MovieTypeMovie, Status: domain.StatusAccepted}); err != nil {
			return err
		}
		return tx.CreateMovie(ctx, &domain.Movie{ID: "pending", Title: "Aliens", Type: domain.MovieTypeMovie, Status: domain.StatusWaiting})
	}))
}

func TestRateMovie(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	st := store.NewMemoryStore(logger)
	seed(t, st)
	svc := NewService(st, logger, validator.New())

	_, err := svc.RateMovie(ctx, domain.Principal{UserID: "u1"}, "live", domain.RateMovieRequest{Rating: 11})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.RateMovie(ctx, domain.Principal{UserID: "u1"}, "pending", domain.RateMovieRequest{Rating: 5})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.RateMovie(ctx, domain.Principal{UserID: "ghost"}, "live", domain.RateMovieRequest{Rating: 5})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.RateMovie(ctx, domain.Principal{UserID: "u1"}, "live", domain.RateMovieRequest{Rating: 4})
	require.NoError(t, err)
	_, err = svc.RateMovie(ctx, domain.Principal{UserID: "u1"}, "live", domain.RateMovieRequest{Rating: 8})
	require.NoError(t, err)
	_, err = svc.RateMovie(ctx, domain.Principal{UserID: "u2"}, "live", domain.RateMovieRequest{Rating: 9})
	require.NoError(t, err)

	agg, err := svc.MovieRating(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, int64(2), agg.RatingCount)
	assert.InDelta(t, 8.5, agg.AverageRating, 0.001)

	_, err = svc.MovieRating(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
