package moderation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"popcorn/internal/domain"
	"popcorn/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

var (
	author    = domain.Principal{UserID: "author"}
	rival     = domain.Principal{UserID: "rival"}
	admin     = domain.Principal{UserID: "admin", Permissions: domain.Permissions{domain.PermissionAll}}
	boxMod    = domain.Principal{UserID: "box-mod", Permissions: domain.Permissions{domain.PermissionBoxOffice}}
	newMovies = domain.Principal{UserID: "new-mod", Permissions: domain.Permissions{domain.PermissionNewMovie}}
)

type fixture struct {
	ctx   context.Context
	store *store.MemoryStore
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	st := store.NewMemoryStore(logger)
	f := &fixture{
		ctx:   context.Background(),
		store: st,
		svc:   NewService(st, logger, validator.New()),
	}
	require.NoError(t, st.Update(f.ctx, func(tx store.Tx) error {
		for _, p := range []domain.Principal{author, rival, admin, boxMod, newMovies} {
			err := tx.CreateUser(f.ctx, &domain.User{
				ID:          p.UserID,
				Username:    p.UserID,
				Email:       p.UserID + "@example.com",
				Permissions: p.Permissions.Strings(),
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))
	return f
}

// acceptedMovie creates a movie and approves it.
func (f *fixture) acceptedMovie(t *testing.T, title string) *domain.Movie {
	t.Helper()
	m, err := f.svc.CreateMovie(f.ctx, author, domain.CreateMovieRequest{Title: title, Type: domain.MovieTypeMovie})
	require.NoError(t, err)
	m, err = f.svc.VerifyMovie(f.ctx, newMovies, m.ID, domain.VerifyRequest{Decision: domain.DecisionAccept})
	require.NoError(t, err)
	return m
}

// liveRecord stores an ACCEPTED record directly, as if an earlier contribution had been accepted.
func (f *fixture) liveRecord(t *testing.T, movieID, id string, value domain.Payload) {
	t.Helper()
	require.NoError(t, f.store.Update(f.ctx, func(tx store.Tx) error {
		return tx.CreateMovieInfo(f.ctx, &domain.MovieInfo{
			ID: id, MovieID: movieID, Field: value.Field(), Payload: value, Status: domain.StatusAccepted,
		})
	}))
}

func (f *fixture) record(t *testing.T, id string) *domain.MovieInfo {
	t.Helper()
	var mi *domain.MovieInfo
	require.NoError(t, f.store.View(f.ctx, func(tx store.Tx) error {
		var err error
		mi, err = tx.GetMovieInfo(f.ctx, id)
		return err
	}))
	return mi
}

func (f *fixture) records(t *testing.T, movieID string, field domain.MovieField) []*domain.MovieInfo {
	t.Helper()
	infos, err := f.svc.FieldHistory(f.ctx, movieID, field)
	require.NoError(t, err)
	return infos
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func boxOffice(t *testing.T, amount int64, country string) json.RawMessage {
	return raw(t, map[string]any{"amount": amount, "country": country})
}
