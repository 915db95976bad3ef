// Package ratings stores one score per user per movie and aggregates them.
package ratings

import (
	"context"
	"fmt"
	"log/slog"

	"popcorn/internal/domain"
	"popcorn/internal/store"

	"github.com/go-playground/validator/v10"
)

type Service struct {
	store     store.Store
	logger    *slog.Logger
	validator *validator.Validate
}

func NewService(s store.Store, l *slog.Logger, v *validator.Validate) *Service {
	return &Service{store: s, logger: l, validator: v}
}

// RateMovie records or replaces the caller's rating of an accepted movie.
func (s *Service) RateMovie(ctx context.Context, who domain.Principal, movieID string, req domain.RateMovieRequest) (*domain.Rating, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	rating := &domain.Rating{MovieID: movieID, UserID: who.UserID, Rating: req.Rating}

	err := s.store.Update(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, who.UserID); err != nil {
			return err
		}
		movie, err := tx.GetMovie(ctx, movieID)
		if err != nil {
			return err
		}
		if movie.Status != domain.StatusAccepted {
			return fmt.Errorf("%w: movie %s is %s", store.ErrMovieNotFound, movieID, movie.Status)
		}
		return tx.UpsertRating(ctx, rating)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to rate movie", slog.String("movieID", movieID), slog.String("userID", who.UserID), slog.String("error", err.Error()))
		return nil, err
	}
	s.logger.InfoContext(ctx, "Movie rated", slog.String("movieID", movieID), slog.String("userID", who.UserID), slog.Int("rating", int(req.Rating)))
	return rating, nil
}

// MovieRating returns the average and count of a movie's ratings.
func (s *Service) MovieRating(ctx context.Context, movieID string) (*domain.AggregatedRating, error) {
	var agg *domain.AggregatedRating
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetMovie(ctx, movieID); err != nil {
			return err
		}
		var err error
		agg, err = tx.MovieRating(ctx, movieID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}
