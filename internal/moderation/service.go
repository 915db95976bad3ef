// Package moderation implements the contribution workflow: users propose additions, updates and
// deletions of movie field values, moderators accept or reject them, and accepted proposals are
// applied to the versioned field records in one store transaction.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"popcorn/internal/domain"
	"popcorn/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Service runs moderation operations against a store.Store.
type Service struct {
	store     store.Store
	logger    *slog.Logger
	validator *validator.Validate

	now   func() time.Time
	newID func() string
}

// NewService wires a Service.
func NewService(s store.Store, l *slog.Logger, v *validator.Validate) *Service {
	return &Service{
		store:     s,
		logger:    l,
		validator: v,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// requireUser loads the acting user. Permission checks use the stored permissions, not the
// ones the caller's token was issued with.
func requireUser(ctx context.Context, tx store.Tx, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user identity", domain.ErrUnauthorized)
	}
	return tx.GetUser(ctx, userID)
}

// openMovie loads a movie that can still receive contributions.
func openMovie(ctx context.Context, tx store.Tx, movieID string) (*domain.Movie, error) {
	movie, err := tx.GetMovie(ctx, movieID)
	if err != nil {
		return nil, err
	}
	if movie.Status == domain.StatusRejected || movie.Status == domain.StatusDeleted {
		return nil, fmt.Errorf("%w: movie %s is %s", store.ErrMovieNotFound, movieID, movie.Status)
	}
	return movie, nil
}

// logFailure logs at warn for expected domain failures and at error for everything else.
func (s *Service) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, slog.String("error", err.Error()))
	if isDomainError(err) {
		s.logger.WarnContext(ctx, msg, attrs...)
		return
	}
	s.logger.ErrorContext(ctx, msg, attrs...)
}

func isDomainError(err error) bool {
	for _, kind := range []error{
		domain.ErrValidation, domain.ErrConflict, domain.ErrState, domain.ErrForbidden,
		domain.ErrNotFound, domain.ErrConcurrentModification, domain.ErrUnauthorized,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
