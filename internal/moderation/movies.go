package moderation

import (
	"context"
	"fmt"
	"log/slog"

	"popcorn/internal/domain"
	"popcorn/internal/store"
)

// CreateMovie records a new movie submission. The movie starts WAITING; its TITLE, TYPE and optional
// BUDGET values are stored as accepted records right away.
func (s *Service) CreateMovie(ctx context.Context, who domain.Principal, req domain.CreateMovieRequest) (*domain.Movie, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	movie := &domain.Movie{
		ID:                s.newID(),
		Title:             req.Title,
		Type:              req.Type,
		Budget:            req.Budget,
		Status:            domain.StatusWaiting,
		SubmittedByUserID: who.UserID,
	}
	initial := []domain.Payload{
		&domain.Title{Title: req.Title},
		&domain.TypeValue{Type: req.Type},
	}
	if req.Budget != nil {
		b := *req.Budget
		initial = append(initial, &b)
	}

	err := s.store.Update(ctx, func(tx store.Tx) error {
		if _, err := requireUser(ctx, tx, who.UserID); err != nil {
			return err
		}
		if err := tx.CreateMovie(ctx, movie); err != nil {
			return err
		}
		for _, p := range initial {
			info := &domain.MovieInfo{
				ID:      s.newID(),
				MovieID: movie.ID,
				Field:   p.Field(),
				Payload: p,
				Status:  domain.StatusAccepted,
			}
			if err := tx.CreateMovieInfo(ctx, info); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "Failed to create movie", err, slog.String("userID", who.UserID))
		return nil, err
	}
	s.logger.InfoContext(ctx, "Movie submitted", slog.String("movieID", movie.ID), slog.String("userID", who.UserID))
	return movie, nil
}

// VerifyMovie accepts or rejects a WAITING movie. It needs NEW_MOVIE or ALL.
// Rejecting a movie also rejects every contribution still waiting on it.
func (s *Service) VerifyMovie(ctx context.Context, who domain.Principal, movieID string, req domain.VerifyRequest) (*domain.Movie, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var movie *domain.Movie
	err := s.store.Update(ctx, func(tx store.Tx) error {
		user, err := requireUser(ctx, tx, who.UserID)
		if err != nil {
			return err
		}
		if !domain.CanVerifyMovie(user.MoviePermissions()) {
			return fmt.Errorf("%w: verifying movies requires %s or %s", domain.ErrForbidden, domain.PermissionNewMovie, domain.PermissionAll)
		}
		if movie, err = tx.GetMovie(ctx, movieID); err != nil {
			return err
		}
		target := domain.StatusAccepted
		if req.Decision == domain.DecisionReject {
			target = domain.StatusRejected
		}
		if movie.Status, err = domain.Transition(movie.Status, target); err != nil {
			return err
		}
		movie.VerifiedByUserID = who.UserID
		if err := tx.UpdateMovie(ctx, movie); err != nil {
			return err
		}
		if target == domain.StatusRejected {
			return s.closePending(ctx, tx, movieID, who.UserID)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "Failed to verify movie", err, slog.String("movieID", movieID), slog.String("userID", who.UserID))
		return nil, err
	}
	s.logger.InfoContext(ctx, "Movie verified", slog.String("movieID", movieID), slog.String("status", string(movie.Status)))
	return movie, nil
}

// closePending rejects the WAITING contributions of a rejected movie and clears their record flags.
func (s *Service) closePending(ctx context.Context, tx store.Tx, movieID, verifierID string) error {
	pending, err := tx.ListContributions(ctx, movieID, domain.StatusWaiting)
	if err != nil {
		return err
	}
	for _, c := range pending {
		if err := releaseTargets(ctx, tx, c); err != nil {
			return err
		}
		if c.Status, err = domain.Transition(c.Status, domain.StatusRejected); err != nil {
			return err
		}
		verifiedAt := s.now()
		c.VerifiedAt = &verifiedAt
		c.VerifierID = verifierID
		c.VerificationComment = "movie rejected"
		if err := tx.UpdateContribution(ctx, c); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		s.logger.InfoContext(ctx, "Pending contributions closed with their movie",
			slog.String("movieID", movieID), slog.Int("count", len(pending)))
	}
	return nil
}

// GetMovie returns the movie with its live field values grouped by field.
func (s *Service) GetMovie(ctx context.Context, movieID string) (*domain.Movie, error) {
	var movie *domain.Movie
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		if movie, err = tx.GetMovie(ctx, movieID); err != nil {
			return err
		}
		infos, err := tx.ListMovieInfos(ctx, movieID, "")
		if err != nil {
			return err
		}
		movie.Fields = make(map[domain.MovieField][]*domain.MovieInfo)
		for _, mi := range infos {
			if mi.Live() {
				movie.Fields[mi.Field] = append(movie.Fields[mi.Field], mi)
			}
		}
		movie.FavoriteCount, err = tx.CountFavorites(ctx, movieID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return movie, nil
}

// FieldHistory returns every record of one field of a movie, whatever its status.
func (s *Service) FieldHistory(ctx context.Context, movieID string, field domain.MovieField) ([]*domain.MovieInfo, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("%w: unknown movie field %q", domain.ErrValidation, field)
	}
	var infos []*domain.MovieInfo
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetMovie(ctx, movieID); err != nil {
			return err
		}
		var err error
		infos, err = tx.ListMovieInfos(ctx, movieID, field)
		return err
	})
	return infos, err
}

// SearchMovies lists movies matching params. Without an explicit status only ACCEPTED movies are returned.
func (s *Service) SearchMovies(ctx context.Context, params store.MovieListParams) ([]*domain.Movie, int, error) {
	if params.Status == "" {
		params.Status = domain.StatusAccepted
	}
	if params.MinRating != nil && params.MaxRating != nil && *params.MinRating > *params.MaxRating {
		return nil, 0, fmt.Errorf("%w: min rating is greater than max rating", domain.ErrValidation)
	}
	if params.FromDate != nil && params.ToDate != nil && params.FromDate.After(*params.ToDate) {
		return nil, 0, fmt.Errorf("%w: release date range is inverted", domain.ErrValidation)
	}
	return s.store.SearchMovies(ctx, params)
}

// PendingMovies lists WAITING movies for a moderator holding NEW_MOVIE or ALL.
func (s *Service) PendingMovies(ctx context.Context, who domain.Principal, params store.MovieListParams) ([]*domain.Movie, int, error) {
	err := s.store.View(ctx, func(tx store.Tx) error {
		user, err := requireUser(ctx, tx, who.UserID)
		if err != nil {
			return err
		}
		if !domain.CanVerifyMovie(user.MoviePermissions()) {
			return fmt.Errorf("%w: listing pending movies requires %s or %s", domain.ErrForbidden, domain.PermissionNewMovie, domain.PermissionAll)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	params.Status = domain.StatusWaiting
	return s.SearchMovies(ctx, params)
}
