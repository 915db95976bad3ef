package moderation

import (
	"context"
	"fmt"
	"log/slog"

	"popcorn/internal/domain"
	"popcorn/internal/store"
)

// VerifyContribution accepts or rejects a WAITING contribution. Acceptance applies every proposed
// change to the movie's records; the whole operation commits or fails as one transaction.
func (s *Service) VerifyContribution(ctx context.Context, who domain.Principal, contributionID string, req domain.VerifyRequest) (*domain.Contribution, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var c *domain.Contribution
	err := s.store.Update(ctx, func(tx store.Tx) error {
		user, err := requireUser(ctx, tx, who.UserID)
		if err != nil {
			return err
		}
		if c, err = tx.GetContribution(ctx, contributionID); err != nil {
			return err
		}
		if c.Status != domain.StatusWaiting {
			return fmt.Errorf("%w: contribution %s is not pending (%s)", domain.ErrState, contributionID, c.Status)
		}
		if !domain.CanVerify(user.MoviePermissions(), c.Field) {
			return fmt.Errorf("%w: verifying %s contributions requires one of %v", domain.ErrForbidden, c.Field, c.Field.RequiredPermissions())
		}

		target := domain.StatusRejected
		if req.Decision == domain.DecisionAccept {
			target = domain.StatusAccepted
			if err := s.apply(ctx, tx, c); err != nil {
				return err
			}
		} else if err := releaseTargets(ctx, tx, c); err != nil {
			return err
		}

		if c.Status, err = domain.Transition(c.Status, target); err != nil {
			return err
		}
		verifiedAt := s.now()
		c.VerifiedAt = &verifiedAt
		c.VerifierID = who.UserID
		c.VerificationComment = req.Comment
		return tx.UpdateContribution(ctx, c)
	})
	if err != nil {
		s.logFailure(ctx, "Failed to verify contribution", err,
			slog.String("contributionID", contributionID), slog.String("userID", who.UserID))
		return nil, err
	}
	s.logger.InfoContext(ctx, "Contribution verified",
		slog.String("contributionID", contributionID), slog.String("status", string(c.Status)),
		slog.String("verifierID", who.UserID))
	return c, nil
}

// apply writes the accepted proposal of c to the movie records and fills AddedIDs and ElementsUpdated.
func (s *Service) apply(ctx context.Context, tx store.Tx, c *domain.Contribution) error {
	movie, err := openMovie(ctx, tx, c.MovieID)
	if err != nil {
		return err
	}

	c.AddedIDs = nil
	for _, value := range c.ElementsToAdd {
		id, err := s.createRecord(ctx, tx, c, value, domain.StatusAccepted)
		if err != nil {
			return err
		}
		c.AddedIDs = append(c.AddedIDs, id)
	}

	c.ElementsUpdated = make(map[string]string, len(c.ElementsToUpdate))
	for _, id := range c.UpdateTargets() {
		old, err := s.targetRecord(ctx, tx, c, id)
		if err != nil {
			return err
		}
		value := c.ElementsToUpdate[id]
		old.ReportedForUpdate = false

		if c.Field.Amendable() {
			// the live record keeps its id and takes the new value; the proposed value is kept as a snapshot
			snapshot, err := s.createRecord(ctx, tx, c, value, domain.StatusAmendmentAccepted)
			if err != nil {
				return err
			}
			old.Payload = value
			if err := tx.UpdateMovieInfo(ctx, old); err != nil {
				return err
			}
			c.ElementsUpdated[id] = snapshot
			continue
		}

		old.Status = domain.StatusEdited
		if err := tx.UpdateMovieInfo(ctx, old); err != nil {
			return err
		}
		replacement, err := s.createRecord(ctx, tx, c, value, domain.StatusAccepted)
		if err != nil {
			return err
		}
		c.ElementsUpdated[id] = replacement
	}

	for _, id := range c.IDsToDelete {
		old, err := s.targetRecord(ctx, tx, c, id)
		if err != nil {
			return err
		}
		old.Status = domain.StatusDeleted
		old.ReportedForDelete = false
		if err := tx.UpdateMovieInfo(ctx, old); err != nil {
			return err
		}
	}

	return syncMovieScalars(ctx, tx, movie, c.Field)
}

func (s *Service) createRecord(ctx context.Context, tx store.Tx, c *domain.Contribution, value domain.Payload, status domain.DataStatus) (string, error) {
	info := &domain.MovieInfo{
		ID:      s.newID(),
		MovieID: c.MovieID,
		Field:   c.Field,
		Payload: value,
		Status:  status,
	}
	if err := tx.CreateMovieInfo(ctx, info); err != nil {
		return "", err
	}
	return info.ID, nil
}

// targetRecord loads a record that c reserved. It must still be live.
func (s *Service) targetRecord(ctx context.Context, tx store.Tx, c *domain.Contribution, id string) (*domain.MovieInfo, error) {
	mi, err := tx.GetMovieInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	if mi.MovieID != c.MovieID || mi.Field != c.Field {
		return nil, fmt.Errorf("%w: record %s does not belong to %s of movie %s", store.ErrMovieInfoNotFound, id, c.Field, c.MovieID)
	}
	if !mi.Live() {
		return nil, fmt.Errorf("%w: record %s is %s and cannot be changed", domain.ErrState, id, mi.Status)
	}
	return mi, nil
}

// syncMovieScalars copies the live TITLE, TYPE or BUDGET value back onto the movie row.
func syncMovieScalars(ctx context.Context, tx store.Tx, movie *domain.Movie, field domain.MovieField) error {
	if field != domain.FieldTitle && field != domain.FieldType && field != domain.FieldBudget {
		return nil
	}
	infos, err := tx.ListMovieInfos(ctx, movie.ID, field)
	if err != nil {
		return err
	}
	var current domain.Payload
	for _, mi := range infos {
		if mi.Live() {
			current = mi.Payload
		}
	}

	switch v := current.(type) {
	case *domain.Title:
		movie.Title = v.Title
	case *domain.TypeValue:
		movie.Type = v.Type
	case *domain.Budget:
		b := *v
		movie.Budget = &b
	case nil:
		if field != domain.FieldBudget {
			return fmt.Errorf("%w: movie %s has no live %s value", domain.ErrState, movie.ID, field)
		}
		movie.Budget = nil
	}
	return tx.UpdateMovie(ctx, movie)
}
