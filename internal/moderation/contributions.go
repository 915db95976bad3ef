package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"popcorn/internal/domain"
	"popcorn/internal/store"
)

// proposal is a decoded and validated contribution body.
type proposal struct {
	add     []domain.Payload
	update  map[string]domain.Payload
	delete  []string
	sources []string
	comment string
}

// parseProposal decodes the request for field and checks every rule that does not need the store.
func (s *Service) parseProposal(ctx context.Context, field domain.MovieField, req domain.ContributionRequest) (*proposal, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("%w: unknown movie field %q", domain.ErrValidation, field)
	}
	sources := make([]string, 0, len(req.Sources))
	for _, src := range req.Sources {
		if src = strings.TrimSpace(src); src != "" {
			sources = append(sources, src)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: sources required", domain.ErrValidation)
	}
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	p := &proposal{
		update:  make(map[string]domain.Payload, len(req.ElementsToUpdate)),
		sources: sources,
		comment: strings.TrimSpace(req.Comment),
	}
	for _, raw := range req.ElementsToAdd {
		value, err := domain.DecodeValidPayload(ctx, s.validator, field, raw)
		if err != nil {
			return nil, err
		}
		p.add = append(p.add, value)
	}
	for id, raw := range req.ElementsToUpdate {
		if id == "" {
			return nil, fmt.Errorf("%w: empty record id in elements to update", domain.ErrValidation)
		}
		value, err := domain.DecodeValidPayload(ctx, s.validator, field, raw)
		if err != nil {
			return nil, err
		}
		p.update[id] = value
	}
	seen := make(map[string]struct{}, len(req.IDsToDelete))
	for _, id := range req.IDsToDelete {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: record %s listed twice for deletion", domain.ErrValidation, id)
		}
		seen[id] = struct{}{}
		if _, both := p.update[id]; both {
			return nil, fmt.Errorf("%w: record %s is proposed for both update and deletion", domain.ErrConflict, id)
		}
		p.delete = append(p.delete, id)
	}
	sort.Strings(p.delete)

	if len(p.add)+len(p.update)+len(p.delete) == 0 {
		return nil, fmt.Errorf("%w: contribution proposes no change", domain.ErrValidation)
	}
	if field.Required() && (len(p.add) > 0 || len(p.delete) > 0) {
		return nil, fmt.Errorf("%w: %s always holds one value and can only be updated", domain.ErrValidation, field)
	}
	return p, nil
}

// reserveTargets flags every record targeted by p so that no other contribution can target it
// until this one is resolved.
func reserveTargets(ctx context.Context, tx store.Tx, movieID string, field domain.MovieField, p *proposal) error {
	reserve := func(id string, forDelete bool) error {
		mi, err := tx.GetMovieInfo(ctx, id)
		if err != nil {
			return err
		}
		if mi.MovieID != movieID || mi.Field != field || !mi.Live() {
			return fmt.Errorf("%w: no live %s value %s on movie %s", store.ErrMovieInfoNotFound, field, id, movieID)
		}
		if mi.Reported() {
			return fmt.Errorf("%w: record %s already has a pending contribution", domain.ErrConflict, id)
		}
		if forDelete {
			mi.ReportedForDelete = true
		} else {
			mi.ReportedForUpdate = true
		}
		return tx.UpdateMovieInfo(ctx, mi)
	}

	ids := make([]string, 0, len(p.update))
	for id := range p.update {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := reserve(id, false); err != nil {
			return err
		}
	}
	for _, id := range p.delete {
		if err := reserve(id, true); err != nil {
			return err
		}
	}
	return nil
}

// releaseTargets clears the pending flags that c set on its target records.
func releaseTargets(ctx context.Context, tx store.Tx, c *domain.Contribution) error {
	targets := append(c.UpdateTargets(), c.IDsToDelete...)
	for _, id := range targets {
		mi, err := tx.GetMovieInfo(ctx, id)
		if err != nil {
			return err
		}
		if !mi.Reported() {
			continue
		}
		mi.ReportedForUpdate = false
		mi.ReportedForDelete = false
		if err := tx.UpdateMovieInfo(ctx, mi); err != nil {
			return err
		}
	}
	return nil
}

// SubmitContribution stores a WAITING proposal against one field of a movie and flags its target records.
func (s *Service) SubmitContribution(ctx context.Context, who domain.Principal, movieID string, field domain.MovieField, req domain.ContributionRequest) (*domain.Contribution, error) {
	p, err := s.parseProposal(ctx, field, req)
	if err != nil {
		s.logFailure(ctx, "Contribution rejected at submission", err, slog.String("movieID", movieID), slog.String("field", string(field)))
		return nil, err
	}

	c := &domain.Contribution{
		ID:               s.newID(),
		MovieID:          movieID,
		Field:            field,
		OwnerID:          who.UserID,
		ElementsToAdd:    p.add,
		ElementsToUpdate: p.update,
		IDsToDelete:      p.delete,
		Sources:          p.sources,
		UserComment:      p.comment,
		Status:           domain.StatusWaiting,
		CreatedAt:        s.now(),
	}
	err = s.store.Update(ctx, func(tx store.Tx) error {
		if _, err := requireUser(ctx, tx, who.UserID); err != nil {
			return err
		}
		if _, err := openMovie(ctx, tx, movieID); err != nil {
			return err
		}
		if err := reserveTargets(ctx, tx, movieID, field, p); err != nil {
			return err
		}
		return tx.CreateContribution(ctx, c)
	})
	if err != nil {
		s.logFailure(ctx, "Failed to submit contribution", err, slog.String("movieID", movieID), slog.String("field", string(field)))
		return nil, err
	}
	s.logger.InfoContext(ctx, "Contribution submitted",
		slog.String("contributionID", c.ID), slog.String("movieID", movieID), slog.String("field", string(field)),
		slog.String("userID", who.UserID))
	return c, nil
}

// EditContribution replaces the proposal of a WAITING contribution. Only its owner may edit it.
func (s *Service) EditContribution(ctx context.Context, who domain.Principal, contributionID string, req domain.ContributionRequest) (*domain.Contribution, error) {
	var c *domain.Contribution
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		if c, err = tx.GetContribution(ctx, contributionID); err != nil {
			return err
		}
		if c.OwnerID != who.UserID {
			return fmt.Errorf("%w: only the author may edit contribution %s", domain.ErrForbidden, contributionID)
		}
		if c.Status != domain.StatusWaiting {
			return fmt.Errorf("%w: contribution %s is not pending", domain.ErrState, contributionID)
		}
		p, err := s.parseProposal(ctx, c.Field, req)
		if err != nil {
			return err
		}
		if _, err := openMovie(ctx, tx, c.MovieID); err != nil {
			return err
		}
		if err := releaseTargets(ctx, tx, c); err != nil {
			return err
		}
		if err := reserveTargets(ctx, tx, c.MovieID, c.Field, p); err != nil {
			return err
		}
		c.ElementsToAdd = p.add
		c.ElementsToUpdate = p.update
		c.IDsToDelete = p.delete
		c.Sources = p.sources
		c.UserComment = p.comment
		return tx.UpdateContribution(ctx, c)
	})
	if err != nil {
		s.logFailure(ctx, "Failed to edit contribution", err, slog.String("contributionID", contributionID))
		return nil, err
	}
	s.logger.InfoContext(ctx, "Contribution edited", slog.String("contributionID", contributionID))
	return c, nil
}

// GetContribution returns one contribution.
func (s *Service) GetContribution(ctx context.Context, contributionID string) (*domain.Contribution, error) {
	var c *domain.Contribution
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		c, err = tx.GetContribution(ctx, contributionID)
		return err
	})
	return c, err
}

// SearchContributions returns paginated summaries matching every provided filter.
func (s *Service) SearchContributions(ctx context.Context, params store.ContributionListParams) ([]domain.ContributionSummary, int, error) {
	if params.Field != "" && !params.Field.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown movie field %q", domain.ErrValidation, params.Field)
	}
	if params.Status != "" && !params.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, params.Status)
	}
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return nil, 0, fmt.Errorf("%w: date range is inverted", domain.ErrValidation)
	}
	return s.store.SearchContributions(ctx, params)
}
