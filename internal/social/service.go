// Package social covers what users do with each other: private messages, friend invitations
// and friendships, and favorite movie lists.
package social

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

type Service struct {
	store     store.Store
	logger    *slog.Logger
	validator *validator.Validate

	now   func() time.Time
	newID func() string
}

func NewService(s store.Store, l *slog.Logger, v *validator.Validate) *Service {
	return &Service{
		store:     s,
		logger:    l,
		validator: v,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

func requireUser(ctx context.Context, tx store.Tx, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: missing user identity", domain.ErrUnauthorized)
	}
	_, err := tx.GetUser(ctx, userID)
	return err
}

// SendMessage delivers a message to the user with the given username.
func (s *Service) SendMessage(ctx context.Context, who domain.Principal, req domain.SendMessageRequest) (*domain.Message, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	msg := &domain.Message{
		ID:                  s.newID(),
		SenderID:            who.UserID,
		Subject:             req.Subject,
		Text:                req.Text,
		CreatedAt:           s.now(),
		VisibleForSender:    true,
		VisibleForRecipient: true,
	}
	err := s.store.Update(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, who.UserID); err != nil {
			return err
		}
		recipient, err := tx.GetUserByUsername(ctx, req.To)
		if err != nil {
			return err
		}
		if recipient.ID == who.UserID {
			return fmt.Errorf("%w: cannot send a message to yourself", domain.ErrConflict)
		}
		msg.RecipientID = recipient.ID
		return tx.CreateMessage(ctx, msg)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to send message", slog.String("userID", who.UserID), slog.String("to", req.To), slog.String("error", err.Error()))
		return nil, err
	}
	s.logger.InfoContext(ctx, "Message sent", slog.String("messageID", msg.ID), slog.String("senderID", msg.SenderID), slog.String("recipientID", msg.RecipientID))
	return msg, nil
}

// SentMessage returns one of the caller's sent messages that they have not deleted.
func (s *Service) SentMessage(ctx context.Context, who domain.Principal, id string) (*domain.Message, error) {
	var msg *domain.Message
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		msg, err = ownMessage(ctx, tx, who.UserID, id, domain.MailboxSent)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ReceivedMessage returns one of the caller's received messages and marks it read on first access.
func (s *Service) ReceivedMessage(ctx context.Context, who domain.Principal, id string) (*domain.Message, error) {
	var msg *domain.Message
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		if msg, err = ownMessage(ctx, tx, who.UserID, id, domain.MailboxReceived); err != nil {
			return err
		}
		if msg.ReadAt != nil {
			return nil
		}
		now := s.now()
		msg.ReadAt = &now
		return tx.UpdateMessage(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Service) SentMessages(ctx context.Context, who domain.Principal, content string) ([]*domain.Message, error) {
	return s.listMessages(ctx, store.MessageListParams{UserID: who.UserID, Mailbox: domain.MailboxSent, Content: content})
}

func (s *Service) ReceivedMessages(ctx context.Context, who domain.Principal, content string) ([]*domain.Message, error) {
	return s.listMessages(ctx, store.MessageListParams{UserID: who.UserID, Mailbox: domain.MailboxReceived, Content: content})
}

func (s *Service) listMessages(ctx context.Context, params store.MessageListParams) ([]*domain.Message, error) {
	var out []*domain.Message
	err := s.store.View(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, params.UserID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListMessages(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSentMessage hides a message from the sender's mailbox; the recipient still sees it.
func (s *Service) DeleteSentMessage(ctx context.Context, who domain.Principal, id string) error {
	return s.hideMessage(ctx, who, id, domain.MailboxSent)
}

// DeleteReceivedMessage hides a message from the recipient's mailbox.
func (s *Service) DeleteReceivedMessage(ctx context.Context, who domain.Principal, id string) error {
	return s.hideMessage(ctx, who, id, domain.MailboxReceived)
}

func (s *Service) hideMessage(ctx context.Context, who domain.Principal, id string, box domain.Mailbox) error {
	err := s.store.Update(ctx, func(tx store.Tx) error {
		msg, err := ownMessage(ctx, tx, who.UserID, id, box)
		if err != nil {
			return err
		}
		if box == domain.MailboxSent {
			msg.VisibleForSender = false
		} else {
			msg.VisibleForRecipient = false
		}
		return tx.UpdateMessage(ctx, msg)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to delete message", slog.String("messageID", id), slog.String("userID", who.UserID), slog.String("error", err.Error()))
		return err
	}
	s.logger.InfoContext(ctx, "Message deleted", slog.String("messageID", id), slog.String("userID", who.UserID), slog.String("mailbox", string(box)))
	return nil
}

// ownMessage loads a message visible in userID's mailbox. Other users' messages look missing.
func ownMessage(ctx context.Context, tx store.Tx, userID, id string, box domain.Mailbox) (*domain.Message, error) {
	if err := requireUser(ctx, tx, userID); err != nil {
		return nil, err
	}
	msg, err := tx.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	visible := msg.SenderID == userID && msg.VisibleForSender
	if box == domain.MailboxReceived {
		visible = msg.RecipientID == userID && msg.VisibleForRecipient
	}
	if !visible {
		return nil, store.ErrMessageNotFound
	}
	return msg, nil
}

// Invite sends a friend request to userID.
func (s *Service) Invite(ctx context.Context, who domain.Principal, userID string) (*domain.Invitation, error) {
	inv := &domain.Invitation{FromUserID: who.UserID, ToUserID: userID}
	err := s.store.Update(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, who.UserID); err != nil {
			return err
		}
		if userID == who.UserID {
			return fmt.Errorf("%w: cannot invite yourself", domain.ErrConflict)
		}
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		friends, err := tx.AreFriends(ctx, who.UserID, userID)
		if err != nil {
			return err
		}
		if friends {
			return fmt.Errorf("%w: already friends with %s", domain.ErrConflict, userID)
		}
		if err := noInvitation(ctx, tx, userID, who.UserID); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return fmt.Errorf("%w: %s has already invited you", domain.ErrConflict, userID)
			}
			return err
		}
		return tx.CreateInvitation(ctx, inv)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to invite user", slog.String("userID", who.UserID), slog.String("invitedID", userID), slog.String("error", err.Error()))
		return nil, err
	}
	s.logger.InfoContext(ctx, "Invitation sent", slog.String("userID", who.UserID), slog.String("invitedID", userID))
	return inv, nil
}

// noInvitation fails when from has a pending invitation to to.
func noInvitation(ctx context.Context, tx store.Tx, from, to string) error {
	_, err := tx.GetInvitation(ctx, from, to)
	switch {
	case err == nil:
		return store.ErrAlreadyExists
	case errors.Is(err, store.ErrInvitationNotFound):
		return nil
	default:
		return err
	}
}

// CancelInvitation withdraws the caller's invitation to userID.
func (s *Service) CancelInvitation(ctx context.Context, who domain.Principal, userID string) error {
	return s.dropInvitation(ctx, who, who.UserID, userID, "Invitation cancelled")
}

// RejectInvitation declines userID's invitation to the caller.
func (s *Service) RejectInvitation(ctx context.Context, who domain.Principal, userID string) error {
	return s.dropInvitation(ctx, who, userID, who.UserID, "Invitation rejected")
}

func (s *Service) dropInvitation(ctx context.Context, who domain.Principal, from, to, msg string) error {
	err := s.store.Update(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, who.UserID); err != nil {
			return err
		}
		return tx.DeleteInvitation(ctx, from, to)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, msg, slog.String("fromUserID", from), slog.String("toUserID", to))
	return nil
}

// AcceptInvitation consumes userID's invitation and makes the two users friends.
func (s *Service) AcceptInvitation(ctx context.Context, who domain.Principal, userID string) error {
	err := s.store.Update(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, who.UserID); err != nil {
			return err
		}
		if err := tx.DeleteInvitation(ctx, userID, who.UserID); err != nil {
			return err
		}
		return tx.CreateFriendship(ctx, who.UserID, userID)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to accept invitation", slog.String("userID", who.UserID), slog.String("fromUserID", userID), slog.String("error", err.Error()))
		return err
	}
	s.logger.InfoContext(ctx, "Invitation accepted", slog.String("userID", who.UserID), slog.String("friendID", userID))
	return nil
}

func (s *Service) RemoveFriend(ctx context.Context, who domain.Principal, userID string) error {
	err := s.store.Update(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, who.UserID); err != nil {
			return err
		}
		return tx.DeleteFriendship(ctx, who.UserID, userID)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Friend removed", slog.String("userID", who.UserID), slog.String("friendID", userID))
	return nil
}

func (s *Service) Friends(ctx context.Context, who domain.Principal) ([]*domain.Friendship, error) {
	var out []*domain.Friendship
	err := s.store.View(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, who.UserID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListFriends(ctx, who.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Invitations(ctx context.Context, who domain.Principal) (*domain.Invitations, error) {
	out := &domain.Invitations{}
	err := s.store.View(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, who.UserID); err != nil {
			return err
		}
		var err error
		out.Sent, out.Received, err = tx.ListInvitations(ctx, who.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddFavorite puts an accepted movie on the caller's list.
func (s *Service) AddFavorite(ctx context.Context, who domain.Principal, movieID string) (*domain.Favorite, error) {
	fav := &domain.Favorite{UserID: who.UserID, MovieID: movieID}
	err := s.store.Update(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, who.UserID); err != nil {
			return err
		}
		movie, err := tx.GetMovie(ctx, movieID)
		if err != nil {
			return err
		}
		if movie.Status != domain.StatusAccepted {
			return fmt.Errorf("%w: movie %s is %s", store.ErrMovieNotFound, movieID, movie.Status)
		}
		return tx.AddFavorite(ctx, fav)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to add favorite", slog.String("userID", who.UserID), slog.String("movieID", movieID), slog.String("error", err.Error()))
		return nil, err
	}
	s.logger.InfoContext(ctx, "Favorite added", slog.String("userID", who.UserID), slog.String("movieID", movieID))
	return fav, nil
}

// RemoveFavorite takes a movie off the caller's list. A movie that is not on it is a conflict.
func (s *Service) RemoveFavorite(ctx context.Context, who domain.Principal, movieID string) error {
	err := s.store.Update(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, who.UserID); err != nil {
			return err
		}
		if _, err := tx.GetMovie(ctx, movieID); err != nil {
			return err
		}
		err := tx.RemoveFavorite(ctx, who.UserID, movieID)
		if errors.Is(err, store.ErrFavoriteNotFound) {
			return fmt.Errorf("%w: movie %s is not a favorite", domain.ErrConflict, movieID)
		}
		return err
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Favorite removed", slog.String("userID", who.UserID), slog.String("movieID", movieID))
	return nil
}

func (s *Service) Favorites(ctx context.Context, who domain.Principal) ([]*domain.Favorite, error) {
	var out []*domain.Favorite
	err := s.store.View(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, who.UserID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListFavorites(ctx, who.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
