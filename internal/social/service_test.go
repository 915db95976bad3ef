package social

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"popcorn/internal/domain"
	"popcorn/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	kane   = domain.Principal{UserID: "kane"}
	ripley = domain.Principal{UserID: "ripley"}
	ash    = domain.Principal{UserID: "ash"}
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	st := store.NewMemoryStore(logger)
	require.NoError(t, st.Update(ctx, func(tx store.Tx) error {
		for _, p := range []domain.Principal{kane, ripley, ash} {
			if err := tx.CreateUser(ctx, &domain.User{ID: p.UserID, Username: p.UserID, Email: p.UserID + "@example.com"}); err != nil {
				return err
			}
		}
		if err := tx.CreateMovie(ctx, &domain.Movie{ID: "live", Title: "Alien", Type: domain.MovieTypeMovie, Status: domain.StatusAccepted}); err != nil {
			return err
		}
		return tx.CreateMovie(ctx, &domain.Movie{ID: "pending", Title: "Aliens", Type: domain.MovieTypeMovie, Status: domain.StatusWaiting})
	}))
	svc := NewService(st, logger, validator.New())
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, st
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.SendMessage(ctx, kane, domain.SendMessageRequest{To: "ripley", Subject: "hi"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.SendMessage(ctx, kane, domain.SendMessageRequest{To: "nobody", Subject: "hi", Text: "there"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.SendMessage(ctx, kane, domain.SendMessageRequest{To: "KANE", Subject: "hi", Text: "me"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	msg, err := svc.SendMessage(ctx, kane, domain.SendMessageRequest{To: "Ripley", Subject: "dinner", Text: "before the sleep"})
	require.NoError(t, err)
	assert.Equal(t, "ripley", msg.RecipientID)
	assert.Nil(t, msg.ReadAt)
}

func TestReceivedMessageMarksRead(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	msg, err := svc.SendMessage(ctx, kane, domain.SendMessageRequest{To: "ripley", Subject: "dinner", Text: "now"})
	require.NoError(t, err)

	_, err = svc.ReceivedMessage(ctx, ash, msg.ID)
	assert.ErrorIs(t, err, store.ErrMessageNotFound, "other users cannot read it")
	_, err = svc.ReceivedMessage(ctx, kane, msg.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "the sender has no received copy")

	first, err := svc.ReceivedMessage(ctx, ripley, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ReadAt)

	again, err := svc.ReceivedMessage(ctx, ripley, msg.ID)
	require.NoError(t, err)
	assert.True(t, first.ReadAt.Equal(*again.ReadAt), "read time is set once")

	sent, err := svc.SentMessage(ctx, kane, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, sent.ReadAt)
}

func TestDeleteMessageIsPerMailbox(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	msg, err := svc.SendMessage(ctx, kane, domain.SendMessageRequest{To: "ripley", Subject: "Mother", Text: "special order"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteReceivedMessage(ctx, kane, msg.ID), domain.ErrNotFound)
	require.NoError(t, svc.DeleteSentMessage(ctx, kane, msg.ID))

	sent, err := svc.SentMessages(ctx, kane, "")
	require.NoError(t, err)
	assert.Empty(t, sent)
	_, err = svc.SentMessage(ctx, kane, msg.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	received, err := svc.ReceivedMessages(ctx, ripley, "ORDER")
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, msg.ID, received[0].ID)

	require.NoError(t, svc.DeleteReceivedMessage(ctx, ripley, msg.ID))
	assert.ErrorIs(t, svc.DeleteReceivedMessage(ctx, ripley, msg.ID), domain.ErrNotFound)
}

func TestInvite(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Invite(ctx, kane, "kane")
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = svc.Invite(ctx, kane, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Invite(ctx, kane, "ripley")
	require.NoError(t, err)
	_, err = svc.Invite(ctx, kane, "ripley")
	assert.ErrorIs(t, err, domain.ErrConflict, "already invited")
	_, err = svc.Invite(ctx, ripley, "kane")
	assert.ErrorIs(t, err, domain.ErrConflict, "pending the other way")

	invs, err := svc.Invitations(ctx, ripley)
	require.NoError(t, err)
	assert.Empty(t, invs.Sent)
	require.Len(t, invs.Received, 1)
	assert.Equal(t, "kane", invs.Received[0].FromUserID)

	require.NoError(t, svc.AcceptInvitation(ctx, ripley, "kane"))
	_, err = svc.Invite(ctx, kane, "ripley")
	assert.ErrorIs(t, err, domain.ErrConflict, "already friends")
}

func TestAcceptInvitationMakesFriends(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	assert.ErrorIs(t, svc.AcceptInvitation(ctx, ripley, "kane"), store.ErrInvitationNotFound)

	_, err := svc.Invite(ctx, kane, "ripley")
	require.NoError(t, err)
	require.NoError(t, svc.AcceptInvitation(ctx, ripley, "kane"))

	for _, p := range []domain.Principal{kane, ripley} {
		friends, err := svc.Friends(ctx, p)
		require.NoError(t, err)
		require.Len(t, friends, 1)
	}
	invs, err := svc.Invitations(ctx, kane)
	require.NoError(t, err)
	assert.Empty(t, invs.Sent)

	require.NoError(t, svc.RemoveFriend(ctx, kane, "ripley"))
	friends, err := svc.Friends(ctx, ripley)
	require.NoError(t, err)
	assert.Empty(t, friends)
	assert.ErrorIs(t, svc.RemoveFriend(ctx, ripley, "kane"), domain.ErrNotFound)
}

func TestCancelAndRejectInvitation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Invite(ctx, kane, "ripley")
	require.NoError(t, err)
	_, err = svc.Invite(ctx, ash, "ripley")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.CancelInvitation(ctx, ripley, "kane"), domain.ErrNotFound, "only the sender cancels")
	require.NoError(t, svc.CancelInvitation(ctx, kane, "ripley"))
	require.NoError(t, svc.RejectInvitation(ctx, ripley, "ash"))
	assert.ErrorIs(t, svc.RejectInvitation(ctx, ripley, "ash"), domain.ErrNotFound)

	invs, err := svc.Invitations(ctx, ripley)
	require.NoError(t, err)
	assert.Empty(t, invs.Received)
	friends, err := svc.Friends(ctx, ripley)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.AddFavorite(ctx, kane, "pending")
	assert.ErrorIs(t, err, store.ErrMovieNotFound)
	_, err = svc.AddFavorite(ctx, kane, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.AddFavorite(ctx, kane, "live")
	require.NoError(t, err)
	_, err = svc.AddFavorite(ctx, kane, "live")
	assert.ErrorIs(t, err, domain.ErrConflict)

	favs, err := svc.Favorites(ctx, kane)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "live", favs[0].MovieID)

	require.NoError(t, svc.RemoveFavorite(ctx, kane, "live"))
	assert.ErrorIs(t, svc.RemoveFavorite(ctx, kane, "live"), domain.ErrConflict)
	assert.ErrorIs(t, svc.RemoveFavorite(ctx, kane, "missing"), domain.ErrNotFound)
}

func TestUnknownCallerIsRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Friends(ctx, domain.Principal{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Favorites(ctx, domain.Principal{UserID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
