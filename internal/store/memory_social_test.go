package store

import (
	"context"
	"testing"
	"time"

	"popcorn/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_MessagesByMailbox(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(discardLogger())
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		for i, m := range []*domain.Message{
			{ID: "a", SenderID: "u1", RecipientID: "u2", Subject: "Premiere", Text: "tonight", CreatedAt: base},
			{ID: "b", SenderID: "u1", RecipientID: "u2", Subject: "hello", Text: "see the PREMIERE?", CreatedAt: base.Add(time.Minute)},
			{ID: "c", SenderID: "u2", RecipientID: "u1", Subject: "re", Text: "sure", CreatedAt: base.Add(2 * time.Minute)},
		} {
			m.VisibleForSender, m.VisibleForRecipient = true, i != 0
			if err := tx.CreateMessage(ctx, m); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx Tx) error {
		sent, err := tx.ListMessages(ctx, MessageListParams{UserID: "u1", Mailbox: domain.MailboxSent})
		require.NoError(t, err)
		require.Len(t, sent, 2)
		assert.Equal(t, "b", sent[0].ID, "newest first")

		received, err := tx.ListMessages(ctx, MessageListParams{UserID: "u2", Mailbox: domain.MailboxReceived, Content: "premiere"})
		require.NoError(t, err)
		require.Len(t, received, 1, "hidden messages are skipped")
		assert.Equal(t, "b", received[0].ID)

		none, err := tx.ListMessages(ctx, MessageListParams{UserID: "u1", Mailbox: domain.MailboxSent, Content: "nothing"})
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	}))
}

func TestMemoryStore_UpdateMessageOnlyTouchesFlags(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(discardLogger())
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		return tx.CreateMessage(ctx, &domain.Message{ID: "a", SenderID: "u1", RecipientID: "u2", Subject: "s", Text: "t", VisibleForSender: true, VisibleForRecipient: true})
	}))

	readAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		return tx.UpdateMessage(ctx, &domain.Message{ID: "a", Subject: "changed", ReadAt: &readAt, VisibleForSender: false, VisibleForRecipient: true})
	}))

	require.NoError(t, s.View(ctx, func(tx Tx) error {
		m, err := tx.GetMessage(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "s", m.Subject)
		require.NotNil(t, m.ReadAt)
		assert.True(t, readAt.Equal(*m.ReadAt))
		assert.False(t, m.VisibleForSender)
		return nil
	}))

	err := s.Update(ctx, func(tx Tx) error { return tx.UpdateMessage(ctx, &domain.Message{ID: "zz"}) })
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMemoryStore_FriendshipIsSymmetric(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(discardLogger())
	require.NoError(t, s.Update(ctx, func(tx Tx) error { return tx.CreateFriendship(ctx, "u1", "u2") }))

	err := s.Update(ctx, func(tx Tx) error { return tx.CreateFriendship(ctx, "u2", "u1") })
	assert.ErrorIs(t, err, ErrAlreadyExists)

	require.NoError(t, s.View(ctx, func(tx Tx) error {
		ok, err := tx.AreFriends(ctx, "u2", "u1")
		require.NoError(t, err)
		assert.True(t, ok)
		friends, err := tx.ListFriends(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, friends, 1)
		assert.Equal(t, "u1", friends[0].FriendID)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx Tx) error { return tx.DeleteFriendship(ctx, "u2", "u1") }))
	require.NoError(t, s.View(ctx, func(tx Tx) error {
		ok, err := tx.AreFriends(ctx, "u1", "u2")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
	err = s.Update(ctx, func(tx Tx) error { return tx.DeleteFriendship(ctx, "u1", "u2") })
	assert.ErrorIs(t, err, ErrFriendshipNotFound)
}

func TestMemoryStore_Invitations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(discardLogger())
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		if err := tx.CreateInvitation(ctx, &domain.Invitation{FromUserID: "u1", ToUserID: "u2"}); err != nil {
			return err
		}
		return tx.CreateInvitation(ctx, &domain.Invitation{FromUserID: "u3", ToUserID: "u1"})
	}))

	err := s.Update(ctx, func(tx Tx) error {
		return tx.CreateInvitation(ctx, &domain.Invitation{FromUserID: "u1", ToUserID: "u2"})
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	require.NoError(t, s.View(ctx, func(tx Tx) error {
		sent, received, err := tx.ListInvitations(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, sent, 1)
		require.Len(t, received, 1)
		assert.Equal(t, "u2", sent[0].ToUserID)
		assert.Equal(t, "u3", received[0].FromUserID)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx Tx) error { return tx.DeleteInvitation(ctx, "u1", "u2") }))
	err = s.View(ctx, func(tx Tx) error {
		_, err := tx.GetInvitation(ctx, "u1", "u2")
		return err
	})
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestMemoryStore_Favorites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(discardLogger())
	seedMovie(t, s, "m1")

	err := s.Update(ctx, func(tx Tx) error {
		return tx.AddFavorite(ctx, &domain.Favorite{UserID: "u1", MovieID: "missing"})
	})
	assert.ErrorIs(t, err, ErrMovieNotFound)

	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		if err := tx.AddFavorite(ctx, &domain.Favorite{UserID: "u1", MovieID: "m1"}); err != nil {
			return err
		}
		return tx.AddFavorite(ctx, &domain.Favorite{UserID: "u2", MovieID: "m1"})
	}))
	err = s.Update(ctx, func(tx Tx) error {
		return tx.AddFavorite(ctx, &domain.Favorite{UserID: "u1", MovieID: "m1"})
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	require.NoError(t, s.View(ctx, func(tx Tx) error {
		n, err := tx.CountFavorites(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		favs, err := tx.ListFavorites(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, favs, 1)
		assert.Equal(t, "m1", favs[0].MovieID)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx Tx) error { return tx.RemoveFavorite(ctx, "u1", "m1") }))
	err = s.Update(ctx, func(tx Tx) error { return tx.RemoveFavorite(ctx, "u1", "m1") })
	assert.ErrorIs(t, err, ErrFavoriteNotFound)
}
