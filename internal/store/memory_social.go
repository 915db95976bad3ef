package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"popcorn/internal/domain"
)

func (t *memoryTx) CreateMessage(ctx context.Context, m *domain.Message) error {
	if _, exists := t.state.messages[m.ID]; exists {
		return ErrAlreadyExists
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	t.state.messages[m.ID] = copyMessage(m)
	return nil
}

func (t *memoryTx) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	m, ok := t.state.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return copyMessage(m), nil
}

func (t *memoryTx) UpdateMessage(ctx context.Context, m *domain.Message) error {
	stored, ok := t.state.messages[m.ID]
	if !ok {
		return ErrMessageNotFound
	}
	updated := *stored
	updated.ReadAt = m.ReadAt
	updated.VisibleForSender = m.VisibleForSender
	updated.VisibleForRecipient = m.VisibleForRecipient
	t.state.messages[m.ID] = copyMessage(&updated)
	return nil
}

func (t *memoryTx) ListMessages(ctx context.Context, params MessageListParams) ([]*domain.Message, error) {
	q := strings.ToLower(params.Content)
	out := []*domain.Message{}
	for _, m := range t.state.messages {
		switch params.Mailbox {
		case domain.MailboxSent:
			if m.SenderID != params.UserID || !m.VisibleForSender {
				continue
			}
		case domain.MailboxReceived:
			if m.RecipientID != params.UserID || !m.VisibleForRecipient {
				continue
			}
		default:
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(m.Subject), q) && !strings.Contains(strings.ToLower(m.Text), q) {
			continue
		}
		out = append(out, copyMessage(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memoryTx) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	key := userPair{from: inv.FromUserID, to: inv.ToUserID}
	if _, exists := t.state.invitations[key]; exists {
		return ErrAlreadyExists
	}
	inv.CreatedAt = time.Now().UTC()
	ic := *inv
	t.state.invitations[key] = &ic
	return nil
}

func (t *memoryTx) GetInvitation(ctx context.Context, fromUserID, toUserID string) (*domain.Invitation, error) {
	inv, ok := t.state.invitations[userPair{from: fromUserID, to: toUserID}]
	if !ok {
		return nil, ErrInvitationNotFound
	}
	ic := *inv
	return &ic, nil
}

func (t *memoryTx) DeleteInvitation(ctx context.Context, fromUserID, toUserID string) error {
	key := userPair{from: fromUserID, to: toUserID}
	if _, ok := t.state.invitations[key]; !ok {
		return ErrInvitationNotFound
	}
	delete(t.state.invitations, key)
	return nil
}

func (t *memoryTx) ListInvitations(ctx context.Context, userID string) ([]*domain.Invitation, []*domain.Invitation, error) {
	sent, received := []*domain.Invitation{}, []*domain.Invitation{}
	for _, inv := range t.state.invitations {
		ic := *inv
		if inv.FromUserID == userID {
			sent = append(sent, &ic)
		} else if inv.ToUserID == userID {
			received = append(received, &ic)
		}
	}
	byAge := func(list []*domain.Invitation) {
		sort.Slice(list, func(i, j int) bool {
			if list[i].CreatedAt.Equal(list[j].CreatedAt) {
				if list[i].FromUserID != list[j].FromUserID {
					return list[i].FromUserID < list[j].FromUserID
				}
				return list[i].ToUserID < list[j].ToUserID
			}
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		})
	}
	byAge(sent)
	byAge(received)
	return sent, received, nil
}

func (t *memoryTx) CreateFriendship(ctx context.Context, userID, friendID string) error {
	if _, exists := t.state.friendships[userPair{from: userID, to: friendID}]; exists {
		return ErrAlreadyExists
	}
	now := time.Now().UTC()
	t.state.friendships[userPair{from: userID, to: friendID}] = &domain.Friendship{UserID: userID, FriendID: friendID, CreatedAt: now}
	t.state.friendships[userPair{from: friendID, to: userID}] = &domain.Friendship{UserID: friendID, FriendID: userID, CreatedAt: now}
	return nil
}

func (t *memoryTx) DeleteFriendship(ctx context.Context, userID, friendID string) error {
	if _, ok := t.state.friendships[userPair{from: userID, to: friendID}]; !ok {
		return ErrFriendshipNotFound
	}
	delete(t.state.friendships, userPair{from: userID, to: friendID})
	delete(t.state.friendships, userPair{from: friendID, to: userID})
	return nil
}

func (t *memoryTx) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	_, ok := t.state.friendships[userPair{from: userID, to: friendID}]
	return ok, nil
}

func (t *memoryTx) ListFriends(ctx context.Context, userID string) ([]*domain.Friendship, error) {
	out := []*domain.Friendship{}
	for k, f := range t.state.friendships {
		if k.from == userID {
			fc := *f
			out = append(out, &fc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FriendID < out[j].FriendID })
	return out, nil
}

func (t *memoryTx) AddFavorite(ctx context.Context, fav *domain.Favorite) error {
	key := userPair{from: fav.UserID, to: fav.MovieID}
	if _, exists := t.state.favorites[key]; exists {
		return ErrAlreadyExists
	}
	if _, ok := t.state.movies[fav.MovieID]; !ok {
		return ErrMovieNotFound
	}
	fav.CreatedAt = time.Now().UTC()
	fc := *fav
	t.state.favorites[key] = &fc
	return nil
}

func (t *memoryTx) RemoveFavorite(ctx context.Context, userID, movieID string) error {
	key := userPair{from: userID, to: movieID}
	if _, ok := t.state.favorites[key]; !ok {
		return ErrFavoriteNotFound
	}
	delete(t.state.favorites, key)
	return nil
}

func (t *memoryTx) ListFavorites(ctx context.Context, userID string) ([]*domain.Favorite, error) {
	out := []*domain.Favorite{}
	for k, f := range t.state.favorites {
		if k.from == userID {
			fc := *f
			out = append(out, &fc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].MovieID < out[j].MovieID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memoryTx) CountFavorites(ctx context.Context, movieID string) (int, error) {
	n := 0
	for k := range t.state.favorites {
		if k.to == movieID {
			n++
		}
	}
	return n, nil
}

func copyMessage(m *domain.Message) *domain.Message {
	c := *m
	if m.ReadAt != nil {
		r := *m.ReadAt
		c.ReadAt = &r
	}
	return &c
}
