package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"popcorn/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func (t *pgTx) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	err := sqlx.GetContext(ctx, t.ext, &user, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &user, nil
}

const messageColumns = `id, sender_id, recipient_id, subject, text, created_at, read_at, visible_for_sender, visible_for_recipient`

type messageRow struct {
	ID                  string       `db:"id"`
	SenderID            string       `db:"sender_id"`
	RecipientID         string       `db:"recipient_id"`
	Subject             string       `db:"subject"`
	Text                string       `db:"text"`
	CreatedAt           time.Time    `db:"created_at"`
	ReadAt              sql.NullTime `db:"read_at"`
	VisibleForSender    bool         `db:"visible_for_sender"`
	VisibleForRecipient bool         `db:"visible_for_recipient"`
}

func (r messageRow) toDomain() *domain.Message {
	m := &domain.Message{
		ID:                  r.ID,
		SenderID:            r.SenderID,
		RecipientID:         r.RecipientID,
		Subject:             r.Subject,
		Text:                r.Text,
		CreatedAt:           r.CreatedAt,
		VisibleForSender:    r.VisibleForSender,
		VisibleForRecipient: r.VisibleForRecipient,
	}
	if r.ReadAt.Valid {
		readAt := r.ReadAt.Time
		m.ReadAt = &readAt
	}
	return m
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (t *pgTx) CreateMessage(ctx context.Context, m *domain.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = nowUTC()
	}
	query := `INSERT INTO messages (` + messageColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := t.ext.ExecContext(ctx, query,
		m.ID, m.SenderID, m.RecipientID, m.Subject, m.Text, m.CreatedAt, nullTime(m.ReadAt), m.VisibleForSender, m.VisibleForRecipient)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to create message in DB", slog.String("messageID", m.ID), slog.String("error", err.Error()))
		return mapPgError(fmt.Errorf("failed to create message: %w", err))
	}
	return nil
}

func (t *pgTx) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	var row messageRow
	err := sqlx.GetContext(ctx, t.ext, &row, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return row.toDomain(), nil
}

func (t *pgTx) UpdateMessage(ctx context.Context, m *domain.Message) error {
	query := `UPDATE messages SET read_at = $1, visible_for_sender = $2, visible_for_recipient = $3 WHERE id = $4`
	res, err := t.ext.ExecContext(ctx, query, nullTime(m.ReadAt), m.VisibleForSender, m.VisibleForRecipient, m.ID)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to update message in DB", slog.String("messageID", m.ID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to update message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (t *pgTx) ListMessages(ctx context.Context, params MessageListParams) ([]*domain.Message, error) {
	var owner string
	switch params.Mailbox {
	case domain.MailboxSent:
		owner = `sender_id = $1 AND visible_for_sender`
	case domain.MailboxReceived:
		owner = `recipient_id = $1 AND visible_for_recipient`
	default:
		return nil, fmt.Errorf("%w: unknown mailbox %q", domain.ErrValidation, params.Mailbox)
	}
	query := `SELECT ` + messageColumns + ` FROM messages WHERE ` + owner
	args := []interface{}{params.UserID}
	if params.Content != "" {
		query += ` AND (LOWER(subject) LIKE LOWER($2) ESCAPE '\' OR LOWER(text) LIKE LOWER($2) ESCAPE '\')`
		args = append(args, containsPattern(params.Content))
	}
	query += ` ORDER BY created_at DESC, id`

	var rows []messageRow
	if err := sqlx.SelectContext(ctx, t.ext, &rows, query, args...); err != nil {
		t.logger.ErrorContext(ctx, "Failed to list messages", slog.String("userID", params.UserID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	out := make([]*domain.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (t *pgTx) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	inv.CreatedAt = nowUTC()
	_, err := t.ext.ExecContext(ctx,
		`INSERT INTO user_invitations (from_user_id, to_user_id, created_at) VALUES ($1, $2, $3)`,
		inv.FromUserID, inv.ToUserID, inv.CreatedAt)
	if err != nil {
		return mapPgError(fmt.Errorf("failed to create invitation: %w", err))
	}
	return nil
}

func (t *pgTx) GetInvitation(ctx context.Context, fromUserID, toUserID string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := sqlx.GetContext(ctx, t.ext, &inv,
		`SELECT from_user_id, to_user_id, created_at FROM user_invitations WHERE from_user_id = $1 AND to_user_id = $2`,
		fromUserID, toUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return &inv, nil
}

func (t *pgTx) DeleteInvitation(ctx context.Context, fromUserID, toUserID string) error {
	res, err := t.ext.ExecContext(ctx,
		`DELETE FROM user_invitations WHERE from_user_id = $1 AND to_user_id = $2`, fromUserID, toUserID)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvitationNotFound
	}
	return nil
}

func (t *pgTx) ListInvitations(ctx context.Context, userID string) ([]*domain.Invitation, []*domain.Invitation, error) {
	var all []*domain.Invitation
	err := sqlx.SelectContext(ctx, t.ext, &all,
		`SELECT from_user_id, to_user_id, created_at FROM user_invitations
         WHERE from_user_id = $1 OR to_user_id = $1 ORDER BY created_at, from_user_id, to_user_id`, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	sent, received := []*domain.Invitation{}, []*domain.Invitation{}
	for _, inv := range all {
		if inv.FromUserID == userID {
			sent = append(sent, inv)
		} else {
			received = append(received, inv)
		}
	}
	return sent, received, nil
}

func (t *pgTx) CreateFriendship(ctx context.Context, userID, friendID string) error {
	_, err := t.ext.ExecContext(ctx,
		`INSERT INTO user_friends (user_id, friend_id, created_at) VALUES ($1, $2, $3), ($2, $1, $3)`,
		userID, friendID, nowUTC())
	if err != nil {
		return mapPgError(fmt.Errorf("failed to create friendship: %w", err))
	}
	return nil
}

func (t *pgTx) DeleteFriendship(ctx context.Context, userID, friendID string) error {
	res, err := t.ext.ExecContext(ctx,
		`DELETE FROM user_friends WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)`,
		userID, friendID)
	if err != nil {
		return fmt.Errorf("failed to delete friendship: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFriendshipNotFound
	}
	return nil
}

func (t *pgTx) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, t.ext, &exists,
		`SELECT EXISTS (SELECT 1 FROM user_friends WHERE user_id = $1 AND friend_id = $2)`, userID, friendID)
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return exists, nil
}

func (t *pgTx) ListFriends(ctx context.Context, userID string) ([]*domain.Friendship, error) {
	out := []*domain.Friendship{}
	err := sqlx.SelectContext(ctx, t.ext, &out,
		`SELECT user_id, friend_id, created_at FROM user_friends WHERE user_id = $1 ORDER BY friend_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	return out, nil
}

func (t *pgTx) AddFavorite(ctx context.Context, fav *domain.Favorite) error {
	fav.CreatedAt = nowUTC()
	_, err := t.ext.ExecContext(ctx,
		`INSERT INTO user_favorite_movies (user_id, movie_id, created_at) VALUES ($1, $2, $3)`,
		fav.UserID, fav.MovieID, fav.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrMovieNotFound
		}
		return mapPgError(fmt.Errorf("failed to add favorite: %w", err))
	}
	return nil
}

func (t *pgTx) RemoveFavorite(ctx context.Context, userID, movieID string) error {
	res, err := t.ext.ExecContext(ctx,
		`DELETE FROM user_favorite_movies WHERE user_id = $1 AND movie_id = $2`, userID, movieID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFavoriteNotFound
	}
	return nil
}

func (t *pgTx) ListFavorites(ctx context.Context, userID string) ([]*domain.Favorite, error) {
	out := []*domain.Favorite{}
	err := sqlx.SelectContext(ctx, t.ext, &out,
		`SELECT user_id, movie_id, created_at FROM user_favorite_movies WHERE user_id = $1 ORDER BY created_at DESC, movie_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return out, nil
}

func (t *pgTx) CountFavorites(ctx context.Context, movieID string) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, t.ext, &n, `SELECT COUNT(*) FROM user_favorite_movies WHERE movie_id = $1`, movieID); err != nil {
		return 0, fmt.Errorf("failed to count favorites: %w", err)
	}
	return n, nil
}
