package domain

import "time"

// Message is a private note from one user to another. Each side hides it from its own
// mailbox independently; the row stays until both have.
type Message struct {
	ID                  string     `json:"id"`
	SenderID            string     `json:"sender_id"`
	RecipientID         string     `json:"recipient_id"`
	Subject             string     `json:"subject"`
	Text                string     `json:"text"`
	CreatedAt           time.Time  `json:"created_at"`
	ReadAt              *time.Time `json:"read_at,omitempty"`
	VisibleForSender    bool       `json:"-"`
	VisibleForRecipient bool       `json:"-"`
}

// Mailbox selects the sent or the received side of a user's messages.
type Mailbox string

const (
	MailboxSent     Mailbox = "SENT"
	MailboxReceived Mailbox = "RECEIVED"
)

// SendMessageRequest addresses a message by the recipient's username.
type SendMessageRequest struct {
	To      string `json:"to" validate:"required,max=50"`
	Subject string `json:"subject" validate:"required,max=255"`
	Text    string `json:"text" validate:"required,max=4000"`
}

// Invitation is a pending friend request.
type Invitation struct {
	FromUserID string    `json:"from_user_id" db:"from_user_id"`
	ToUserID   string    `json:"to_user_id" db:"to_user_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Invitations splits a user's pending requests by direction.
type Invitations struct {
	Sent     []*Invitation `json:"sent"`
	Received []*Invitation `json:"received"`
}

// Friendship is one side of a symmetric relation; FriendID is the other user.
type Friendship struct {
	UserID    string    `json:"user_id" db:"user_id"`
	FriendID  string    `json:"friend_id" db:"friend_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Favorite marks an accepted movie on a user's list.
type Favorite struct {
	UserID    string    `json:"user_id" db:"user_id"`
	MovieID   string    `json:"movie_id" db:"movie_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
