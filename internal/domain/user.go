package domain

import (
	"time"

	"github.com/lib/pq"
)

// User is a registered account. Permissions are moderation capabilities.
type User struct {
	ID           string         `json:"id" db:"id"`
	Username     string         `json:"username" db:"username"`
	Email        string         `json:"email" db:"email"`
	PasswordHash string         `json:"-" db:"password_hash"`
	Permissions  pq.StringArray `json:"permissions" db:"permissions"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// MoviePermissions converts the stored permission names. Unknown names are dropped.
func (u *User) MoviePermissions() Permissions {
	out := make(Permissions, 0, len(u.Permissions))
	for _, raw := range u.Permissions {
		if p := UserMoviePermission(raw); p.Valid() {
			out = append(out, p)
		}
	}
	return out
}

// Principal is the authenticated caller as resolved by the identity collaborator.
type Principal struct {
	UserID      string
	Permissions Permissions
}

// RegisterRequest is the body of a sign-up.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

// LoginRequest is the body of a sign-in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the signed token.
type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// GrantPermissionsRequest replaces a user's permissions.
type GrantPermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"dive,required"`
}
