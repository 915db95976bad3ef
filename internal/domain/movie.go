package domain

import (
	"time"
)

// Movie is the aggregate root. Title, Type and Budget mirror the live TITLE, TYPE and BUDGET records.
type Movie struct {
	ID                string                      `json:"id" db:"id"`
	Title             string                      `json:"title" db:"title"`
	Type              MovieType                   `json:"type" db:"type"`
	Budget            *Budget                     `json:"budget,omitempty" db:"-"`
	Status            DataStatus                  `json:"status" db:"status"`
	SubmittedByUserID string                      `json:"submitted_by_user_id" db:"submitted_by_user_id"`
	VerifiedByUserID  string                      `json:"verified_by_user_id,omitempty" db:"verified_by_user_id"`
	Version           int                         `json:"version" db:"version"`
	CreatedAt         time.Time                   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at" db:"updated_at"`
	Fields            map[MovieField][]*MovieInfo `json:"fields,omitempty" db:"-"`
	FavoriteCount     int                         `json:"favorite_count" db:"-"`
}

// MovieInfo is one versioned value of one movie field.
// Payloads are never mutated in place; amending a record swaps its Payload.
type MovieInfo struct {
	ID                string     `json:"id"`
	MovieID           string     `json:"movie_id"`
	Field             MovieField `json:"field"`
	Payload           Payload    `json:"value"`
	Status            DataStatus `json:"status"`
	ReportedForUpdate bool       `json:"reported_for_update"`
	ReportedForDelete bool       `json:"reported_for_delete"`
	Version           int        `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Live reports whether the record is the current accepted value of its field.
func (mi *MovieInfo) Live() bool {
	return mi.Status == StatusAccepted
}

// Reported reports whether an in-flight contribution already targets the record.
func (mi *MovieInfo) Reported() bool {
	return mi.ReportedForUpdate || mi.ReportedForDelete
}

// CreateMovieRequest is the body of a new movie submission.
type CreateMovieRequest struct {
	Title  string    `json:"title" validate:"required,min=1,max=255"`
	Type   MovieType `json:"type" validate:"required,oneof=MOVIE TV_MOVIE SERIES SHORT VIDEO"`
	Budget *Budget   `json:"budget,omitempty" validate:"omitempty"`
}

// VerifyRequest is the body of a moderator verdict.
type VerifyRequest struct {
	Decision Decision `json:"decision" validate:"required,oneof=ACCEPT REJECT"`
	Comment  string   `json:"comment,omitempty" validate:"max=2000"`
}
