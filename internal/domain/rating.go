package domain

import "time"

// Rating is one user's score for one movie.
type Rating struct {
	MovieID   string    `json:"movie_id" db:"movie_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Rating    int32     `json:"rating" db:"rating"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RateMovieRequest is the body of a rating.
type RateMovieRequest struct {
	Rating int32 `json:"rating" validate:"required,gte=1,lte=10"`
}

// AggregatedRating summarizes the ratings of a movie.
type AggregatedRating struct {
	MovieID       string  `json:"movie_id" db:"movie_id"`
	AverageRating float64 `json:"average_rating" db:"average_rating"`
	RatingCount   int64   `json:"rating_count" db:"rating_count"`
}
