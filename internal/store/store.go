package store

import (
	"context"
	"fmt"
	"time"

	"popcorn/internal/domain"
)

// Store errors wrap the domain kinds so callers can match either.
var (
	ErrMovieNotFound        = fmt.Errorf("movie %w", domain.ErrNotFound)
	ErrMovieInfoNotFound    = fmt.Errorf("movie info record %w", domain.ErrNotFound)
	ErrContributionNotFound = fmt.Errorf("contribution %w", domain.ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("user %w", domain.ErrNotFound)
	ErrUserAlreadyExists    = fmt.Errorf("user with this email or username already exists: %w", domain.ErrConflict)
	ErrAlreadyExists        = fmt.Errorf("record already exists: %w", domain.ErrConflict)
	ErrStaleVersion         = fmt.Errorf("record was modified by another transaction: %w", domain.ErrConcurrentModification)

	ErrMessageNotFound    = fmt.Errorf("message %w", domain.ErrNotFound)
	ErrInvitationNotFound = fmt.Errorf("invitation %w", domain.ErrNotFound)
	ErrFriendshipNotFound = fmt.Errorf("friendship %w", domain.ErrNotFound)
	ErrFavoriteNotFound   = fmt.Errorf("favorite %w", domain.ErrNotFound)
)

// ContributionListParams narrows a contribution search. Zero values are ignored;
// From and To bound the creation time inclusively.
type ContributionListParams struct {
	Page     int
	PageSize int
	MovieID  string
	Field    domain.MovieField
	Status   domain.DataStatus
	From     *time.Time
	To       *time.Time
}

// MovieListParams narrows a movie search. Zero values are ignored.
type MovieListParams struct {
	Page      int
	PageSize  int
	Title     string
	Type      domain.MovieType
	Genre     string
	Country   string
	Language  string
	FromDate  *time.Time
	ToDate    *time.Time
	MinRating *float64
	MaxRating *float64
	SortBy    string
	Status    domain.DataStatus
}

// MessageListParams selects one mailbox of a user. Content, when set, must occur in the
// subject or the text, ignoring case. Hidden messages are never listed.
type MessageListParams struct {
	UserID  string
	Mailbox domain.Mailbox
	Content string
}

// Tx is the set of finders and writers available inside one unit of work.
// Update methods compare the caller's Version with the stored one, fail with
// ErrStaleVersion on mismatch and bump Version on success.
type Tx interface {
	GetMovie(ctx context.Context, id string) (*domain.Movie, error)
	CreateMovie(ctx context.Context, movie *domain.Movie) error
	UpdateMovie(ctx context.Context, movie *domain.Movie) error

	// ListMovieInfos returns every record of the movie for field, or for all fields when field is empty.
	ListMovieInfos(ctx context.Context, movieID string, field domain.MovieField) ([]*domain.MovieInfo, error)
	GetMovieInfo(ctx context.Context, id string) (*domain.MovieInfo, error)
	CreateMovieInfo(ctx context.Context, info *domain.MovieInfo) error
	UpdateMovieInfo(ctx context.Context, info *domain.MovieInfo) error

	GetContribution(ctx context.Context, id string) (*domain.Contribution, error)
	CreateContribution(ctx context.Context, c *domain.Contribution) error
	UpdateContribution(ctx context.Context, c *domain.Contribution) error
	// ListContributions returns the contributions of a movie with the given status, oldest first.
	ListContributions(ctx context.Context, movieID string, status domain.DataStatus) ([]*domain.Contribution, error)

	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetUserByUsername matches the username ignoring case.
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
	UpdateUser(ctx context.Context, user *domain.User) error

	UpsertRating(ctx context.Context, rating *domain.Rating) error
	MovieRating(ctx context.Context, movieID string) (*domain.AggregatedRating, error)

	CreateMessage(ctx context.Context, m *domain.Message) error
	GetMessage(ctx context.Context, id string) (*domain.Message, error)
	// UpdateMessage stores the read time and the visibility flags; subject and text never change.
	UpdateMessage(ctx context.Context, m *domain.Message) error
	// ListMessages returns the matching messages, newest first.
	ListMessages(ctx context.Context, params MessageListParams) ([]*domain.Message, error)

	CreateInvitation(ctx context.Context, inv *domain.Invitation) error
	GetInvitation(ctx context.Context, fromUserID, toUserID string) (*domain.Invitation, error)
	DeleteInvitation(ctx context.Context, fromUserID, toUserID string) error
	// ListInvitations returns what userID sent and what it received, oldest first.
	ListInvitations(ctx context.Context, userID string) (sent, received []*domain.Invitation, err error)

	// CreateFriendship links both users; either order of arguments is the same friendship.
	CreateFriendship(ctx context.Context, userID, friendID string) error
	DeleteFriendship(ctx context.Context, userID, friendID string) error
	AreFriends(ctx context.Context, userID, friendID string) (bool, error)
	ListFriends(ctx context.Context, userID string) ([]*domain.Friendship, error)

	AddFavorite(ctx context.Context, fav *domain.Favorite) error
	RemoveFavorite(ctx context.Context, userID, movieID string) error
	ListFavorites(ctx context.Context, userID string) ([]*domain.Favorite, error)
	CountFavorites(ctx context.Context, movieID string) (int, error)
}

// Store is the persistence collaborator. Update runs fn as one transaction: when fn
// returns an error nothing it wrote is kept. View runs read-only work and fn must not write.
type Store interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error

	SearchContributions(ctx context.Context, params ContributionListParams) ([]domain.ContributionSummary, int, error)
	SearchMovies(ctx context.Context, params MovieListParams) ([]*domain.Movie, int, error)

	Close() error
}

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	} else if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
