package store

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"popcorn/internal/domain"
)

type ratingKey struct {
	movieID string
	userID  string
}

// userPair keys directed relations between two users, or a user and a movie for favorites.
type userPair struct {
	from string
	to   string
}

type memoryState struct {
	movies        map[string]*domain.Movie
	infos         map[string]*domain.MovieInfo
	contributions map[string]*domain.Contribution
	users         map[string]*domain.User
	ratings       map[ratingKey]*domain.Rating
	messages      map[string]*domain.Message
	invitations   map[userPair]*domain.Invitation
	friendships   map[userPair]*domain.Friendship
	favorites     map[userPair]*domain.Favorite
}

func newMemoryState() *memoryState {
	return &memoryState{
		movies:        make(map[string]*domain.Movie),
		infos:         make(map[string]*domain.MovieInfo),
		contributions: make(map[string]*domain.Contribution),
		users:         make(map[string]*domain.User),
		ratings:       make(map[ratingKey]*domain.Rating),
		messages:      make(map[string]*domain.Message),
		invitations:   make(map[userPair]*domain.Invitation),
		friendships:   make(map[userPair]*domain.Friendship),
		favorites:     make(map[userPair]*domain.Favorite),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for id, m := range s.movies {
		c.movies[id] = copyMovie(m)
	}
	for id, mi := range s.infos {
		c.infos[id] = copyInfo(mi)
	}
	for id, con := range s.contributions {
		c.contributions[id] = copyContribution(con)
	}
	for id, u := range s.users {
		c.users[id] = copyUser(u)
	}
	for k, r := range s.ratings {
		rc := *r
		c.ratings[k] = &rc
	}
	for id, m := range s.messages {
		c.messages[id] = copyMessage(m)
	}
	for k, inv := range s.invitations {
		ic := *inv
		c.invitations[k] = &ic
	}
	for k, f := range s.friendships {
		fc := *f
		c.friendships[k] = &fc
	}
	for k, f := range s.favorites {
		fc := *f
		c.favorites[k] = &fc
	}
	return c
}

// MemoryStore keeps everything in process memory. Update works on a copy of the state
// and swaps it in only when the callback succeeds.
type MemoryStore struct {
	mu     sync.RWMutex
	state  *memoryState
	logger *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{state: newMemoryState(), logger: logger}
}

// View runs fn against the live state under a read lock.
func (m *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memoryTx{state: m.state})
}

// Update runs fn against a copy of the state and commits the copy if fn succeeds.
func (m *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	working := m.state.clone()
	if err := fn(&memoryTx{state: working}); err != nil {
		m.logger.DebugContext(ctx, "[MEMORY STORE] Transaction rolled back", slog.String("error", err.Error()))
		return err
	}
	m.state = working
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// SearchContributions filters contributions with AND semantics, newest first.
func (m *MemoryStore) SearchContributions(ctx context.Context, params ContributionListParams) ([]domain.ContributionSummary, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.logger.DebugContext(ctx, "[MEMORY STORE] Searching contributions", slog.Any("params", params))

	var matched []domain.ContributionSummary
	for _, c := range m.state.contributions {
		if params.MovieID != "" && c.MovieID != params.MovieID {
			continue
		}
		if params.Field != "" && c.Field != params.Field {
			continue
		}
		if params.Status != "" && c.Status != params.Status {
			continue
		}
		if params.From != nil && c.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && c.CreatedAt.After(*params.To) {
			continue
		}
		matched = append(matched, c.Summary())
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, params.Page, params.PageSize)
}

// SearchMovies filters movies by scalar fields and by their live field records.
func (m *MemoryStore) SearchMovies(ctx context.Context, params MovieListParams) ([]*domain.Movie, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.logger.DebugContext(ctx, "[MEMORY STORE] Searching movies", slog.Any("params", params))

	live := make(map[string][]*domain.MovieInfo)
	for _, mi := range m.state.infos {
		if mi.Live() {
			live[mi.MovieID] = append(live[mi.MovieID], mi)
		}
	}

	var matched []*domain.Movie
	for _, movie := range m.state.movies {
		if params.Status != "" && movie.Status != params.Status {
			continue
		}
		if params.Type != "" && movie.Type != params.Type {
			continue
		}
		infos := live[movie.ID]
		if params.Title != "" && !titleMatches(movie, infos, params.Title) {
			continue
		}
		if params.Genre != "" && !anyInfo(infos, func(p domain.Payload) bool {
			g, ok := p.(*domain.Genre)
			return ok && strings.EqualFold(g.Genre, params.Genre)
		}) {
			continue
		}
		if params.Country != "" && !anyInfo(infos, func(p domain.Payload) bool {
			c, ok := p.(*domain.Country)
			return ok && strings.EqualFold(c.Country, params.Country)
		}) {
			continue
		}
		if params.Language != "" && !anyInfo(infos, func(p domain.Payload) bool {
			l, ok := p.(*domain.Language)
			return ok && strings.EqualFold(l.Language, params.Language)
		}) {
			continue
		}
		if (params.FromDate != nil || params.ToDate != nil) && !anyInfo(infos, func(p domain.Payload) bool {
			rd, ok := p.(*domain.ReleaseDate)
			if !ok {
				return false
			}
			if params.FromDate != nil && rd.Date.Before(*params.FromDate) {
				return false
			}
			return params.ToDate == nil || !rd.Date.After(*params.ToDate)
		}) {
			continue
		}
		if params.MinRating != nil || params.MaxRating != nil {
			agg := aggregateRatings(m.state, movie.ID)
			if agg.RatingCount == 0 {
				continue
			}
			if params.MinRating != nil && agg.AverageRating < *params.MinRating {
				continue
			}
			if params.MaxRating != nil && agg.AverageRating > *params.MaxRating {
				continue
			}
		}
		matched = append(matched, copyMovie(movie))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch params.SortBy {
		case "title_asc":
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		case "title_desc":
			return strings.ToLower(a.Title) > strings.ToLower(b.Title)
		case "created_at_asc":
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
	return paginate(matched, params.Page, params.PageSize)
}

func titleMatches(movie *domain.Movie, infos []*domain.MovieInfo, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(movie.Title), q) {
		return true
	}
	return anyInfo(infos, func(p domain.Payload) bool {
		ot, ok := p.(*domain.OtherTitle)
		return ok && strings.Contains(strings.ToLower(ot.Title), q)
	})
}

func anyInfo(infos []*domain.MovieInfo, match func(domain.Payload) bool) bool {
	for _, mi := range infos {
		if match(mi.Payload) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page, pageSize int) ([]T, int, error) {
	page, pageSize = normalizePage(page, pageSize)
	total := len(items)
	start := (page - 1) * pageSize
	if start >= total {
		return []T{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

func aggregateRatings(s *memoryState, movieID string) domain.AggregatedRating {
	agg := domain.AggregatedRating{MovieID: movieID}
	var sum int64
	for k, r := range s.ratings {
		if k.movieID == movieID {
			sum += int64(r.Rating)
			agg.RatingCount++
		}
	}
	if agg.RatingCount > 0 {
		agg.AverageRating = float64(sum) / float64(agg.RatingCount)
	}
	return agg
}

// memoryTx operates on one memoryState; the owning MemoryStore holds the lock.
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) GetMovie(ctx context.Context, id string) (*domain.Movie, error) {
	m, ok := t.state.movies[id]
	if !ok {
		return nil, ErrMovieNotFound
	}
	return copyMovie(m), nil
}

func (t *memoryTx) CreateMovie(ctx context.Context, movie *domain.Movie) error {
	if _, exists := t.state.movies[movie.ID]; exists {
		return ErrAlreadyExists
	}
	now := time.Now().UTC()
	movie.CreatedAt, movie.UpdatedAt = now, now
	t.state.movies[movie.ID] = copyMovie(movie)
	return nil
}

func (t *memoryTx) UpdateMovie(ctx context.Context, movie *domain.Movie) error {
	stored, ok := t.state.movies[movie.ID]
	if !ok {
		return ErrMovieNotFound
	}
	if stored.Version != movie.Version {
		return ErrStaleVersion
	}
	movie.Version++
	movie.UpdatedAt = time.Now().UTC()
	t.state.movies[movie.ID] = copyMovie(movie)
	return nil
}

func (t *memoryTx) ListMovieInfos(ctx context.Context, movieID string, field domain.MovieField) ([]*domain.MovieInfo, error) {
	var out []*domain.MovieInfo
	for _, mi := range t.state.infos {
		if mi.MovieID != movieID || (field != "" && mi.Field != field) {
			continue
		}
		out = append(out, copyInfo(mi))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memoryTx) GetMovieInfo(ctx context.Context, id string) (*domain.MovieInfo, error) {
	mi, ok := t.state.infos[id]
	if !ok {
		return nil, ErrMovieInfoNotFound
	}
	return copyInfo(mi), nil
}

func (t *memoryTx) CreateMovieInfo(ctx context.Context, info *domain.MovieInfo) error {
	if _, exists := t.state.infos[info.ID]; exists {
		return ErrAlreadyExists
	}
	if _, ok := t.state.movies[info.MovieID]; !ok {
		return ErrMovieNotFound
	}
	now := time.Now().UTC()
	info.CreatedAt, info.UpdatedAt = now, now
	t.state.infos[info.ID] = copyInfo(info)
	return nil
}

func (t *memoryTx) UpdateMovieInfo(ctx context.Context, info *domain.MovieInfo) error {
	stored, ok := t.state.infos[info.ID]
	if !ok {
		return ErrMovieInfoNotFound
	}
	if stored.Version != info.Version {
		return ErrStaleVersion
	}
	info.Version++
	info.UpdatedAt = time.Now().UTC()
	t.state.infos[info.ID] = copyInfo(info)
	return nil
}

func (t *memoryTx) GetContribution(ctx context.Context, id string) (*domain.Contribution, error) {
	c, ok := t.state.contributions[id]
	if !ok {
		return nil, ErrContributionNotFound
	}
	return copyContribution(c), nil
}

func (t *memoryTx) CreateContribution(ctx context.Context, c *domain.Contribution) error {
	if _, exists := t.state.contributions[c.ID]; exists {
		return ErrAlreadyExists
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	t.state.contributions[c.ID] = copyContribution(c)
	return nil
}

func (t *memoryTx) UpdateContribution(ctx context.Context, c *domain.Contribution) error {
	stored, ok := t.state.contributions[c.ID]
	if !ok {
		return ErrContributionNotFound
	}
	if stored.Version != c.Version {
		return ErrStaleVersion
	}
	c.Version++
	t.state.contributions[c.ID] = copyContribution(c)
	return nil
}

func (t *memoryTx) ListContributions(ctx context.Context, movieID string, status domain.DataStatus) ([]*domain.Contribution, error) {
	var out []*domain.Contribution
	for _, c := range t.state.contributions {
		if c.MovieID == movieID && c.Status == status {
			out = append(out, copyContribution(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memoryTx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, ok := t.state.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

func (t *memoryTx) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range t.state.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (t *memoryTx) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range t.state.users {
		if strings.EqualFold(u.Username, username) {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (t *memoryTx) CreateUser(ctx context.Context, user *domain.User) error {
	for _, existing := range t.state.users {
		if existing.ID == user.ID || strings.EqualFold(existing.Email, user.Email) || existing.Username == user.Username {
			return ErrUserAlreadyExists
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	t.state.users[user.ID] = copyUser(user)
	return nil
}

func (t *memoryTx) UpdateUser(ctx context.Context, user *domain.User) error {
	if _, ok := t.state.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	for _, existing := range t.state.users {
		if existing.ID != user.ID && (strings.EqualFold(existing.Email, user.Email) || existing.Username == user.Username) {
			return ErrUserAlreadyExists
		}
	}
	user.UpdatedAt = time.Now().UTC()
	t.state.users[user.ID] = copyUser(user)
	return nil
}

func (t *memoryTx) UpsertRating(ctx context.Context, rating *domain.Rating) error {
	key := ratingKey{movieID: rating.MovieID, userID: rating.UserID}
	now := time.Now().UTC()
	if existing, ok := t.state.ratings[key]; ok {
		rating.CreatedAt = existing.CreatedAt
	} else {
		rating.CreatedAt = now
	}
	rating.UpdatedAt = now
	rc := *rating
	t.state.ratings[key] = &rc
	return nil
}

func (t *memoryTx) MovieRating(ctx context.Context, movieID string) (*domain.AggregatedRating, error) {
	agg := aggregateRatings(t.state, movieID)
	return &agg, nil
}

func copyMovie(m *domain.Movie) *domain.Movie {
	c := *m
	if m.Budget != nil {
		b := *m.Budget
		c.Budget = &b
	}
	c.Fields = nil
	return &c
}

func copyInfo(mi *domain.MovieInfo) *domain.MovieInfo {
	c := *mi
	return &c
}

func copyContribution(con *domain.Contribution) *domain.Contribution {
	c := *con
	c.ElementsToAdd = append([]domain.Payload(nil), con.ElementsToAdd...)
	c.IDsToDelete = append([]string(nil), con.IDsToDelete...)
	c.AddedIDs = append([]string(nil), con.AddedIDs...)
	c.Sources = append([]string(nil), con.Sources...)
	if con.ElementsToUpdate != nil {
		c.ElementsToUpdate = make(map[string]domain.Payload, len(con.ElementsToUpdate))
		for k, v := range con.ElementsToUpdate {
			c.ElementsToUpdate[k] = v
		}
	}
	if con.ElementsUpdated != nil {
		c.ElementsUpdated = make(map[string]string, len(con.ElementsUpdated))
		for k, v := range con.ElementsUpdated {
			c.ElementsUpdated[k] = v
		}
	}
	if con.VerifiedAt != nil {
		v := *con.VerifiedAt
		c.VerifiedAt = &v
	}
	return &c
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	c.Permissions = append([]string(nil), u.Permissions...)
	return &c
}
