package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"popcorn/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// pgTx runs queries against either the pool or an open transaction.
type pgTx struct {
	ext    sqlx.ExtContext
	logger *slog.Logger
}

const movieColumns = `id, title, type, budget, status, submitted_by_user_id, verified_by_user_id, version, created_at, updated_at`

type movieRow struct {
	ID                string    `db:"id"`
	Title             string    `db:"title"`
	Type              string    `db:"type"`
	Budget            []byte    `db:"budget"`
	Status            string    `db:"status"`
	SubmittedByUserID string    `db:"submitted_by_user_id"`
	VerifiedByUserID  string    `db:"verified_by_user_id"`
	Version           int       `db:"version"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r movieRow) toDomain() (*domain.Movie, error) {
	m := &domain.Movie{
		ID:                r.ID,
		Title:             r.Title,
		Type:              domain.MovieType(r.Type),
		Status:            domain.DataStatus(r.Status),
		SubmittedByUserID: r.SubmittedByUserID,
		VerifiedByUserID:  r.VerifiedByUserID,
		Version:           r.Version,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if len(r.Budget) > 0 {
		var b domain.Budget
		if err := json.Unmarshal(r.Budget, &b); err != nil {
			return nil, fmt.Errorf("failed to decode budget of movie %s: %w", r.ID, err)
		}
		m.Budget = &b
	}
	return m, nil
}

func encodeBudget(b *domain.Budget) (interface{}, error) {
	if b == nil {
		return nil, nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to encode budget: %w", err)
	}
	return string(raw), nil
}

// staleOrMissing tells apart a version conflict from a missing row after an update hit zero rows.
func (t *pgTx) staleOrMissing(ctx context.Context, table, id string, notFound error) error {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table)
	if err := sqlx.GetContext(ctx, t.ext, &exists, query, id); err != nil {
		return fmt.Errorf("failed to check %s existence: %w", table, err)
	}
	if !exists {
		return notFound
	}
	t.logger.WarnContext(ctx, "Optimistic lock conflict", slog.String("table", table), slog.String("id", id))
	return ErrStaleVersion
}

func (t *pgTx) GetMovie(ctx context.Context, id string) (*domain.Movie, error) {
	var row movieRow
	t.logger.DebugContext(ctx, "Executing GetMovie query", slog.String("movieID", id))
	err := sqlx.GetContext(ctx, t.ext, &row, `SELECT `+movieColumns+` FROM movies WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		t.logger.ErrorContext(ctx, "Failed to get movie by ID from DB", slog.String("movieID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get movie by ID: %w", err)
	}
	return row.toDomain()
}

func (t *pgTx) CreateMovie(ctx context.Context, movie *domain.Movie) error {
	budget, err := encodeBudget(movie.Budget)
	if err != nil {
		return err
	}
	movie.CreatedAt = nowUTC()
	movie.UpdatedAt = movie.CreatedAt
	query := `INSERT INTO movies (` + movieColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = t.ext.ExecContext(ctx, query,
		movie.ID, movie.Title, movie.Type, budget, movie.Status, movie.SubmittedByUserID, movie.VerifiedByUserID,
		movie.Version, movie.CreatedAt, movie.UpdatedAt,
	)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to create movie in DB", slog.String("movieID", movie.ID), slog.String("error", err.Error()))
		return mapPgError(fmt.Errorf("failed to create movie: %w", err))
	}
	return nil
}

func (t *pgTx) UpdateMovie(ctx context.Context, movie *domain.Movie) error {
	budget, err := encodeBudget(movie.Budget)
	if err != nil {
		return err
	}
	updatedAt := nowUTC()
	query := `UPDATE movies SET title = $1, type = $2, budget = $3, status = $4, verified_by_user_id = $5,
              version = version + 1, updated_at = $6 WHERE id = $7 AND version = $8`
	res, err := t.ext.ExecContext(ctx, query,
		movie.Title, movie.Type, budget, movie.Status, movie.VerifiedByUserID, updatedAt, movie.ID, movie.Version)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to update movie in DB", slog.String("movieID", movie.ID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to update movie: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return t.staleOrMissing(ctx, "movies", movie.ID, ErrMovieNotFound)
	}
	movie.Version++
	movie.UpdatedAt = updatedAt
	return nil
}

const infoColumns = `id, movie_id, field, payload, status, reported_for_update, reported_for_delete, version, created_at, updated_at`

type infoRow struct {
	ID                string    `db:"id"`
	MovieID           string    `db:"movie_id"`
	Field             string    `db:"field"`
	Payload           []byte    `db:"payload"`
	Status            string    `db:"status"`
	ReportedForUpdate bool      `db:"reported_for_update"`
	ReportedForDelete bool      `db:"reported_for_delete"`
	Version           int       `db:"version"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r infoRow) toDomain() (*domain.MovieInfo, error) {
	field := domain.MovieField(r.Field)
	payload, err := domain.DecodePayload(field, r.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", r.ID, err)
	}
	return &domain.MovieInfo{
		ID:                r.ID,
		MovieID:           r.MovieID,
		Field:             field,
		Payload:           payload,
		Status:            domain.DataStatus(r.Status),
		ReportedForUpdate: r.ReportedForUpdate,
		ReportedForDelete: r.ReportedForDelete,
		Version:           r.Version,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

func (t *pgTx) ListMovieInfos(ctx context.Context, movieID string, field domain.MovieField) ([]*domain.MovieInfo, error) {
	query := `SELECT ` + infoColumns + ` FROM movie_infos WHERE movie_id = $1`
	args := []interface{}{movieID}
	if field != "" {
		query += ` AND field = $2`
		args = append(args, field)
	}
	query += ` ORDER BY created_at, id`

	var rows []infoRow
	if err := sqlx.SelectContext(ctx, t.ext, &rows, query, args...); err != nil {
		t.logger.ErrorContext(ctx, "Failed to list movie records from DB", slog.String("movieID", movieID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list movie records: %w", err)
	}
	out := make([]*domain.MovieInfo, 0, len(rows))
	for _, row := range rows {
		mi, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, mi)
	}
	return out, nil
}

func (t *pgTx) GetMovieInfo(ctx context.Context, id string) (*domain.MovieInfo, error) {
	var row infoRow
	err := sqlx.GetContext(ctx, t.ext, &row, `SELECT `+infoColumns+` FROM movie_infos WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieInfoNotFound
		}
		return nil, fmt.Errorf("failed to get movie record: %w", err)
	}
	return row.toDomain()
}

func (t *pgTx) CreateMovieInfo(ctx context.Context, info *domain.MovieInfo) error {
	payload, err := domain.EncodePayload(info.Payload)
	if err != nil {
		return err
	}
	info.CreatedAt = nowUTC()
	info.UpdatedAt = info.CreatedAt
	query := `INSERT INTO movie_infos (` + infoColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = t.ext.ExecContext(ctx, query,
		info.ID, info.MovieID, info.Field, string(payload), info.Status, info.ReportedForUpdate, info.ReportedForDelete,
		info.Version, info.CreatedAt, info.UpdatedAt,
	)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to create movie record in DB", slog.String("recordID", info.ID), slog.String("error", err.Error()))
		return mapPgError(fmt.Errorf("failed to create movie record: %w", err))
	}
	return nil
}

func (t *pgTx) UpdateMovieInfo(ctx context.Context, info *domain.MovieInfo) error {
	payload, err := domain.EncodePayload(info.Payload)
	if err != nil {
		return err
	}
	updatedAt := nowUTC()
	query := `UPDATE movie_infos SET payload = $1, status = $2, reported_for_update = $3, reported_for_delete = $4,
              version = version + 1, updated_at = $5 WHERE id = $6 AND version = $7`
	res, err := t.ext.ExecContext(ctx, query,
		string(payload), info.Status, info.ReportedForUpdate, info.ReportedForDelete, updatedAt, info.ID, info.Version)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to update movie record in DB", slog.String("recordID", info.ID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to update movie record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return t.staleOrMissing(ctx, "movie_infos", info.ID, ErrMovieInfoNotFound)
	}
	info.Version++
	info.UpdatedAt = updatedAt
	return nil
}

const contributionColumns = `id, movie_id, field, owner_id, elements_to_add, elements_to_update, ids_to_delete, added_ids,
       elements_updated, sources, user_comment, status, created_at, verified_at, verifier_id, verification_comment, version`

type contributionRow struct {
	ID                  string         `db:"id"`
	MovieID             string         `db:"movie_id"`
	Field               string         `db:"field"`
	OwnerID             string         `db:"owner_id"`
	ElementsToAdd       []byte         `db:"elements_to_add"`
	ElementsToUpdate    []byte         `db:"elements_to_update"`
	IDsToDelete         pq.StringArray `db:"ids_to_delete"`
	AddedIDs            pq.StringArray `db:"added_ids"`
	ElementsUpdated     []byte         `db:"elements_updated"`
	Sources             pq.StringArray `db:"sources"`
	UserComment         string         `db:"user_comment"`
	Status              string         `db:"status"`
	CreatedAt           time.Time      `db:"created_at"`
	VerifiedAt          sql.NullTime   `db:"verified_at"`
	VerifierID          sql.NullString `db:"verifier_id"`
	VerificationComment string         `db:"verification_comment"`
	Version             int            `db:"version"`
}

func (r contributionRow) toDomain() (*domain.Contribution, error) {
	field := domain.MovieField(r.Field)
	c := &domain.Contribution{
		ID:                  r.ID,
		MovieID:             r.MovieID,
		Field:               field,
		OwnerID:             r.OwnerID,
		IDsToDelete:         []string(r.IDsToDelete),
		AddedIDs:            []string(r.AddedIDs),
		Sources:             []string(r.Sources),
		UserComment:         r.UserComment,
		Status:              domain.DataStatus(r.Status),
		CreatedAt:           r.CreatedAt,
		VerifierID:          r.VerifierID.String,
		VerificationComment: r.VerificationComment,
		Version:             r.Version,
	}
	if r.VerifiedAt.Valid {
		v := r.VerifiedAt.Time
		c.VerifiedAt = &v
	}

	var rawAdd []json.RawMessage
	if err := unmarshalJSONColumn(r.ElementsToAdd, &rawAdd); err != nil {
		return nil, fmt.Errorf("failed to decode contribution %s additions: %w", r.ID, err)
	}
	for _, raw := range rawAdd {
		p, err := domain.DecodePayload(field, raw)
		if err != nil {
			return nil, err
		}
		c.ElementsToAdd = append(c.ElementsToAdd, p)
	}

	var rawUpdate map[string]json.RawMessage
	if err := unmarshalJSONColumn(r.ElementsToUpdate, &rawUpdate); err != nil {
		return nil, fmt.Errorf("failed to decode contribution %s updates: %w", r.ID, err)
	}
	c.ElementsToUpdate = make(map[string]domain.Payload, len(rawUpdate))
	for id, raw := range rawUpdate {
		p, err := domain.DecodePayload(field, raw)
		if err != nil {
			return nil, err
		}
		c.ElementsToUpdate[id] = p
	}

	if err := unmarshalJSONColumn(r.ElementsUpdated, &c.ElementsUpdated); err != nil {
		return nil, fmt.Errorf("failed to decode contribution %s applied values: %w", r.ID, err)
	}
	return c, nil
}

func unmarshalJSONColumn(raw []byte, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func contributionArgs(c *domain.Contribution) (add, update, updated string, err error) {
	adds := c.ElementsToAdd
	if adds == nil {
		adds = []domain.Payload{}
	}
	ups := c.ElementsToUpdate
	if ups == nil {
		ups = map[string]domain.Payload{}
	}
	done := c.ElementsUpdated
	if done == nil {
		done = map[string]string{}
	}
	var raw []byte
	if raw, err = json.Marshal(adds); err != nil {
		return "", "", "", fmt.Errorf("failed to encode additions: %w", err)
	}
	add = string(raw)
	if raw, err = json.Marshal(ups); err != nil {
		return "", "", "", fmt.Errorf("failed to encode updates: %w", err)
	}
	update = string(raw)
	if raw, err = json.Marshal(done); err != nil {
		return "", "", "", fmt.Errorf("failed to encode applied values: %w", err)
	}
	updated = string(raw)
	return add, update, updated, nil
}

func (t *pgTx) GetContribution(ctx context.Context, id string) (*domain.Contribution, error) {
	var row contributionRow
	t.logger.DebugContext(ctx, "Executing GetContribution query", slog.String("contributionID", id))
	err := sqlx.GetContext(ctx, t.ext, &row, `SELECT `+contributionColumns+` FROM contributions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContributionNotFound
		}
		t.logger.ErrorContext(ctx, "Failed to get contribution from DB", slog.String("contributionID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get contribution: %w", err)
	}
	return row.toDomain()
}

func (t *pgTx) CreateContribution(ctx context.Context, c *domain.Contribution) error {
	add, update, updated, err := contributionArgs(c)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = nowUTC()
	}
	var verifiedAt sql.NullTime
	if c.VerifiedAt != nil {
		verifiedAt = sql.NullTime{Time: *c.VerifiedAt, Valid: true}
	}
	query := `INSERT INTO contributions (` + contributionColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err = t.ext.ExecContext(ctx, query,
		c.ID, c.MovieID, c.Field, c.OwnerID, add, update, textArray(c.IDsToDelete), textArray(c.AddedIDs),
		updated, textArray(c.Sources), c.UserComment, c.Status, c.CreatedAt, verifiedAt, nullString(c.VerifierID),
		c.VerificationComment, c.Version,
	)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to create contribution in DB", slog.String("contributionID", c.ID), slog.String("error", err.Error()))
		return mapPgError(fmt.Errorf("failed to create contribution: %w", err))
	}
	t.logger.InfoContext(ctx, "Contribution created successfully in DB", slog.String("contributionID", c.ID))
	return nil
}

func (t *pgTx) UpdateContribution(ctx context.Context, c *domain.Contribution) error {
	add, update, updated, err := contributionArgs(c)
	if err != nil {
		return err
	}
	var verifiedAt sql.NullTime
	if c.VerifiedAt != nil {
		verifiedAt = sql.NullTime{Time: *c.VerifiedAt, Valid: true}
	}
	query := `UPDATE contributions SET elements_to_add = $1, elements_to_update = $2, ids_to_delete = $3, added_ids = $4,
              elements_updated = $5, sources = $6, user_comment = $7, status = $8, verified_at = $9, verifier_id = $10,
              verification_comment = $11, version = version + 1
              WHERE id = $12 AND version = $13`
	res, err := t.ext.ExecContext(ctx, query,
		add, update, textArray(c.IDsToDelete), textArray(c.AddedIDs), updated, textArray(c.Sources), c.UserComment,
		c.Status, verifiedAt, nullString(c.VerifierID), c.VerificationComment, c.ID, c.Version,
	)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to update contribution in DB", slog.String("contributionID", c.ID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to update contribution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return t.staleOrMissing(ctx, "contributions", c.ID, ErrContributionNotFound)
	}
	c.Version++
	return nil
}

func (t *pgTx) ListContributions(ctx context.Context, movieID string, status domain.DataStatus) ([]*domain.Contribution, error) {
	var rows []contributionRow
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE movie_id = $1 AND status = $2 ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, t.ext, &rows, query, movieID, status); err != nil {
		t.logger.ErrorContext(ctx, "Failed to list contributions of movie from DB", slog.String("movieID", movieID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	out := make([]*domain.Contribution, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

const userColumns = `id, username, email, password_hash, permissions, created_at, updated_at`

func (t *pgTx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := sqlx.GetContext(ctx, t.ext, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		t.logger.ErrorContext(ctx, "Failed to get user by ID from DB", slog.String("userID", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return &user, nil
}

func (t *pgTx) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := sqlx.GetContext(ctx, t.ext, &user, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (t *pgTx) CreateUser(ctx context.Context, user *domain.User) error {
	user.CreatedAt = nowUTC()
	user.UpdatedAt = user.CreatedAt
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := t.ext.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, textArray(user.Permissions), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			t.logger.WarnContext(ctx, "User already exists (unique constraint violation in DB)",
				slog.String("email", user.Email), slog.String("constraint", pqErr.Constraint))
			return ErrUserAlreadyExists
		}
		t.logger.ErrorContext(ctx, "Failed to create user in DB", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateUser(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = nowUTC()
	query := `UPDATE users SET username = $1, email = $2, password_hash = $3, permissions = $4, updated_at = $5 WHERE id = $6`
	res, err := t.ext.ExecContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, textArray(user.Permissions), user.UpdatedAt, user.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (t *pgTx) UpsertRating(ctx context.Context, rating *domain.Rating) error {
	now := nowUTC()
	query := `INSERT INTO movie_ratings (movie_id, user_id, rating, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)
              ON CONFLICT (movie_id, user_id) DO UPDATE SET rating = EXCLUDED.rating, updated_at = EXCLUDED.updated_at
              RETURNING created_at, updated_at`
	row := t.ext.QueryRowxContext(ctx, query, rating.MovieID, rating.UserID, rating.Rating, now)
	if err := row.Scan(&rating.CreatedAt, &rating.UpdatedAt); err != nil {
		t.logger.ErrorContext(ctx, "Failed to upsert rating in DB", slog.String("movieID", rating.MovieID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to save rating: %w", err)
	}
	return nil
}

func (t *pgTx) MovieRating(ctx context.Context, movieID string) (*domain.AggregatedRating, error) {
	var agg domain.AggregatedRating
	query := `SELECT $1::text AS movie_id, COALESCE(AVG(rating), 0)::float8 AS average_rating, COUNT(*) AS rating_count
              FROM movie_ratings WHERE movie_id = $1`
	if err := sqlx.GetContext(ctx, t.ext, &agg, query, movieID); err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	return &agg, nil
}

// textArray encodes s as a TEXT[] parameter; nil becomes an empty array instead of NULL.
func textArray(s []string) pq.StringArray {
	if s == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(s)
}
