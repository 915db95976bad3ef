package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"popcorn/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresStore implements Store on PostgreSQL through sqlx.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore wraps an already connected *sqlx.DB.
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("database connection (db) cannot be nil")
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.logger.Info("Closing PostgreSQL database connection...")
	return s.db.Close()
}

// View runs fn outside of an explicit transaction.
func (s *PostgresStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return fn(&pgTx{ext: s.db, logger: s.logger})
}

// Update runs fn in a database transaction, rolled back when fn fails.
func (s *PostgresStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", slog.String("error", err.Error()))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&pgTx{ext: tx, logger: s.logger}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.ErrorContext(ctx, "Failed to roll back transaction", slog.String("error", rbErr.Error()))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", slog.String("error", err.Error()))
		return mapPgError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// SearchContributions builds an AND of the provided filters.
func (s *PostgresStore) SearchContributions(ctx context.Context, params ContributionListParams) ([]domain.ContributionSummary, int, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	countQuery := `SELECT COUNT(*) FROM contributions WHERE 1=1`
	selectQuery := `SELECT id, movie_id, field, status, created_at FROM contributions WHERE 1=1`

	var args []interface{}
	var conditions []string
	argID := 1

	if params.MovieID != "" {
		conditions = append(conditions, fmt.Sprintf("movie_id = $%d", argID))
		args = append(args, params.MovieID)
		argID++
	}
	if params.Field != "" {
		conditions = append(conditions, fmt.Sprintf("field = $%d", argID))
		args = append(args, params.Field)
		argID++
	}
	if params.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argID))
		args = append(args, params.Status)
		argID++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argID))
		args = append(args, *params.From)
		argID++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argID))
		args = append(args, *params.To)
		argID++
	}
	if len(conditions) > 0 {
		conditionStr := " AND " + strings.Join(conditions, " AND ")
		countQuery += conditionStr
		selectQuery += conditionStr
	}

	var total int
	s.logger.DebugContext(ctx, "Executing search contributions count query", slog.String("query", countQuery), slog.Any("args", args))
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count contributions in DB", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to count contributions: %w", err)
	}
	if total == 0 {
		return []domain.ContributionSummary{}, 0, nil
	}

	selectQuery += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, params.PageSize, (params.Page-1)*params.PageSize)

	var out []domain.ContributionSummary
	if err := s.db.SelectContext(ctx, &out, selectQuery, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to search contributions in DB", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to search contributions: %w", err)
	}
	return out, total, nil
}

// SearchMovies filters movies by scalar columns and by their live field records.
func (s *PostgresStore) SearchMovies(ctx context.Context, params MovieListParams) ([]*domain.Movie, int, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	from := ` FROM movies m LEFT JOIN (SELECT movie_id, AVG(rating) AS avg_rating FROM movie_ratings GROUP BY movie_id) r ON r.movie_id = m.id WHERE 1=1`
	countQuery := `SELECT COUNT(*)` + from
	selectQuery := `SELECT m.id, m.title, m.type, m.budget, m.status, m.submitted_by_user_id, m.verified_by_user_id, m.version, m.created_at, m.updated_at` + from

	var args []interface{}
	var conditions []string
	argID := 1
	liveInfo := func(field domain.MovieField, predicate string) string {
		return fmt.Sprintf("EXISTS (SELECT 1 FROM movie_infos i WHERE i.movie_id = m.id AND i.field = '%s' AND i.status = '%s' AND %s)",
			field, domain.StatusAccepted, predicate)
	}

	if params.Status != "" {
		conditions = append(conditions, fmt.Sprintf("m.status = $%d", argID))
		args = append(args, params.Status)
		argID++
	}
	if params.Type != "" {
		conditions = append(conditions, fmt.Sprintf("m.type = $%d", argID))
		args = append(args, params.Type)
		argID++
	}
	if params.Title != "" {
		conditions = append(conditions, fmt.Sprintf(`(LOWER(m.title) LIKE LOWER($%d) ESCAPE '\' OR %s)`, argID,
			liveInfo(domain.FieldOtherTitle, fmt.Sprintf(`LOWER(i.payload->>'title') LIKE LOWER($%d) ESCAPE '\'`, argID))))
		args = append(args, containsPattern(params.Title))
		argID++
	}
	if params.Genre != "" {
		conditions = append(conditions, liveInfo(domain.FieldGenre, fmt.Sprintf("UPPER(i.payload->>'genre') = UPPER($%d)", argID)))
		args = append(args, params.Genre)
		argID++
	}
	if params.Country != "" {
		conditions = append(conditions, liveInfo(domain.FieldCountry, fmt.Sprintf("UPPER(i.payload->>'country') = UPPER($%d)", argID)))
		args = append(args, params.Country)
		argID++
	}
	if params.Language != "" {
		conditions = append(conditions, liveInfo(domain.FieldLanguage, fmt.Sprintf("LOWER(i.payload->>'language') = LOWER($%d)", argID)))
		args = append(args, params.Language)
		argID++
	}
	if params.FromDate != nil || params.ToDate != nil {
		var bounds []string
		if params.FromDate != nil {
			bounds = append(bounds, fmt.Sprintf("(i.payload->>'date')::timestamptz >= $%d", argID))
			args = append(args, *params.FromDate)
			argID++
		}
		if params.ToDate != nil {
			bounds = append(bounds, fmt.Sprintf("(i.payload->>'date')::timestamptz <= $%d", argID))
			args = append(args, *params.ToDate)
			argID++
		}
		conditions = append(conditions, liveInfo(domain.FieldReleaseDate, strings.Join(bounds, " AND ")))
	}
	if params.MinRating != nil {
		conditions = append(conditions, fmt.Sprintf("r.avg_rating >= $%d", argID))
		args = append(args, *params.MinRating)
		argID++
	}
	if params.MaxRating != nil {
		conditions = append(conditions, fmt.Sprintf("r.avg_rating <= $%d", argID))
		args = append(args, *params.MaxRating)
		argID++
	}
	if len(conditions) > 0 {
		conditionStr := " AND " + strings.Join(conditions, " AND ")
		countQuery += conditionStr
		selectQuery += conditionStr
	}

	var total int
	s.logger.DebugContext(ctx, "Executing search movies count query", slog.String("query", countQuery), slog.Any("args", args))
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count movies in DB", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to count movies: %w", err)
	}
	if total == 0 {
		return []*domain.Movie{}, 0, nil
	}

	orderBy := "m.created_at DESC"
	switch params.SortBy {
	case "title_asc":
		orderBy = "m.title ASC"
	case "title_desc":
		orderBy = "m.title DESC"
	case "created_at_asc":
		orderBy = "m.created_at ASC"
	}
	selectQuery += fmt.Sprintf(" ORDER BY %s, m.id LIMIT $%d OFFSET $%d", orderBy, argID, argID+1)
	args = append(args, params.PageSize, (params.Page-1)*params.PageSize)

	var rows []movieRow
	s.logger.DebugContext(ctx, "Executing search movies select query", slog.String("query", selectQuery), slog.Any("args", args))
	if err := s.db.SelectContext(ctx, &rows, selectQuery, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to search movies in DB", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to search movies: %w", err)
	}
	movies := make([]*domain.Movie, 0, len(rows))
	for _, row := range rows {
		m, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		movies = append(movies, m)
	}
	return movies, total, nil
}

// mapPgError converts PostgreSQL constraint violations into domain conflicts.
func mapPgError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w (constraint %s)", ErrAlreadyExists, pqErr.Constraint)
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns user text into a LIKE pattern matching it anywhere, with wildcards escaped.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
