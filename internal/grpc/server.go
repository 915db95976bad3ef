package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"popcorn/internal/domain"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// MovieReader is the lookup the server needs. *moderation.Service satisfies it.
type MovieReader interface {
	GetMovie(ctx context.Context, movieID string) (*domain.Movie, error)
}

// Server implements MovieInterServiceServer.
type Server struct {
	movies MovieReader
	logger *slog.Logger
}

func NewServer(movies MovieReader, logger *slog.Logger) *Server {
	return &Server{movies: movies, logger: logger}
}

// Register installs the movie service, the standard health service and reflection on s.
func Register(s *grpc.Server, srv *Server) *health.Server {
	RegisterMovieInterServiceServer(s, srv)
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(MovieInterServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthSrv)
	reflection.Register(s)
	return healthSrv
}

func movieToStruct(movie *domain.Movie) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"id":         movie.ID,
		"title":      movie.Title,
		"type":       string(movie.Type),
		"status":     string(movie.Status),
		"created_at": movie.CreatedAt.UTC().Format(time.RFC3339),
	}
	if movie.Budget != nil {
		fields["budget"] = map[string]interface{}{
			"amount":   movie.Budget.Amount,
			"currency": movie.Budget.Currency,
		}
	}
	return structpb.NewStruct(fields)
}

// GetMovieInfo returns the scalar attributes of a movie whatever its status.
func (s *Server) GetMovieInfo(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	s.logger.InfoContext(ctx, "gRPC GetMovieInfo called", slog.String("movie_id", req.GetValue()))

	if req.GetValue() == "" {
		s.logger.WarnContext(ctx, "gRPC GetMovieInfo called with empty movie_id")
		return nil, status.Errorf(codes.InvalidArgument, "movie_id cannot be empty")
	}

	movie, err := s.movies.GetMovie(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, "GetMovieInfo", req.GetValue(), err)
	}
	out, err := movieToStruct(movie)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to encode movie info", slog.String("movie_id", movie.ID), slog.String("error", err.Error()))
		return nil, status.Errorf(codes.Internal, "failed to encode movie info: %v", err)
	}
	return out, nil
}

// CheckMovieExists reports whether an ACCEPTED movie has the given id. Waiting, rejected and
// deleted movies count as missing.
func (s *Server) CheckMovieExists(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	s.logger.InfoContext(ctx, "gRPC CheckMovieExists called", slog.String("movie_id", req.GetValue()))

	if req.GetValue() == "" {
		s.logger.WarnContext(ctx, "gRPC CheckMovieExists called with empty movie_id")
		return nil, status.Errorf(codes.InvalidArgument, "movie_id cannot be empty")
	}

	movie, err := s.movies.GetMovie(ctx, req.GetValue())
	if errors.Is(err, domain.ErrNotFound) {
		return wrapperspb.Bool(false), nil
	}
	if err != nil {
		return nil, s.toStatus(ctx, "CheckMovieExists", req.GetValue(), err)
	}
	return wrapperspb.Bool(movie.Status == domain.StatusAccepted), nil
}

func (s *Server) toStatus(ctx context.Context, method, movieID string, err error) error {
	code := codeFor(err)
	if code == codes.Internal {
		s.logger.ErrorContext(ctx, "gRPC "+method+" failed", slog.String("movie_id", movieID), slog.String("error", err.Error()))
		return status.Errorf(codes.Internal, "failed to retrieve movie details")
	}
	s.logger.WarnContext(ctx, "gRPC "+method+" rejected", slog.String("movie_id", movieID), slog.String("error", err.Error()))
	return status.Error(code, err.Error())
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrUnauthorized):
		return codes.Unauthenticated
	case errors.Is(err, domain.ErrForbidden):
		return codes.PermissionDenied
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrConflict):
		return codes.AlreadyExists
	case errors.Is(err, domain.ErrState):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrConcurrentModification):
		return codes.Aborted
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}
