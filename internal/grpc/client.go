package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// MovieSummary is what GetMovieInfo reports about a movie.
type MovieSummary struct {
	ID     string
	Title  string
	Type   string
	Status string
}

// Client calls MovieInterService with a timeout on every call.
type Client struct {
	client      MovieInterServiceClient
	conn        *grpc.ClientConn
	logger      *slog.Logger
	callTimeout time.Duration
}

// Dial connects to a MovieInterService at addr. Transport security is left to the deployment.
func Dial(addr string, callTimeout time.Duration, logger *slog.Logger, opts ...grpc.DialOption) (*Client, error) {
	logger.Info("Connecting to MovieInterService gRPC", slog.String("address", addr))
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		logger.Error("Failed to create MovieInterService gRPC client", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to connect to movie service at %s: %w", addr, err)
	}
	return &Client{
		client:      NewMovieInterServiceClient(conn),
		conn:        conn,
		logger:      logger,
		callTimeout: callTimeout,
	}, nil
}

func (c *Client) CheckMovieExists(ctx context.Context, movieID string) (bool, error) {
	if movieID == "" {
		return false, status.Errorf(codes.InvalidArgument, "movieID cannot be empty")
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	res, err := c.client.CheckMovieExists(callCtx, wrapperspb.String(movieID))
	if err != nil {
		c.logCallError(ctx, "CheckMovieExists", movieID, err)
		return false, fmt.Errorf("grpc CheckMovieExists failed for movieID %s: %w", movieID, err)
	}
	c.logger.DebugContext(ctx, "MovieInterService.CheckMovieExists call successful", slog.String("movie_id", movieID), slog.Bool("exists", res.GetValue()))
	return res.GetValue(), nil
}

func (c *Client) GetMovieInfo(ctx context.Context, movieID string) (*MovieSummary, error) {
	if movieID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "movieID cannot be empty")
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	res, err := c.client.GetMovieInfo(callCtx, wrapperspb.String(movieID))
	if err != nil {
		c.logCallError(ctx, "GetMovieInfo", movieID, err)
		return nil, fmt.Errorf("grpc GetMovieInfo failed for movieID %s: %w", movieID, err)
	}
	fields := res.GetFields()
	return &MovieSummary{
		ID:     fields["id"].GetStringValue(),
		Title:  fields["title"].GetStringValue(),
		Type:   fields["type"].GetStringValue(),
		Status: fields["status"].GetStringValue(),
	}, nil
}

func (c *Client) logCallError(ctx context.Context, method, movieID string, err error) {
	st, _ := status.FromError(err)
	c.logger.ErrorContext(ctx, "MovieInterService."+method+" gRPC call failed",
		slog.String("movie_id", movieID),
		slog.String("code", st.Code().String()),
		slog.String("message", st.Message()))
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
