package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"popcorn/internal/config"
	grpcServer "popcorn/internal/grpc"

	"github.com/urfave/cli/v3"
)

var errNoMovieIDs = errors.New("lookup needs at least one movie id")

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "popcorn",
		Usage: "movie catalogue with moderated contributions",
		Action: func(ctx context.Context, _ *cli.Command) error {
			return serve(ctx)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP and gRPC servers (default)",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return serve(ctx)
				},
			},
			{
				Name:      "lookup",
				Usage:     "ask a running server about movies over gRPC",
				ArgsUsage: "<movieID>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "gRPC address of the server, defaults to localhost and the configured grpc_port",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "per call timeout, defaults to grpc_call_timeout",
					},
				},
				Action: lookup,
			},
		},
	}
}

// lookup prints one JSON line per movie id; ids that cannot be resolved are reported and fail the command.
func lookup(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return errNoMovieIDs
	}
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cfg)

	addr := cmd.String("addr")
	if addr == "" {
		addr = "localhost:" + cfg.GRPCPort
	}
	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = cfg.GRPCCallTimeout
	}
	return lookupMovies(ctx, cmd, addr, timeout, logger, ids)
}

func lookupMovies(ctx context.Context, cmd *cli.Command, addr string, timeout time.Duration, logger *slog.Logger, ids []string) error {
	client, err := grpcServer.Dial(addr, timeout, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	enc := json.NewEncoder(cmd.Root().Writer)
	var failed []error
	for _, id := range ids {
		info, err := client.GetMovieInfo(ctx, id)
		if err != nil {
			fmt.Fprintf(cmd.Root().ErrWriter, "%s: %v\n", id, err)
			failed = append(failed, err)
			continue
		}
		if err := enc.Encode(info); err != nil {
			return err
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d lookups failed: %w", len(failed), len(ids), errors.Join(failed...))
	}
	return nil
}
