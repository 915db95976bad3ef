package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"popcorn/internal/accounts"
	httpAPI "popcorn/internal/api"
	"popcorn/internal/config"
	"popcorn/internal/domain"
	grpcServer "popcorn/internal/grpc"
	"popcorn/internal/moderation"
	"popcorn/internal/ratings"
	"popcorn/internal/social"
	"popcorn/internal/store"
	"popcorn/pkg/auth"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"google.golang.org/grpc"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("popcorn exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return run(cfg, newLogger(cfg))
}

func openStore(cfg config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.Store.Driver == config.DriverMemory {
		logger.Warn("Using the in-memory store, data is lost on restart")
		return store.NewMemoryStore(logger), nil
	}

	logger.Info("Attempting to connect to PostgreSQL", slog.String("dbURL_used", cfg.MaskedDatabaseURL()))
	db, err := sqlx.Connect("postgres", cfg.Store.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	logger.Info("Successfully connected to PostgreSQL database.")

	if cfg.Store.RunMigrations {
		if err := store.Migrate(db, logger); err != nil {
			db.Close()
			return nil, err
		}
	}
	s, err := store.NewPostgresStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func run(cfg config.Config, logger *slog.Logger) error {
	validate := validator.New()

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Failed to close store", slog.String("error", err.Error()))
		}
	}()

	tokenManager, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}
	passwords, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to create password hasher: %w", err)
	}

	moderationService := moderation.NewService(st, logger, validate)
	accountService := accounts.NewService(st, logger, validate, tokenManager, passwords)
	ratingService := ratings.NewService(st, logger, validate)
	socialService := social.NewService(st, logger, validate)

	if cfg.Auth.AdminEmail != "" {
		_, err := accountService.EnsureAdmin(context.Background(), domain.RegisterRequest{
			Username: cfg.Auth.AdminUsername,
			Email:    cfg.Auth.AdminEmail,
			Password: cfg.Auth.AdminPassword,
		})
		if err != nil {
			return fmt.Errorf("failed to bootstrap administrator: %w", err)
		}
	}

	// --- gRPC ---
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on port %s: %w", cfg.GRPCPort, err)
	}
	grpcSrv := grpc.NewServer()
	healthSrv := grpcServer.Register(grpcSrv, grpcServer.NewServer(moderationService, logger))

	go func() {
		logger.Info("gRPC server starting", slog.String("port", cfg.GRPCPort))
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("gRPC server Serve() failed", slog.String("error", err.Error()))
		}
	}()

	// --- HTTP ---
	handler := httpAPI.NewHandler(moderationService, accountService, ratingService, socialService, tokenManager, logger)
	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpAPI.NewRouter(handler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP server starting", slog.String("port", cfg.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe() failed", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")
	healthSrv.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	stopped := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
		logger.Info("gRPC server gracefully stopped.")
	case <-time.After(cfg.ShutdownTimeout):
		grpcSrv.Stop()
		logger.Warn("gRPC server forced to stop after timeout")
	}
	return nil
}
