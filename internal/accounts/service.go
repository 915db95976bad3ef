// Package accounts handles registration, login and moderation permission grants.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"popcorn/internal/domain"
	"popcorn/internal/store"
	"popcorn/pkg/auth"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
var ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)

type Service struct {
	store        store.Store
	logger       *slog.Logger
	validator    *validator.Validate
	tokenManager auth.TokenManager
	passwords    *auth.PasswordHasher
}

func NewService(s store.Store, l *slog.Logger, v *validator.Validate, tm auth.TokenManager, ph *auth.PasswordHasher) *Service {
	return &Service{store: s, logger: l, validator: v, tokenManager: tm, passwords: ph}
}

// Register creates an account without any moderation permission.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	hashedPassword, err := s.passwords.Hash(req.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to hash password", slog.String("error", err.Error()))
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hashedPassword,
		Permissions:  []string{},
	}
	err = s.store.Update(ctx, func(tx store.Tx) error {
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.logger.WarnContext(ctx, "Registration with taken email or username", slog.String("email", user.Email))
		} else {
			s.logger.ErrorContext(ctx, "Failed to create user in store", slog.String("error", err.Error()))
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "User registered successfully", slog.String("userID", user.ID), slog.String("username", user.Username))
	return user, nil
}

// EnsureAdmin registers an account holding ALL unless the email is already taken, in which case
// the existing account is returned untouched.
func (s *Service) EnsureAdmin(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	var existing *domain.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		existing, err = tx.GetUserByEmail(ctx, req.Email)
		return err
	})
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, err
	}
	user, err := s.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	err = s.store.Update(ctx, func(tx store.Tx) error {
		user.Permissions = []string{string(domain.PermissionAll)}
		return tx.UpdateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Administrator account created", slog.String("userID", user.ID))
	return user, nil
}

// Login checks the credentials and issues a token carrying the user's permissions.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var user *domain.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.GetUserByEmail(ctx, req.Email)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			s.logger.WarnContext(ctx, "Login attempt for non-existent email", slog.String("email", req.Email))
			return nil, ErrInvalidCredentials
		}
		s.logger.ErrorContext(ctx, "Failed to get user by email from store", slog.String("email", req.Email), slog.String("error", err.Error()))
		return nil, err
	}
	if !s.passwords.Check(req.Password, user.PasswordHash) {
		s.logger.WarnContext(ctx, "Invalid password attempt", slog.String("userID", user.ID))
		return nil, ErrInvalidCredentials
	}
	if s.passwords.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, req.Password)
	}

	token, err := s.tokenManager.Generate(user.ID, user.MoviePermissions().Strings())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to generate JWT token", slog.String("userID", user.ID), slog.String("error", err.Error()))
		return nil, err
	}
	s.logger.InfoContext(ctx, "User logged in successfully", slog.String("userID", user.ID))
	return &domain.LoginResponse{User: user, Token: token}, nil
}

// rehash upgrades a stored hash to the configured cost. Failures are logged and the login proceeds.
func (s *Service) rehash(ctx context.Context, user *domain.User, password string) {
	hashed, err := s.passwords.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to rehash password", slog.String("userID", user.ID), slog.String("error", err.Error()))
		return
	}
	err = s.store.Update(ctx, func(tx store.Tx) error {
		stored, err := tx.GetUser(ctx, user.ID)
		if err != nil {
			return err
		}
		stored.PasswordHash = hashed
		return tx.UpdateUser(ctx, stored)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to store rehashed password", slog.String("userID", user.ID), slog.String("error", err.Error()))
		return
	}
	user.PasswordHash = hashed
	s.logger.InfoContext(ctx, "Password rehashed", slog.String("userID", user.ID), slog.Int("cost", s.passwords.Cost()))
}

// GetUser returns one account.
func (s *Service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var user *domain.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, userID)
		return err
	})
	return user, err
}

// GrantPermissions replaces the moderation permissions of a user. Only holders of ALL may do it.
// Services check the stored permissions, so the change applies before the user's next login.
func (s *Service) GrantPermissions(ctx context.Context, who domain.Principal, userID string, req domain.GrantPermissionsRequest) (*domain.User, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	perms, err := domain.ParsePermissions(req.Permissions)
	if err != nil {
		return nil, err
	}

	var user *domain.User
	err = s.store.Update(ctx, func(tx store.Tx) error {
		grantor, err := tx.GetUser(ctx, who.UserID)
		if err != nil {
			return err
		}
		if !grantor.MoviePermissions().Has(domain.PermissionAll) {
			return fmt.Errorf("%w: granting permissions requires %s", domain.ErrForbidden, domain.PermissionAll)
		}
		if user, err = tx.GetUser(ctx, userID); err != nil {
			return err
		}
		user.Permissions = domain.Permissions(perms).Strings()
		return tx.UpdateUser(ctx, user)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to grant permissions", slog.String("userID", userID), slog.String("error", err.Error()))
		return nil, err
	}
	s.logger.InfoContext(ctx, "Permissions granted",
		slog.String("userID", userID), slog.String("grantedBy", who.UserID), slog.Any("permissions", user.Permissions))
	return user, nil
}
