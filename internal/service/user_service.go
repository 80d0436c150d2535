package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/redact"
	"github.com/phrazzld/tasker-api/internal/service/auth"
	"github.com/phrazzld/tasker-api/internal/store"
)

// UserService provides signup and credential checks.
type UserService interface {
	// Signup registers a new user. Returns ErrUsernameTaken or a
	// validation error from the domain.
	Signup(ctx context.Context, username, email, password string) (*domain.User, error)

	// Authenticate returns the user matching username and password, or
	// ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)

	// GetUser retrieves a user by their ID
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// PasswordHasherVerifier hashes new passwords and checks existing ones.
type PasswordHasherVerifier interface {
	auth.PasswordHasher
	auth.PasswordVerifier
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	userStore store.UserStore
	passwords PasswordHasherVerifier
	logger    *slog.Logger
}

var _ UserService = (*UserServiceImpl)(nil)

// NewUserService creates a new UserService
func NewUserService(userStore store.UserStore, passwords PasswordHasherVerifier, logger *slog.Logger) *UserServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserServiceImpl{
		userStore: userStore,
		passwords: passwords,
		logger:    logger.With("component", "user_service"),
	}
}

// Signup implements UserService.Signup
func (s *UserServiceImpl) Signup(ctx context.Context, username, email, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(username, email, password)
	if err != nil {
		return nil, err
	}

	hashed, err := s.passwords.Hash(user.Password)
	if err != nil {
		log.Error("failed to hash password", "error", redact.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.HashedPassword = hashed

	if err := s.userStore.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrUsernameExists) {
			log.Debug("attempted to create user with existing username")
			return nil, ErrUsernameTaken
		}
		log.Error("failed to save user to database", "error", redact.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.Password = ""

	log.Info("user created", "user_id", user.ID)
	return user, nil
}

// Authenticate implements UserService.Authenticate
func (s *UserServiceImpl) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.userStore.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		log.Error("failed to retrieve user by username", "error", redact.Error(err))
		return nil, fmt.Errorf("failed to authenticate user: %w", err)
	}

	if err := s.passwords.Compare(user.HashedPassword, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetUser implements UserService.GetUser
func (s *UserServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}
