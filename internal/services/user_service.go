package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/freightdesk/sentinel/internal/models"
	"github.com/freightdesk/sentinel/pkg/auth"
)

// UserRepository defines the user data access the service needs
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// UserService handles account bootstrap
type UserService struct {
	repo       UserRepository
	bcryptCost int
	logger     *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, bcryptCost int, logger *slog.Logger) *UserService {
	return &UserService{
		repo:       repo,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// EnsureAdmin creates the bootstrap administrator if no account with that email exists.
// An existing account is left untouched.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: admin email is required", models.ErrBadRequest)
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("bootstrap admin already exists", slog.String("user_id", existing.ID))
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("look up bootstrap admin: %w", err)
	}

	if err := auth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrBadRequest, err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Administrator",
		Role:         "admin",
		Status:       models.UserStatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("create bootstrap admin: %w", err)
	}

	s.logger.Info("bootstrap admin created", slog.String("user_id", created.ID))
	return created, nil
}
