package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/freightdesk/sentinel/internal/auth"
	"github.com/freightdesk/sentinel/internal/models"
	pkgauth "github.com/freightdesk/sentinel/pkg/auth"
	pkglogger "github.com/freightdesk/sentinel/pkg/logger"
)

// LoginUserRepository resolves the identifier typed at login
type LoginUserRepository interface {
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
}

// AttemptRecorder appends to the login attempt history and settles pending attempts
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	CompleteAttempt(ctx context.Context, id, accountID string, status models.AttemptStatus) error
}

// LoginRequest is a credential check plus the transport metadata recorded with it.
// AttemptID names the pending attempt the security gate recorded for this request, if any.
type LoginRequest struct {
	Identifier string
	Password   string
	IPAddress  string
	UserAgent  string
	AttemptID  string
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AuthResponse represents the response from a successful login
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	User        *UserResponse `json:"user"`
}

// AuthService verifies credentials and records the outcome of every attempt
type AuthService struct {
	users       LoginUserRepository
	attempts    AttemptRecorder
	tm          *auth.TokenManager
	timing      *auth.TimingDelay
	retention   time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users LoginUserRepository,
	attempts AttemptRecorder,
	tm *auth.TokenManager,
	timing *auth.TimingDelay,
	retention time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	if retention <= 0 {
		retention = models.DefaultAttemptRetention
	}
	return &AuthService{
		users:       users,
		attempts:    attempts,
		tm:          tm,
		timing:      timing,
		retention:   retention,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Login authenticates the caller and returns an access token
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	start := time.Now()
	identifier := NormalizeIdentifier(req.Identifier)

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkgauth.CompareDummy(req.Password)
			s.finish(ctx, req, "", models.AttemptStatusAccountNotFound, "invalid_credentials")
			s.timing.WaitFrom(start, false)
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to look up login identifier", slog.Any("error", err))
		s.finish(ctx, req, "", models.AttemptStatusError, "lookup_failed")
		return nil, models.ErrInternalServer
	}

	if err := validateAccountState(user); err != nil {
		s.logger.Info("login blocked due to account state",
			slog.String("user_id", user.ID),
			slog.String("status", user.Status))
		s.finish(ctx, req, user.ID, models.AttemptStatusUnauthorized, "account_blocked")
		s.timing.WaitFrom(start, false)
		return nil, err
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		s.finish(ctx, req, user.ID, models.AttemptStatusFailed, "invalid_credentials")
		s.timing.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	token, err := s.tm.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		s.finish(ctx, req, user.ID, models.AttemptStatusError, "token_generation_failed")
		return nil, models.ErrInternalServer
	}

	s.finish(ctx, req, user.ID, models.AttemptStatusSuccess, "")

	return &AuthResponse{
		AccessToken: token,
		User: &UserResponse{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
	}, nil
}

// finish records the outcome and emits the audit event. Recording failures never fail the login.
func (s *AuthService) finish(ctx context.Context, req LoginRequest, accountID string, status models.AttemptStatus, failureReason string) {
	identifier := NormalizeIdentifier(req.Identifier)
	if err := s.recordOutcome(ctx, req, identifier, accountID, status); err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("status", string(status)),
			slog.Any("error", err))
	}

	eventType := "login_failed"
	if status == models.AttemptStatusSuccess {
		eventType = "login_success"
	}
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     eventType,
		UserID:        accountID,
		Identifier:    identifier,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		Success:       status == models.AttemptStatusSuccess,
		FailureReason: failureReason,
	})
}

// recordOutcome settles the gate's pending attempt, or appends a new one when there is none.
// A pending attempt already pruned from history is replaced by a fresh row.
func (s *AuthService) recordOutcome(ctx context.Context, req LoginRequest, identifier, accountID string, status models.AttemptStatus) error {
	if req.AttemptID != "" {
		err := s.attempts.CompleteAttempt(ctx, req.AttemptID, accountID, status)
		if !errors.Is(err, models.ErrNotFound) {
			return err
		}
	}

	now := s.now().UTC()
	return s.attempts.RecordAttempt(ctx, &models.LoginAttempt{
		Identifier:  identifier,
		AccountID:   accountID,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		AttemptTime: now,
		Status:      status,
		ExpiresAt:   now.Add(s.retention),
	})
}

func validateAccountState(user *models.User) error {
	switch user.Status {
	case models.UserStatusDisabled:
		return models.ErrAccountDisabled
	case models.UserStatusSuspended:
		return models.ErrAccountSuspended
	}
	return nil
}
