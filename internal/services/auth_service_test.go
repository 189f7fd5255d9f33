package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/freightdesk/sentinel/internal/auth"
	"github.com/freightdesk/sentinel/internal/models"
	pkglogger "github.com/freightdesk/sentinel/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type completedAttempt struct {
	ID        string
	AccountID string
	Status    models.AttemptStatus
}

type recordedAttempts struct {
	attempts    []*models.LoginAttempt
	completed   []completedAttempt
	err         error
	completeErr error
}

func (r *recordedAttempts) RecordAttempt(_ context.Context, attempt *models.LoginAttempt) error {
	r.attempts = append(r.attempts, attempt)
	return r.err
}

func (r *recordedAttempts) CompleteAttempt(_ context.Context, id, accountID string, status models.AttemptStatus) error {
	if r.completeErr != nil {
		return r.completeErr
	}
	r.completed = append(r.completed, completedAttempt{ID: id, AccountID: accountID, Status: status})
	return nil
}

func newTestAuthService(t *testing.T, users *memoryAccounts, attempts *recordedAttempts) *AuthService {
	t.Helper()
	logger := discardLogger()
	svc := NewAuthService(
		users,
		attempts,
		auth.NewTokenManager("a-test-secret-that-is-at-least-32-bytes-long", 15*time.Minute),
		nil,
		24*time.Hour,
		logger,
		pkglogger.NewAuditLogger(logger),
	)
	svc.now = func() time.Time { return testNow }
	return svc
}

func hashForTest(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthService_Login(t *testing.T) {
	hash := hashForTest(t, "Dispatch2026Desk")

	tests := []struct {
		name       string
		user       *models.User
		identifier string
		password   string
		wantErr    error
		wantStatus models.AttemptStatus
		wantAcct   string
	}{
		{
			name:       "valid credentials",
			user:       &models.User{ID: "user-1", Email: "alice@example.com", PasswordHash: hash, Role: "user", Status: models.UserStatusActive},
			identifier: " alice@example.com ",
			password:   "Dispatch2026Desk",
			wantStatus: models.AttemptStatusSuccess,
			wantAcct:   "user-1",
		},
		{
			name:       "wrong password",
			user:       &models.User{ID: "user-1", Email: "alice@example.com", PasswordHash: hash, Status: models.UserStatusActive},
			identifier: "alice@example.com",
			password:   "guess",
			wantErr:    models.ErrUnauthorized,
			wantStatus: models.AttemptStatusFailed,
			wantAcct:   "user-1",
		},
		{
			name:       "unknown account",
			identifier: "ghost@example.com",
			password:   "guess",
			wantErr:    models.ErrUnauthorized,
			wantStatus: models.AttemptStatusAccountNotFound,
		},
		{
			name:       "suspended account",
			user:       &models.User{ID: "user-2", Email: "bob@example.com", PasswordHash: hash, Status: models.UserStatusSuspended},
			identifier: "bob@example.com",
			password:   "Dispatch2026Desk",
			wantErr:    models.ErrAccountSuspended,
			wantStatus: models.AttemptStatusUnauthorized,
			wantAcct:   "user-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &memoryAccounts{}
			if tt.user != nil {
				users.users = []*models.User{tt.user}
			}
			attempts := &recordedAttempts{}
			svc := newTestAuthService(t, users, attempts)

			resp, err := svc.Login(context.Background(), LoginRequest{
				Identifier: tt.identifier,
				Password:   tt.password,
				IPAddress:  "192.0.2.10",
				UserAgent:  "Mozilla/5.0",
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, resp)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, resp.AccessToken)
				assert.Equal(t, "user-1", resp.User.ID)
			}

			require.Len(t, attempts.attempts, 1)
			recorded := attempts.attempts[0]
			assert.Equal(t, tt.wantStatus, recorded.Status)
			assert.Equal(t, tt.wantAcct, recorded.AccountID)
			assert.Equal(t, "192.0.2.10", recorded.IPAddress)
			assert.Equal(t, "Mozilla/5.0", recorded.UserAgent)
			assert.Equal(t, testNow, recorded.AttemptTime)
			assert.Equal(t, testNow.Add(24*time.Hour), recorded.ExpiresAt)
		})
	}
}

func TestAuthService_LoginLookupError(t *testing.T) {
	attempts := &recordedAttempts{}
	svc := newTestAuthService(t, &memoryAccounts{err: errors.New("db down")}, attempts)

	_, err := svc.Login(context.Background(), LoginRequest{Identifier: "alice@example.com", Password: "x", IPAddress: "192.0.2.10"})

	assert.ErrorIs(t, err, models.ErrInternalServer)
	require.Len(t, attempts.attempts, 1)
	assert.Equal(t, models.AttemptStatusError, attempts.attempts[0].Status)
}

func TestAuthService_RecordFailureDoesNotBlockLogin(t *testing.T) {
	users := &memoryAccounts{users: []*models.User{{
		ID: "user-1", Email: "alice@example.com", PasswordHash: hashForTest(t, "Dispatch2026Desk"), Status: models.UserStatusActive,
	}}}
	svc := newTestAuthService(t, users, &recordedAttempts{err: errors.New("insert failed")})

	resp, err := svc.Login(context.Background(), LoginRequest{Identifier: "alice@example.com", Password: "Dispatch2026Desk", IPAddress: "192.0.2.10"})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestAuthService_CompletesPendingAttempt(t *testing.T) {
	users := &memoryAccounts{users: []*models.User{{
		ID: "user-1", Email: "alice@example.com", PasswordHash: hashForTest(t, "Dispatch2026Desk"), Status: models.UserStatusActive,
	}}}

	t.Run("settles the attempt the gate recorded", func(t *testing.T) {
		attempts := &recordedAttempts{}
		svc := newTestAuthService(t, users, attempts)

		_, err := svc.Login(context.Background(), LoginRequest{
			Identifier: "alice@example.com",
			Password:   "guess",
			IPAddress:  "192.0.2.10",
			AttemptID:  "attempt-1",
		})

		assert.ErrorIs(t, err, models.ErrUnauthorized)
		assert.Empty(t, attempts.attempts)
		require.Len(t, attempts.completed, 1)
		assert.Equal(t, completedAttempt{ID: "attempt-1", AccountID: "user-1", Status: models.AttemptStatusFailed}, attempts.completed[0])
	})

	t.Run("pruned attempt is recorded afresh", func(t *testing.T) {
		attempts := &recordedAttempts{completeErr: models.ErrNotFound}
		svc := newTestAuthService(t, users, attempts)

		_, err := svc.Login(context.Background(), LoginRequest{
			Identifier: "alice@example.com",
			Password:   "Dispatch2026Desk",
			IPAddress:  "192.0.2.10",
			AttemptID:  "attempt-gone",
		})

		require.NoError(t, err)
		require.Len(t, attempts.attempts, 1)
		assert.Equal(t, models.AttemptStatusSuccess, attempts.attempts[0].Status)
	})

	t.Run("other update failures do not insert a second row", func(t *testing.T) {
		attempts := &recordedAttempts{completeErr: errors.New("connection reset")}
		svc := newTestAuthService(t, users, attempts)

		_, err := svc.Login(context.Background(), LoginRequest{
			Identifier: "alice@example.com",
			Password:   "Dispatch2026Desk",
			IPAddress:  "192.0.2.10",
			AttemptID:  "attempt-1",
		})

		require.NoError(t, err)
		assert.Empty(t, attempts.attempts)
	})
}
