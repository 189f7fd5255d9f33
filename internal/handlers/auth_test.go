package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/freightdesk/sentinel/internal/middleware"
	"github.com/freightdesk/sentinel/internal/models"
	"github.com/freightdesk/sentinel/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthHandler(svc *MockAuthService) *AuthHandler {
	return NewAuthHandler(svc, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAuthHandler_Login_Success(t *testing.T) {
	var got services.LoginRequest
	svc := &MockAuthService{
		LoginFunc: func(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error) {
			got = req
			return &services.AuthResponse{
				AccessToken: "token",
				User:        &services.UserResponse{ID: "user-1", Email: "alice@example.com", Role: "user"},
			}, nil
		},
	}

	req := NewTestRequest(t, http.MethodPost, "/auth/login", LoginRequest{Identifier: "  alice@example.com ", Password: "correct horse battery"})
	req.RemoteAddr = "198.51.100.3:4000"
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()

	newTestAuthHandler(svc).Login(w, req)

	var resp services.AuthResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "token", resp.AccessToken)
	assert.Equal(t, "alice@example.com", got.Identifier)
	assert.Equal(t, "198.51.100.3", got.IPAddress)
	assert.Equal(t, "test-agent", got.UserAgent)
}

func TestAuthHandler_Login_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{name: "malformed body", body: "{", wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "missing identifier", body: `{"password":"x"}`, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "missing password", body: `{"identifier":"bob"}`, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "bad credentials", body: `{"identifier":"bob","password":"x"}`, serviceErr: models.ErrUnauthorized, wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
		{name: "disabled account looks like bad credentials", body: `{"identifier":"bob","password":"x"}`, serviceErr: models.ErrAccountDisabled, wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
		{name: "suspended account looks like bad credentials", body: `{"identifier":"bob","password":"x"}`, serviceErr: models.ErrAccountSuspended, wantStatus: http.StatusUnauthorized, wantCode: "unauthorized"},
		{name: "internal failure", body: `{"identifier":"bob","password":"x"}`, serviceErr: models.ErrInternalServer, wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &MockAuthService{
				LoginFunc: func(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error) {
					called = true
					return nil, tt.serviceErr
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			newTestAuthHandler(svc).Login(w, req)

			AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
			assert.Equal(t, tt.serviceErr != nil, called)
		})
	}
}

func TestValidateRequest_UsesJSONFieldNames(t *testing.T) {
	err := ValidateRequest(ReviewAnomalyRequest{Status: "blocked"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status")
	assert.Contains(t, err.Error(), "monitoring resolved false_positive")
}

type admitAll struct {
	attemptID string
}

func (a admitAll) Evaluate(context.Context, services.LoginContext) *services.Evaluation {
	return &services.Evaluation{Decision: services.DecisionContinue, AttemptID: a.attemptID}
}

func TestAuthHandler_Login_ForwardsGateAttempt(t *testing.T) {
	var got services.LoginRequest
	svc := &MockAuthService{
		LoginFunc: func(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error) {
			got = req
			return nil, models.ErrUnauthorized
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := middleware.AnomalyGate(admitAll{attemptID: "attempt-42"}, nil, logger)(http.HandlerFunc(newTestAuthHandler(svc).Login))

	req := NewTestRequest(t, http.MethodPost, "/auth/login", LoginRequest{Identifier: "alice@example.com ", Password: "guess"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	assert.Equal(t, "attempt-42", got.AttemptID)
	assert.Equal(t, "alice@example.com", got.Identifier)
}
