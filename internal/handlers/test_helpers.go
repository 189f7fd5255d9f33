package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/freightdesk/sentinel/internal/auth"
	"github.com/freightdesk/sentinel/internal/models"
	"github.com/freightdesk/sentinel/internal/services"
	pkghttp "github.com/freightdesk/sentinel/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAdminContext adds admin claims to the request context
func WithAdminContext(req *http.Request, userID, email string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   "admin",
		Type:   "access",
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc func(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, req)
}

// MockAnomalyService implements AnomalyServiceInterface for testing
type MockAnomalyService struct {
	ListAnomaliesFunc func(ctx context.Context, filter models.AnomalyListFilter) ([]*models.Anomaly, error)
	GetAnomalyFunc    func(ctx context.Context, id uuid.UUID) (*models.Anomaly, error)
	ReviewAnomalyFunc func(ctx context.Context, id uuid.UUID, resolution models.AnomalyResolution) (*models.Anomaly, error)
}

func (m *MockAnomalyService) ListAnomalies(ctx context.Context, filter models.AnomalyListFilter) ([]*models.Anomaly, error) {
	if m.ListAnomaliesFunc == nil {
		return []*models.Anomaly{}, nil
	}
	return m.ListAnomaliesFunc(ctx, filter)
}

func (m *MockAnomalyService) GetAnomaly(ctx context.Context, id uuid.UUID) (*models.Anomaly, error) {
	if m.GetAnomalyFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetAnomalyFunc(ctx, id)
}

func (m *MockAnomalyService) ReviewAnomaly(ctx context.Context, id uuid.UUID, resolution models.AnomalyResolution) (*models.Anomaly, error) {
	if m.ReviewAnomalyFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ReviewAnomalyFunc(ctx, id, resolution)
}
