package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/freightdesk/sentinel/internal/middleware"
	"github.com/freightdesk/sentinel/internal/models"
	"github.com/freightdesk/sentinel/internal/services"
	pkghttp "github.com/freightdesk/sentinel/pkg/http"
	pkglogger "github.com/freightdesk/sentinel/pkg/logger"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// LoginRequest represents the request body for login.
// Identifier is an email address or a username.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=255"`
	Password   string `json:"password" validate:"required,max=72"`
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	identifier := services.NormalizeIdentifier(req.Identifier)

	// anomalies that did not block the request are still worth a log line next to the outcome
	if refs := middleware.AnomaliesFromContext(r.Context()); len(refs) > 0 {
		types := make([]string, 0, len(refs))
		for _, ref := range refs {
			types = append(types, ref.Type+":"+ref.Severity.String())
		}
		h.logger.InfoContext(r.Context(), "login admitted with anomalies",
			"identifier", pkglogger.SanitizedIdentifier(identifier),
			"anomalies", strings.Join(types, ","))
	}

	authResp, err := h.service.Login(r.Context(), services.LoginRequest{
		Identifier: identifier,
		Password:   req.Password,
		IPAddress:  pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent:  r.UserAgent(),
		AttemptID:  middleware.AttemptIDFromContext(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized),
			errors.Is(err, models.ErrAccountDisabled),
			errors.Is(err, models.ErrAccountSuspended):
			// account state is never revealed
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, authResp)
}
