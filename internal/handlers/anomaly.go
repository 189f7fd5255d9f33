package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/freightdesk/sentinel/internal/auth"
	"github.com/freightdesk/sentinel/internal/models"
	"github.com/freightdesk/sentinel/internal/services"
	pkghttp "github.com/freightdesk/sentinel/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AnomalyServiceInterface defines the reviewer operations on anomalies
type AnomalyServiceInterface interface {
	ListAnomalies(ctx context.Context, filter models.AnomalyListFilter) ([]*models.Anomaly, error)
	GetAnomaly(ctx context.Context, id uuid.UUID) (*models.Anomaly, error)
	ReviewAnomaly(ctx context.Context, id uuid.UUID, resolution models.AnomalyResolution) (*models.Anomaly, error)
}

// AnomalyHandler serves the admin anomaly review endpoints
type AnomalyHandler struct {
	service AnomalyServiceInterface
}

// NewAnomalyHandler creates a new AnomalyHandler
func NewAnomalyHandler(service AnomalyServiceInterface) *AnomalyHandler {
	return &AnomalyHandler{service: service}
}

// ReviewAnomalyRequest represents the request body for reviewing an anomaly
type ReviewAnomalyRequest struct {
	Status string  `json:"status" validate:"required,oneof=monitoring resolved false_positive"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// AnomalyListResponse wraps a page of anomalies
type AnomalyListResponse struct {
	Anomalies []*models.Anomaly `json:"anomalies"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// ListAnomalies handles GET /admin/anomalies
// Filters: severity, status, ip, account_id, limit, offset
func (h *AnomalyHandler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAnomalyFilter(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	// the response reports the page that was served, not the one asked for
	filter = services.ClampAnomalyPage(filter)

	anomalies, err := h.service.ListAnomalies(r.Context(), filter)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if anomalies == nil {
		anomalies = []*models.Anomaly{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, AnomalyListResponse{
		Anomalies: anomalies,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	})
}

// GetAnomaly handles GET /admin/anomalies/{id}
func (h *AnomalyHandler) GetAnomaly(w http.ResponseWriter, r *http.Request) {
	id, ok := anomalyIDParam(w, r)
	if !ok {
		return
	}

	anomaly, err := h.service.GetAnomaly(r.Context(), id)
	if err != nil {
		writeAnomalyError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, anomaly)
}

// ReviewAnomaly handles PATCH /admin/anomalies/{id}
func (h *AnomalyHandler) ReviewAnomaly(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	id, ok := anomalyIDParam(w, r)
	if !ok {
		return
	}

	var req ReviewAnomalyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	anomaly, err := h.service.ReviewAnomaly(r.Context(), id, models.AnomalyResolution{
		Status:     models.MitigationStatus(req.Status),
		ReviewerID: claims.UserID,
		Notes:      req.Notes,
	})
	if err != nil {
		writeAnomalyError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, anomaly)
}

func anomalyIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid anomaly id")
		return uuid.Nil, false
	}
	return id, true
}

func parseAnomalyFilter(r *http.Request) (models.AnomalyListFilter, error) {
	q := r.URL.Query()
	filter := models.AnomalyListFilter{
		IPAddress: strings.TrimSpace(q.Get("ip")),
		AccountID: strings.TrimSpace(q.Get("account_id")),
	}

	if v := q.Get("severity"); v != "" {
		severity, err := models.ParseSeverity(v)
		if err != nil {
			return filter, errors.New("invalid severity")
		}
		filter.Severity = severity
	}

	if v := q.Get("status"); v != "" {
		status := models.MitigationStatus(strings.ToLower(v))
		switch status {
		case models.MitigationDetected, models.MitigationBlocked, models.MitigationMonitoring,
			models.MitigationResolved, models.MitigationFalsePositive:
			filter.MitigationStatus = status
		default:
			return filter, errors.New("invalid status")
		}
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		return filter, errors.New("invalid limit")
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		return filter, errors.New("invalid offset")
	}
	return filter, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return n, nil
}

func writeAnomalyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Anomaly not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid review")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "unauthorized")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
