package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/freightdesk/sentinel/internal/models"
	"github.com/google/uuid"
)

const (
	DefaultAnomalyPageSize = 50
	MaxAnomalyPageSize     = 100
)

// AnomalyReviewRepository is the anomaly storage the review API needs
type AnomalyReviewRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Anomaly, error)
	List(ctx context.Context, filter models.AnomalyListFilter) ([]*models.Anomaly, error)
	Resolve(ctx context.Context, id uuid.UUID, resolution models.AnomalyResolution) (*models.Anomaly, error)
}

// AnomalyService backs the reviewer endpoints. Reviews only touch mitigation and resolution fields.
type AnomalyService struct {
	repo   AnomalyReviewRepository
	logger *slog.Logger
}

// NewAnomalyService creates a new AnomalyService
func NewAnomalyService(repo AnomalyReviewRepository, logger *slog.Logger) *AnomalyService {
	return &AnomalyService{repo: repo, logger: logger}
}

// ClampAnomalyPage applies the default and maximum page size to a list filter
func ClampAnomalyPage(filter models.AnomalyListFilter) models.AnomalyListFilter {
	if filter.Limit <= 0 {
		filter.Limit = DefaultAnomalyPageSize
	}
	if filter.Limit > MaxAnomalyPageSize {
		filter.Limit = MaxAnomalyPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}

// ListAnomalies returns anomalies newest first with the page size clamped
func (s *AnomalyService) ListAnomalies(ctx context.Context, filter models.AnomalyListFilter) ([]*models.Anomaly, error) {
	filter = ClampAnomalyPage(filter)

	anomalies, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list anomalies", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return anomalies, nil
}

// GetAnomaly retrieves a single anomaly
func (s *AnomalyService) GetAnomaly(ctx context.Context, id uuid.UUID) (*models.Anomaly, error) {
	anomaly, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get anomaly", slog.String("anomaly_id", id.String()), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return anomaly, nil
}

// ReviewAnomaly applies a reviewer's decision. Detection-owned statuses cannot be set by hand.
func (s *AnomalyService) ReviewAnomaly(ctx context.Context, id uuid.UUID, resolution models.AnomalyResolution) (*models.Anomaly, error) {
	switch resolution.Status {
	case models.MitigationMonitoring, models.MitigationResolved, models.MitigationFalsePositive:
	default:
		return nil, fmt.Errorf("%w: status %q cannot be set by a reviewer", models.ErrBadRequest, resolution.Status)
	}
	if strings.TrimSpace(resolution.ReviewerID) == "" {
		return nil, models.ErrUnauthorized
	}

	anomaly, err := s.repo.Resolve(ctx, id, resolution)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to review anomaly", slog.String("anomaly_id", id.String()), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("anomaly reviewed",
		slog.String("anomaly_id", id.String()),
		slog.String("status", string(resolution.Status)),
		slog.String("reviewer_id", resolution.ReviewerID))

	return anomaly, nil
}
