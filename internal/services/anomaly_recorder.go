package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/freightdesk/sentinel/internal/models"
	"github.com/freightdesk/sentinel/pkg/logger"
	"github.com/google/uuid"
)

// AnomalyStore persists anomalies written by the detectors
type AnomalyStore interface {
	Create(ctx context.Context, anomaly *models.Anomaly) (*models.Anomaly, error)
	MarkBlocked(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// AlertSink delivers security alerts. A nil accountID means a general alert.
type AlertSink interface {
	SendAlert(ctx context.Context, accountID *string, kind string, details map[string]any) error
}

// AnomalyRecorder persists fired verdicts and forwards them to the alert sink.
// Both steps are best effort: failures are logged and never returned.
type AnomalyRecorder struct {
	store       AnomalyStore
	alerts      AlertSink
	auditLogger *logger.AuditLogger
	logger      *slog.Logger
}

// NewAnomalyRecorder creates a new AnomalyRecorder
func NewAnomalyRecorder(store AnomalyStore, alerts AlertSink, auditLogger *logger.AuditLogger, logger *slog.Logger) *AnomalyRecorder {
	return &AnomalyRecorder{
		store:       store,
		alerts:      alerts,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Record writes one anomaly for the verdict and requests an alert.
// On a successful write the verdict's AnomalyID is set.
func (r *AnomalyRecorder) Record(ctx context.Context, login LoginContext, verdict *Verdict) {
	anomaly := &models.Anomaly{
		AccountID:        verdict.AlertAccountID,
		IPAddress:        login.IPAddress,
		UserAgent:        login.UserAgent,
		Identifier:       optionalString(login.Identifier),
		Type:             verdict.Check,
		Reason:           verdict.Reason,
		Details:          verdict.Details,
		Features:         verdict.Features,
		Severity:         verdict.Severity,
		MitigationStatus: models.MitigationDetected,
		Score:            verdict.Score,
	}

	event := logger.AnomalyEvent{
		Type:       verdict.Check,
		Reason:     verdict.Reason,
		Severity:   verdict.Severity.String(),
		Identifier: login.Identifier,
		IPAddress:  login.IPAddress,
	}
	if verdict.AlertAccountID != nil {
		event.AccountID = *verdict.AlertAccountID
	}

	created, err := r.store.Create(ctx, anomaly)
	if err != nil {
		r.logger.Error("failed to persist login anomaly",
			slog.String("check", verdict.Check),
			slog.String("severity", verdict.Severity.String()),
			slog.Any("error", err))
	} else {
		id := created.ID
		verdict.AnomalyID = &id
		event.AnomalyID = id.String()
		event.Persisted = true
	}
	r.auditLogger.LogAnomaly(ctx, event)

	r.sendAlert(ctx, verdict)
}

func (r *AnomalyRecorder) sendAlert(ctx context.Context, verdict *Verdict) {
	if r.alerts == nil {
		return
	}

	details := map[string]any{
		"reason":   verdict.Reason,
		"severity": verdict.Severity.String(),
		"evidence": map[string]any(verdict.Details),
	}
	if verdict.AnomalyID != nil {
		details["anomalyId"] = verdict.AnomalyID.String()
	}
	if verdict.Score != nil {
		details["score"] = *verdict.Score
	}

	if err := r.alerts.SendAlert(ctx, verdict.AlertAccountID, verdict.Check, details); err != nil {
		r.logger.Warn("failed to deliver security alert",
			slog.String("check", verdict.Check),
			slog.Any("error", err))
	}
}

// MarkBlocked moves the given anomalies to blocked, logging instead of returning failures
func (r *AnomalyRecorder) MarkBlocked(ctx context.Context, ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	if _, err := r.store.MarkBlocked(ctx, ids); err != nil {
		r.logger.Error("failed to mark anomalies blocked",
			slog.Int("count", len(ids)),
			slog.Any("error", err))
	}
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
