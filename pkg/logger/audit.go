package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Identifier    string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AnomalyEvent describes a detector firing
type AnomalyEvent struct {
	AnomalyID  string
	Type       string
	Reason     string
	Severity   string
	AccountID  string
	Identifier string
	IPAddress  string
	Persisted  bool
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs authentication attempts
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Identifier != "" {
		attrs = append(attrs, slog.String("identifier", SanitizedIdentifier(event.Identifier)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	if event.Success {
		al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(ctx, slog.LevelWarn, "audit", attrs...)
	}
}

// LogAnomaly logs a detected login anomaly
func (al *AuditLogger) LogAnomaly(ctx context.Context, event AnomalyEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "anomaly"),
		slog.String("anomaly_type", event.Type),
		slog.String("reason", event.Reason),
		slog.String("severity", event.Severity),
		slog.String("ip_address", event.IPAddress),
		slog.Bool("persisted", event.Persisted),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.AnomalyID != "" {
		attrs = append(attrs, slog.String("anomaly_id", event.AnomalyID))
	}
	if event.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", event.AccountID))
	}
	if event.Identifier != "" {
		attrs = append(attrs, slog.String("identifier", SanitizedIdentifier(event.Identifier)))
	}

	al.logger.LogAttrs(ctx, slog.LevelWarn, "audit", attrs...)
}

// LogGateDecision logs the outcome of the pre-authentication gate when it did something
func (al *AuditLogger) LogGateDecision(ctx context.Context, decision, ipAddress, identifier string, anomalies int, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "anomaly_gate"),
		slog.String("decision", decision),
		slog.String("ip_address", ipAddress),
		slog.Int("anomalies", anomalies),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if identifier != "" {
		attrs = append(attrs, slog.String("identifier", SanitizedIdentifier(identifier)))
	}
	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.logger.LogAttrs(ctx, slog.LevelWarn, "audit", attrs...)
}
