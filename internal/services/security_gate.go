package services

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/freightdesk/sentinel/internal/models"
	"github.com/freightdesk/sentinel/pkg/logger"
	"github.com/google/uuid"
)

// Decision is the terminal state of a gate evaluation
type Decision string

const (
	DecisionContinue Decision = "CONTINUE"
	DecisionRejected Decision = "REJECTED"
)

// Rejection messages
const (
	MessageTooManyAttempts    = "Too many login attempts. Please try again later."
	MessageSuspiciousActivity = "Access temporarily blocked due to suspicious activity."
)

// Rejection describes how a rejected login should be answered
type Rejection struct {
	HTTPStatus      int
	Code            string
	Message         string
	CooldownMinutes int
}

// AnomalyRef is the summary of a fired check handed to the downstream login handler
type AnomalyRef struct {
	Type      string          `json:"type"`
	Severity  models.Severity `json:"severity"`
	AnomalyID *uuid.UUID      `json:"anomaly_id,omitempty"`
}

// Evaluation is the gate's answer for one login request.
// AttemptID is the pending attempt recorded for the request, empty if recording failed.
type Evaluation struct {
	Decision  Decision
	Rejection *Rejection
	Anomalies []AnomalyRef
	AttemptID string
}

// Rejected reports whether the login must be refused
func (e *Evaluation) Rejected() bool {
	return e.Decision == DecisionRejected
}

// SecurityGate runs the detectors before authentication and decides whether the request proceeds.
// Every request is appended to the attempt history as attempted before the detectors run, so
// it counts toward its own thresholds and rejected requests keep feeding the windows.
// Evaluation reads attempt history then writes anomalies without any cross-request locking,
// so two concurrent requests can both be admitted below a threshold.
type SecurityGate struct {
	gateway     *AttemptGateway
	heuristics  *HeuristicDetector
	account     *AccountDetector
	attempts    AttemptRecorder
	retention   time.Duration
	recorder    *AnomalyRecorder
	metrics     *DetectionMetrics
	auditLogger *logger.AuditLogger
	logger      *slog.Logger
}

// NewSecurityGate creates a new SecurityGate. attempts may be nil, in which case the gate
// only reads history that authentication writes afterwards.
func NewSecurityGate(
	gateway *AttemptGateway,
	heuristics *HeuristicDetector,
	account *AccountDetector,
	attempts AttemptRecorder,
	retention time.Duration,
	recorder *AnomalyRecorder,
	metrics *DetectionMetrics,
	auditLogger *logger.AuditLogger,
	logger *slog.Logger,
) *SecurityGate {
	if retention <= 0 {
		retention = models.DefaultAttemptRetention
	}
	return &SecurityGate{
		gateway:     gateway,
		heuristics:  heuristics,
		account:     account,
		attempts:    attempts,
		retention:   retention,
		recorder:    recorder,
		metrics:     metrics,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Evaluate records the request, runs every detector for it and returns the gate decision.
// Detector failures are logged and treated as nothing found.
func (g *SecurityGate) Evaluate(ctx context.Context, login LoginContext) *Evaluation {
	login.Identifier = NormalizeIdentifier(login.Identifier)

	accountID, resolveErr := g.gateway.ResolveAccount(ctx, login.Identifier)
	attemptID := g.recordAttempt(ctx, login, accountID)

	heuristicVerdicts := g.record(ctx, login, g.heuristics.Detect(ctx, login))

	var accountVerdict *Verdict
	if result, ok := g.account.detectResolved(ctx, accountID, resolveErr); ok {
		if verdicts := g.record(ctx, login, []CheckResult{result}); len(verdicts) > 0 {
			accountVerdict = verdicts[0]
		}
	}

	all := heuristicVerdicts
	if accountVerdict != nil {
		all = append(all, accountVerdict)
	}

	refs := make([]AnomalyRef, 0, len(all))
	for _, v := range all {
		refs = append(refs, AnomalyRef{Type: v.Check, Severity: v.Severity, AnomalyID: v.AnomalyID})
	}

	eval := &Evaluation{Decision: DecisionContinue, Anomalies: refs, AttemptID: attemptID}

	switch {
	case accountVerdict != nil && accountVerdict.Block:
		eval.Decision = DecisionRejected
		eval.Rejection = &Rejection{
			HTTPStatus:      http.StatusTooManyRequests,
			Code:            "too_many_attempts",
			Message:         MessageTooManyAttempts,
			CooldownMinutes: accountVerdict.CooldownMinutes,
		}
	case aggregateSeverity(heuristicVerdicts) == models.SeverityCritical:
		eval.Decision = DecisionRejected
		eval.Rejection = &Rejection{
			HTTPStatus: http.StatusForbidden,
			Code:       "suspicious_activity",
			Message:    MessageSuspiciousActivity,
		}
	}

	if eval.Rejected() {
		g.recorder.MarkBlocked(ctx, persistedIDs(all))
	}

	g.metrics.observeDecision(eval.Decision)
	if eval.Rejected() || len(refs) > 0 {
		metadata := map[string]string{
			"max_severity": aggregateSeverity(all).String(),
		}
		if eval.Rejection != nil {
			metadata["http_status"] = strconv.Itoa(eval.Rejection.HTTPStatus)
		}
		g.auditLogger.LogGateDecision(ctx, string(eval.Decision), login.IPAddress, login.Identifier, len(refs), metadata)
	}

	return eval
}

// recordAttempt appends the request to the attempt history as attempted and returns its id.
// A failed write is logged and the evaluation carries on against the existing history.
func (g *SecurityGate) recordAttempt(ctx context.Context, login LoginContext, accountID string) string {
	if g.attempts == nil {
		return ""
	}

	now := g.gateway.Now().UTC()
	attempt := &models.LoginAttempt{
		Identifier:  login.Identifier,
		AccountID:   accountID,
		IPAddress:   login.IPAddress,
		UserAgent:   login.UserAgent,
		AttemptTime: now,
		Status:      models.AttemptStatusAttempted,
		ExpiresAt:   now.Add(g.retention),
	}

	ctx, cancel := context.WithTimeout(ctx, g.gateway.timeout)
	defer cancel()

	if err := g.attempts.RecordAttempt(ctx, attempt); err != nil {
		g.logger.Error("failed to record pending login attempt",
			slog.String("ip_address", login.IPAddress),
			slog.Any("error", err))
		return ""
	}
	return attempt.ID
}

// record logs failed checks and persists every fired verdict, returning the fired ones
func (g *SecurityGate) record(ctx context.Context, login LoginContext, results []CheckResult) []*Verdict {
	for _, r := range results {
		if r.Err != nil {
			g.metrics.observeCheckError(r.Check)
			g.logger.Error("anomaly check failed, continuing without it",
				slog.String("check", r.Check),
				slog.String("ip_address", login.IPAddress),
				slog.Any("error", r.Err))
		}
	}

	verdicts := firedVerdicts(results)
	for _, v := range verdicts {
		g.metrics.observeAnomaly(v.Check, v.Severity.String())
		g.recorder.Record(ctx, login, v)
	}
	return verdicts
}

func persistedIDs(verdicts []*Verdict) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(verdicts))
	for _, v := range verdicts {
		if v.AnomalyID != nil {
			ids = append(ids, *v.AnomalyID)
		}
	}
	return ids
}
