package services

import (
	"context"
	"errors"
	"time"

	"github.com/freightdesk/sentinel/internal/models"
)

const (
	reasonRapidRetry = "rapid login attempts"
	reasonAutomated  = " - automated attack suspected"

	// DefaultCooldown is how long a client is told to wait after an account-level block
	DefaultCooldown = 15 * time.Minute
)

// AccountDetector scores retry pressure against a single known account
type AccountDetector struct {
	gateway  *AttemptGateway
	cooldown time.Duration
}

// NewAccountDetector creates a new AccountDetector
func NewAccountDetector(gateway *AttemptGateway, cooldown time.Duration) *AccountDetector {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &AccountDetector{gateway: gateway, cooldown: cooldown}
}

// Detect resolves the identifier and classifies the account's recent attempts.
// An unknown identifier yields an empty result with ok=false and no error.
func (d *AccountDetector) Detect(ctx context.Context, login LoginContext) (result CheckResult, ok bool) {
	accountID, err := d.gateway.ResolveAccount(ctx, login.Identifier)
	return d.detectResolved(ctx, accountID, err)
}

// detectResolved classifies an account the caller already resolved, along with the
// error that resolution returned
func (d *AccountDetector) detectResolved(ctx context.Context, accountID string, resolveErr error) (CheckResult, bool) {
	if resolveErr != nil {
		if errors.Is(resolveErr, models.ErrNotFound) {
			return CheckResult{}, false
		}
		return failed(models.AnomalyTypeRapidRetry, resolveErr), true
	}

	attempts, err := d.gateway.Query(ctx, models.AttemptFilter{AccountID: accountID}, accountRetryWindow)
	if err != nil {
		return failed(models.AnomalyTypeRapidRetry, err), true
	}

	minGap, hasGap := minimumGap(adjacentGaps(attempts))
	severity, score, automated := classifyAccountRetry(len(attempts), minGap, hasGap)
	if severity == models.SeverityNone {
		return fired(models.AnomalyTypeRapidRetry, nil), true
	}

	reason := reasonRapidRetry
	if automated {
		reason += reasonAutomated
	}

	details := models.AnomalyDetails{
		"attemptCount":  len(attempts),
		"windowMinutes": int(accountRetryWindow.Minutes()),
	}
	if hasGap {
		details["minimumGapMs"] = minGap.Milliseconds()
	}

	verdict := &Verdict{
		Check:    models.AnomalyTypeRapidRetry,
		Reason:   reason,
		Severity: severity,
		Score:    &score,
		Details:  details,
		Features: &models.AnomalyFeatures{
			RapidLoginAttempts: score,
		},
		AlertAccountID: &accountID,
	}

	if severity == models.SeverityCritical {
		verdict.Block = true
		verdict.CooldownMinutes = int(d.cooldown.Minutes())
	}

	return fired(models.AnomalyTypeRapidRetry, verdict), true
}
