package services

import (
	"context"
	"strings"

	"github.com/freightdesk/sentinel/internal/models"
)

const (
	reasonRapidSuccession = "suspected automated attempts"
	reasonDistributed     = "potential distributed brute force"
	reasonPasswordSpray   = "potential password spray"
)

// LoginContext is the part of an inbound login request the detectors look at
type LoginContext struct {
	Identifier string
	IPAddress  string
	UserAgent  string
}

// NormalizeIdentifier is the one canonical form of a login identifier. The gate, the
// detectors and the attempt history all key on it.
func NormalizeIdentifier(identifier string) string {
	return strings.TrimSpace(identifier)
}

// HeuristicDetector runs the IP and identifier pattern checks against raw attempt windows
type HeuristicDetector struct {
	gateway *AttemptGateway
}

// NewHeuristicDetector creates a new HeuristicDetector
func NewHeuristicDetector(gateway *AttemptGateway) *HeuristicDetector {
	return &HeuristicDetector{gateway: gateway}
}

// Detect runs every applicable check in order. One failing check never stops the others.
func (d *HeuristicDetector) Detect(ctx context.Context, login LoginContext) []CheckResult {
	results := []CheckResult{d.checkRapidSuccession(ctx, login)}

	if strings.TrimSpace(login.Identifier) != "" {
		results = append(results, d.checkDistributed(ctx, login))
	}

	results = append(results, d.checkPasswordSpray(ctx, login))
	return results
}

func (d *HeuristicDetector) checkRapidSuccession(ctx context.Context, login LoginContext) CheckResult {
	attempts, err := d.gateway.Query(ctx, models.AttemptFilter{IPAddress: login.IPAddress}, rapidSuccessionWindow)
	if err != nil {
		return failed(models.AnomalyTypeRapidSuccession, err)
	}
	if len(attempts) < rapidSuccessionMinAttempts {
		return fired(models.AnomalyTypeRapidSuccession, nil)
	}

	avg := averageGap(adjacentGaps(attempts))
	severity := classifyRapidSuccession(len(attempts), avg)
	if severity == models.SeverityNone {
		return fired(models.AnomalyTypeRapidSuccession, nil)
	}

	return fired(models.AnomalyTypeRapidSuccession, &Verdict{
		Check:    models.AnomalyTypeRapidSuccession,
		Reason:   reasonRapidSuccession,
		Severity: severity,
		Details: models.AnomalyDetails{
			"attemptCount":  len(attempts),
			"windowSeconds": int(rapidSuccessionWindow.Seconds()),
			"averageGapMs":  avg.Milliseconds(),
		},
		AlertAccountID: mostRecentAccount(attempts),
	})
}

func (d *HeuristicDetector) checkDistributed(ctx context.Context, login LoginContext) CheckResult {
	attempts, err := d.gateway.Query(ctx, models.AttemptFilter{Identifier: login.Identifier}, distributedWindow)
	if err != nil {
		return failed(models.AnomalyTypeDistributedBrute, err)
	}
	if len(attempts) < distributedMinAttempts {
		return fired(models.AnomalyTypeDistributedBrute, nil)
	}

	ips := distinctValues(attempts, func(a models.LoginAttempt) string { return a.IPAddress })
	severity := classifyDistributed(len(attempts), len(ips))
	if severity == models.SeverityNone {
		return fired(models.AnomalyTypeDistributedBrute, nil)
	}

	return fired(models.AnomalyTypeDistributedBrute, &Verdict{
		Check:    models.AnomalyTypeDistributedBrute,
		Reason:   reasonDistributed,
		Severity: severity,
		Details: models.AnomalyDetails{
			"attemptCount":    len(attempts),
			"windowMinutes":   int(distributedWindow.Minutes()),
			"distinctIpCount": len(ips),
			"ipAddresses":     ips,
		},
		AlertAccountID: mostRecentAccount(attempts),
	})
}

func (d *HeuristicDetector) checkPasswordSpray(ctx context.Context, login LoginContext) CheckResult {
	filter := models.AttemptFilter{
		IPAddress: login.IPAddress,
		Statuses:  []models.AttemptStatus{models.AttemptStatusFailed, models.AttemptStatusAccountNotFound},
	}
	attempts, err := d.gateway.Query(ctx, filter, sprayWindow)
	if err != nil {
		return failed(models.AnomalyTypePasswordSpray, err)
	}
	if len(attempts) < sprayMinAttempts {
		return fired(models.AnomalyTypePasswordSpray, nil)
	}

	identifiers := distinctValues(attempts, func(a models.LoginAttempt) string { return a.Identifier })
	severity := classifySpray(len(attempts), len(identifiers))
	if severity == models.SeverityNone {
		return fired(models.AnomalyTypePasswordSpray, nil)
	}

	// spray spans many accounts, so the alert is account-less
	return fired(models.AnomalyTypePasswordSpray, &Verdict{
		Check:    models.AnomalyTypePasswordSpray,
		Reason:   reasonPasswordSpray,
		Severity: severity,
		Details: models.AnomalyDetails{
			"attemptCount":            len(attempts),
			"windowMinutes":           int(sprayWindow.Minutes()),
			"distinctIdentifierCount": len(identifiers),
			"identifiers":             identifiers,
		},
	})
}

// mostRecentAccount returns the account of the newest attempt, if it has one.
// attempts must be newest first.
func mostRecentAccount(attempts []models.LoginAttempt) *string {
	if len(attempts) == 0 || attempts[0].AccountID == "" {
		return nil
	}
	accountID := attempts[0].AccountID
	return &accountID
}
