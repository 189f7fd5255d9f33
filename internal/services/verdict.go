package services

import (
	"fmt"

	"github.com/freightdesk/sentinel/internal/models"
	"github.com/google/uuid"
)

// Verdict is what a single check concluded about the current request
type Verdict struct {
	Check    string
	Reason   string
	Severity models.Severity
	Score    *float64
	Details  models.AnomalyDetails
	Features *models.AnomalyFeatures

	// AlertAccountID is the account the alert goes to; nil sends an account-less alert
	AlertAccountID *string

	// Block asks the gate to reject the request with a cool-down
	Block           bool
	CooldownMinutes int

	// AnomalyID is set once the anomaly has been persisted
	AnomalyID *uuid.UUID
}

// Fired reports whether the verdict carries a classification
func (v *Verdict) Fired() bool {
	return v != nil && v.Severity > models.SeverityNone
}

// DetectorError records a check that could not complete
type DetectorError struct {
	Check string
	Err   error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("%s check failed: %v", e.Check, e.Err)
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}

// CheckResult is either a verdict (possibly nil when nothing fired) or an error
type CheckResult struct {
	Check   string
	Verdict *Verdict
	Err     *DetectorError
}

func fired(check string, v *Verdict) CheckResult {
	return CheckResult{Check: check, Verdict: v}
}

func failed(check string, err error) CheckResult {
	return CheckResult{Check: check, Err: &DetectorError{Check: check, Err: err}}
}

// firedVerdicts drops errored and silent results. A failed check counts as nothing found.
func firedVerdicts(results []CheckResult) []*Verdict {
	verdicts := make([]*Verdict, 0, len(results))
	for _, r := range results {
		if r.Err != nil || !r.Verdict.Fired() {
			continue
		}
		verdicts = append(verdicts, r.Verdict)
	}
	return verdicts
}

func aggregateSeverity(verdicts []*Verdict) models.Severity {
	severities := make([]models.Severity, 0, len(verdicts))
	for _, v := range verdicts {
		severities = append(severities, v.Severity)
	}
	return models.MaxSeverity(severities...)
}
