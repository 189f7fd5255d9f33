package models

import (
	"time"

	"github.com/google/uuid"
)

// Anomaly types, one per detector check
const (
	AnomalyTypeRapidSuccession  = "rapid_succession"
	AnomalyTypeDistributedBrute = "distributed_brute_force"
	AnomalyTypePasswordSpray    = "password_spray"
	AnomalyTypeRapidRetry       = "rapid_login_attempts"
)

// MitigationStatus tracks what happened to a detected anomaly
type MitigationStatus string

const (
	MitigationDetected      MitigationStatus = "detected"
	MitigationBlocked       MitigationStatus = "blocked"
	MitigationMonitoring    MitigationStatus = "monitoring"
	MitigationResolved      MitigationStatus = "resolved"
	MitigationFalsePositive MitigationStatus = "false_positive"
)

// IsTerminal reports whether a review has closed the anomaly
func (m MitigationStatus) IsTerminal() bool {
	return m == MitigationResolved || m == MitigationFalsePositive
}

// AnomalyDetails holds the evidence a check collected (counts, windows, implicated values)
type AnomalyDetails map[string]any

// AnomalyFeatures is the per-feature score breakdown written by the account detector.
// Only RapidLoginAttempts is computed today; the other slots are recorded as zero.
type AnomalyFeatures struct {
	RapidLoginAttempts float64 `json:"rapidLoginAttempts"`
	TimeOfDay          float64 `json:"timeOfDay"`
	Location           float64 `json:"location"`
	Device             float64 `json:"device"`
	Behavioral         float64 `json:"behavioral"`
}

// Anomaly is a persisted login anomaly.
// Everything except the mitigation and resolution fields is fixed at creation.
type Anomaly struct {
	ID               uuid.UUID        `json:"id"`
	AccountID        *string          `json:"account_id,omitempty"`
	IPAddress        string           `json:"ip_address"`
	UserAgent        string           `json:"user_agent"`
	Identifier       *string          `json:"identifier,omitempty"`
	Type             string           `json:"type"`
	Reason           string           `json:"reason"`
	Details          AnomalyDetails   `json:"details"`
	Features         *AnomalyFeatures `json:"features,omitempty"`
	Severity         Severity         `json:"severity"`
	MitigationStatus MitigationStatus `json:"mitigation_status"`
	Score            *float64         `json:"score,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`
	ResolvedBy       *string          `json:"resolved_by,omitempty"`
	Notes            *string          `json:"notes,omitempty"`
}

// AnomalyListFilter narrows the review listing
type AnomalyListFilter struct {
	Severity         Severity
	MitigationStatus MitigationStatus
	IPAddress        string
	AccountID        string
	Limit            int
	Offset           int
}

// AnomalyResolution is a reviewer's update to an anomaly
type AnomalyResolution struct {
	Status     MitigationStatus
	ReviewerID string
	Notes      *string
}
